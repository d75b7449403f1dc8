package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vivavoce/backend/internal/config"
)

func TestLoadConfig(t *testing.T) {
	os.Setenv("DB_HOST", "test-host")
	defer os.Unsetenv("DB_HOST")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "test-host", cfg.DBHost)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.ChunkTargetSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 20, cfg.EmbedBatchSize)
	assert.Equal(t, 3, cfg.SearchTopK)
	assert.InDelta(t, 0.7, cfg.RelevanceThreshold, 1e-9)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, "gpt-4o-realtime-preview", cfg.RealtimeModel)
}

func TestLoadConfig_FromEnvFile(t *testing.T) {
	content := []byte("WEAVIATE_HOST=weaviate-from-file:8080")
	err := os.WriteFile(".env", content, 0o644)
	require.NoError(t, err)
	defer os.Remove(".env")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "weaviate-from-file:8080", cfg.WeaviateHost)
}

func TestValidate_ChunkSizes(t *testing.T) {
	os.Setenv("CHUNK_TARGET_SIZE", "100")
	os.Setenv("CHUNK_OVERLAP", "100")
	defer os.Unsetenv("CHUNK_TARGET_SIZE")
	defer os.Unsetenv("CHUNK_OVERLAP")

	_, err := config.Load()
	assert.ErrorIs(t, err, config.ErrMissingRequired)
}

func TestLoadConfig_Toggles(t *testing.T) {
	os.Setenv("ENABLE_INGEST_WORKER", "false")
	os.Setenv("SEARCH_TOP_K", "7")
	defer os.Unsetenv("ENABLE_INGEST_WORKER")
	defer os.Unsetenv("SEARCH_TOP_K")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.False(t, cfg.EnableIngestWorker)
	assert.Equal(t, 7, cfg.SearchTopK)
}
