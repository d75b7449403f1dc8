package realtime_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vivavoce/backend/internal/adapter/realtime"
	"vivavoce/backend/internal/settings"
)

type stubSettings struct {
	s   *settings.Settings
	err error
}

func (m *stubSettings) Get(ctx context.Context) (*settings.Settings, error) {
	return m.s, m.err
}

func TestClient_CreateSession(t *testing.T) {
	var gotBody map[string]interface{}
	var gotAuth string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/realtime/sessions", r.URL.Path)
		assert.Equal(t, "POST", r.Method)
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "realtime=v1", r.Header.Get("OpenAI-Beta"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "sess_123",
			"model": "gpt-4o-realtime-preview",
			"voice": "alloy",
			"client_secret": map[string]interface{}{
				"value":      "ek_secret",
				"expires_at": 1756100000,
			},
		})
	}))
	defer ts.Close()

	client := realtime.NewClient(&stubSettings{s: &settings.Settings{OpenAIAPIKey: "sk-test"}})
	client.SetBaseURL(ts.URL)

	session, err := client.CreateSession(context.Background(), realtime.SessionConfig{
		Model:        "gpt-4o-realtime-preview",
		Voice:        "alloy",
		Instructions: "You are the examiner.",
	})
	require.NoError(t, err)

	assert.Equal(t, "sess_123", session.ID)
	assert.Equal(t, "ek_secret", session.ClientSecret.Value)
	assert.Equal(t, int64(1756100000), session.ClientSecret.ExpiresAt)
	assert.Equal(t, "Bearer sk-test", gotAuth)

	assert.Equal(t, "You are the examiner.", gotBody["instructions"])
	assert.Equal(t, "pcm16", gotBody["input_audio_format"])
	td := gotBody["turn_detection"].(map[string]interface{})
	assert.Equal(t, "server_vad", td["type"])
}

func TestClient_CreateSession_CollaboratorRejects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer ts.Close()

	client := realtime.NewClient(&stubSettings{s: &settings.Settings{OpenAIAPIKey: "sk-bad"}})
	client.SetBaseURL(ts.URL)

	_, err := client.CreateSession(context.Background(), realtime.SessionConfig{Model: "m", Voice: "v"})
	require.Error(t, err)

	var scErr *realtime.SessionCreationError
	require.ErrorAs(t, err, &scErr)
	assert.Equal(t, http.StatusUnauthorized, scErr.Status)
	assert.Contains(t, scErr.Body, "invalid api key")
}

func TestClient_CreateSession_MissingKey(t *testing.T) {
	client := realtime.NewClient(&stubSettings{s: &settings.Settings{OpenAIAPIKey: ""}})

	_, err := client.CreateSession(context.Background(), realtime.SessionConfig{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key not configured")
}

func TestClient_CreateSession_MissingSecret(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "sess_123"})
	}))
	defer ts.Close()

	client := realtime.NewClient(&stubSettings{s: &settings.Settings{OpenAIAPIKey: "sk-test"}})
	client.SetBaseURL(ts.URL)

	_, err := client.CreateSession(context.Background(), realtime.SessionConfig{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing client secret")
}
