package settings

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Get(ctx context.Context) (*Settings, error) {
	s := &Settings{}
	query := `SELECT id, openai_api_key, embedding_model, realtime_model, realtime_voice, search_top_k, relevance_threshold FROM settings WHERE id = 1`
	err := r.db.QueryRowContext(ctx, query).Scan(&s.ID, &s.OpenAIAPIKey, &s.EmbeddingModel, &s.RealtimeModel, &s.RealtimeVoice, &s.SearchTopK, &s.RelevanceThreshold)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepo) Update(ctx context.Context, s *Settings) error {
	query := `UPDATE settings SET openai_api_key = $1, embedding_model = $2, realtime_model = $3, realtime_voice = $4, search_top_k = $5, relevance_threshold = $6, updated_at = NOW() WHERE id = 1`
	_, err := r.db.ExecContext(ctx, query, s.OpenAIAPIKey, s.EmbeddingModel, s.RealtimeModel, s.RealtimeVoice, s.SearchTopK, s.RelevanceThreshold)
	return err
}
