package settings

import (
	"context"
)

type Settings struct {
	ID                 int     `json:"-"`
	OpenAIAPIKey       string  `json:"openai_api_key"`
	EmbeddingModel     string  `json:"embedding_model"`
	RealtimeModel      string  `json:"realtime_model"`
	RealtimeVoice      string  `json:"realtime_voice"`
	SearchTopK         int     `json:"search_top_k"`
	RelevanceThreshold float64 `json:"relevance_threshold"`
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

func (s *Service) Update(ctx context.Context, set *Settings) error {
	return s.repo.Update(ctx, set)
}
