package job

import (
	"context"
	"encoding/json"

	"vivavoce/backend/internal/worker"
)

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo Repository
	pub  EventPublisher
}

func NewService(repo Repository, pub EventPublisher) *Service {
	return &Service{repo: repo, pub: pub}
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

// Retry republishes the dead-lettered payload and removes the job. The queue
// attempt counter starts fresh, so the task gets its full retry budget again.
func (s *Service) Retry(ctx context.Context, id string) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.pub.Publish(worker.TopicIngest, job.Payload); err != nil {
		return err
	}

	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// RecordFailure dead-letters an exhausted ingestion task.
func (s *Service) RecordFailure(ctx context.Context, documentID, handler string, payload []byte, message string) error {
	return s.repo.Save(ctx, &Job{
		DocumentID: documentID,
		Handler:    handler,
		Payload:    json.RawMessage(payload),
		Error:      message,
	})
}
