package material

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vivavoce/backend/internal/middleware"
	"vivavoce/backend/internal/worker"
)

// ErrDuplicate is returned when a document with the same content hash is
// already registered.
var ErrDuplicate = errors.New("duplicate material")

type Document struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	ContentHash string    `json:"-"`
	Status      string    `json:"status"` // processing, completed, failed
	ChunkCount  int       `json:"chunk_count"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context) ([]Document, error)
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateChunkCount(ctx context.Context, id string, count int) error
	SoftDelete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type ChunkStore interface {
	DeleteDocument(ctx context.Context, documentID string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo       Repository
	pub        EventPublisher
	chunkStore ChunkStore
}

func NewService(repo Repository, pub EventPublisher, chunkStore ChunkStore) *Service {
	return &Service{repo: repo, pub: pub, chunkStore: chunkStore}
}

// Ingest registers an uploaded document and queues it for chunking and
// embedding. The document stays in "processing" until the worker finishes.
func (s *Service) Ingest(ctx context.Context, fileName, text string) (*Document, error) {
	hash := sha256.Sum256([]byte(text))
	contentHash := fmt.Sprintf("%x", hash)

	exists, err := s.repo.ExistsByHash(ctx, contentHash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicate
	}

	doc := &Document{
		FileName:    fileName,
		ContentHash: contentHash,
		Status:      "processing",
		UploadedAt:  time.Now(),
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(worker.IngestPayload{
		DocumentID:    doc.ID,
		FileName:      doc.FileName,
		Text:          text,
		UploadedAt:    doc.UploadedAt,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err := s.pub.Publish(worker.TopicIngest, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish ingest event", "error", err, "document_id", doc.ID)
		return nil, err
	}
	slog.InfoContext(ctx, "queued document for ingestion", "document_id", doc.ID, "file_name", doc.FileName)

	return doc, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Document, error) {
	return s.repo.List(ctx)
}

// Delete removes the document's chunks from the vector index before soft
// deleting the registry row, so retrieval never serves orphaned chunks.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.chunkStore.DeleteDocument(ctx, id); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, id)
}

// Reingest re-queues an existing document. The worker's delete-then-upsert
// replaces whatever chunks the previous run left in the index.
func (s *Service) Reingest(ctx context.Context, id, text string) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateStatus(ctx, id, "processing"); err != nil {
		return err
	}

	payload, _ := json.Marshal(worker.IngestPayload{
		DocumentID:    doc.ID,
		FileName:      doc.FileName,
		Text:          text,
		UploadedAt:    doc.UploadedAt,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err := s.pub.Publish(worker.TopicIngest, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish reingest event", "error", err, "document_id", id)
		return err
	}
	return nil
}
