package worker

import (
	"context"
	"time"

	"vivavoce/backend/internal/vector"
)

const TopicIngest = "material.ingest"

// IngestPayload is the queued ingestion task for one uploaded document.
type IngestPayload struct {
	DocumentID    string    `json:"document_id"`
	FileName      string    `json:"file_name"`
	Text          string    `json:"text"`
	UploadedAt    time.Time `json:"uploaded_at"`
	CorrelationID string    `json:"correlation_id"`
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type VectorStore interface {
	UpsertDocument(ctx context.Context, documentID string, chunks []string, embeddings [][]float32, meta vector.DocumentMeta) error
	DeleteDocument(ctx context.Context, documentID string) error
}

type DocumentUpdater interface {
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateChunkCount(ctx context.Context, id string, count int) error
}

type FailureRecorder interface {
	RecordFailure(ctx context.Context, documentID, handler string, payload []byte, message string) error
}
