package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"vivavoce/backend/internal/middleware"
	"vivavoce/backend/internal/text"
	"vivavoce/backend/internal/vector"
)

const (
	maxAttempts  = 3
	embedTimeout = 120 * time.Second

	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// IngestConsumer runs the write path for one queued document: normalize and
// chunk the text, embed the chunks in order-preserving batches, then replace
// the document's records in the vector index as one logical delete-then-upsert.
type IngestConsumer struct {
	embedder   Embedder
	store      VectorStore
	documents  DocumentUpdater
	failures   FailureRecorder
	targetSize int
	overlap    int
}

func NewIngestConsumer(e Embedder, s VectorStore, d DocumentUpdater, f FailureRecorder, targetSize, overlap int) *IngestConsumer {
	if targetSize <= 0 {
		targetSize = text.DefaultTargetSize
	}
	if overlap < 0 || overlap >= targetSize {
		overlap = text.DefaultOverlap
	}
	return &IngestConsumer{
		embedder:   e,
		store:      s,
		documents:  d,
		failures:   f,
		targetSize: targetSize,
		overlap:    overlap,
	}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison pill: invalid JSON never succeeds, ack it.
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	if err := h.ingest(ctx, payload); err != nil {
		slog.ErrorContext(ctx, "ingestion failed", "error", err,
			"document_id", payload.DocumentID, "attempt", m.Attempts)

		if int(m.Attempts) >= maxAttempts {
			h.giveUp(ctx, payload, m.Body, err)
			return nil
		}
		return err // requeue
	}

	slog.InfoContext(ctx, "document ingested", "document_id", payload.DocumentID, "file_name", payload.FileName)
	return nil
}

func (h *IngestConsumer) ingest(ctx context.Context, payload IngestPayload) error {
	chunks := text.Chunk(payload.Text, h.targetSize, h.overlap)
	if len(chunks) == 0 {
		// Empty after normalization; nothing to index but the upload is done.
		if err := h.documents.UpdateChunkCount(ctx, payload.DocumentID, 0); err != nil {
			return err
		}
		return h.documents.UpdateStatus(ctx, payload.DocumentID, StatusCompleted)
	}

	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	embeddings, err := h.embedder.EmbedBatch(embedCtx, chunks)
	if err != nil {
		return err
	}

	// Delete-then-upsert keeps re-ingestion of the same document id from
	// leaving stale chunks behind.
	if err := h.store.DeleteDocument(embedCtx, payload.DocumentID); err != nil {
		return err
	}

	uploadedAt := payload.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}
	meta := vector.DocumentMeta{FileName: payload.FileName, UploadedAt: uploadedAt}
	if err := h.store.UpsertDocument(embedCtx, payload.DocumentID, chunks, embeddings, meta); err != nil {
		return err
	}

	if err := h.documents.UpdateChunkCount(ctx, payload.DocumentID, len(chunks)); err != nil {
		return err
	}
	return h.documents.UpdateStatus(ctx, payload.DocumentID, StatusCompleted)
}

func (h *IngestConsumer) giveUp(ctx context.Context, payload IngestPayload, body []byte, cause error) {
	if err := h.failures.RecordFailure(ctx, payload.DocumentID, "ingest", body, cause.Error()); err != nil {
		slog.ErrorContext(ctx, "failed to record failed job", "error", err, "document_id", payload.DocumentID)
	}
	if err := h.documents.UpdateStatus(ctx, payload.DocumentID, StatusFailed); err != nil {
		slog.ErrorContext(ctx, "failed to mark document failed", "error", err, "document_id", payload.DocumentID)
	}
}
