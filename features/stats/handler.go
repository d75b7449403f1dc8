package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"vivavoce/backend/internal/middleware"
	"vivavoce/backend/internal/vector"
)

type MaterialRepo interface {
	Count(ctx context.Context) (int, error)
}

type JobRepo interface {
	Count(ctx context.Context) (int, error)
}

type VectorStore interface {
	Stats(ctx context.Context) (*vector.Stats, error)
}

type Handler struct {
	materialRepo MaterialRepo
	jobRepo      JobRepo
	vectorStore  VectorStore
}

func NewHandler(m MaterialRepo, j JobRepo, v VectorStore) *Handler {
	return &Handler{materialRepo: m, jobRepo: j, vectorStore: v}
}

type StatsResponse struct {
	Materials        int               `json:"materials"`
	IndexedDocuments int               `json:"indexed_documents"`
	TotalChunks      int               `json:"total_chunks"`
	FailedJobs       int               `json:"failed_jobs"`
	Documents        []vector.Document `json:"documents"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	mCount, err := h.materialRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count materials", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count materials", http.StatusInternalServerError)
		return
	}

	jCount, err := h.jobRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}

	vStats, err := h.vectorStore.Stats(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read index stats", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to read index stats", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Materials:        mCount,
		IndexedDocuments: vStats.TotalDocuments,
		TotalChunks:      vStats.TotalChunks,
		FailedJobs:       jCount,
		Documents:        vStats.Documents,
	}
	if resp.Documents == nil {
		resp.Documents = []vector.Document{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
