package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"vivavoce/backend/internal/middleware"
	"vivavoce/backend/internal/retrieval"
	"vivavoce/backend/internal/settings"
)

type Retriever interface {
	RetrieveContext(ctx context.Context, query string, topK int) retrieval.Context
}

type SettingsService interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

type Handler struct {
	retriever Retriever
	settings  SettingsService
}

func NewHandler(retriever Retriever, settings SettingsService) *Handler {
	return &Handler{retriever: retriever, settings: settings}
}

// Search runs one retrieval round trip and returns the assembled context.
// Exposed for inspection and for clients that enrich prompts themselves.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "query is required", http.StatusBadRequest)
		return
	}

	topK := req.TopK
	if topK <= 0 && h.settings != nil {
		if set, err := h.settings.Get(r.Context()); err == nil && set != nil {
			topK = set.SearchTopK
		}
	}

	rc := h.retriever.RetrieveContext(r.Context(), req.Query, topK)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": rc}); err != nil {
		slog.Error("failed to encode response", "error", err)
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
