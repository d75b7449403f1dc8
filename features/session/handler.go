package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"vivavoce/backend/internal/adapter/realtime"
	"vivavoce/backend/internal/middleware"
	"vivavoce/backend/internal/session"
)

type Negotiator interface {
	CreateSession(ctx context.Context, req session.Request) (*realtime.Session, error)
}

type Handler struct {
	negotiator Negotiator
}

func NewHandler(negotiator Negotiator) *Handler {
	return &Handler{negotiator: negotiator}
}

// Create negotiates a realtime exam session and hands the short-lived client
// secret to the browser. The server API key never leaves this process.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req session.Request
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
	}

	sess, err := h.negotiator.CreateSession(r.Context(), req)
	if err != nil {
		var scErr *realtime.SessionCreationError
		if errors.As(err, &scErr) {
			slog.ErrorContext(r.Context(), "session negotiation rejected upstream",
				"status", scErr.Status)
			h.writeError(r.Context(), w, "UPSTREAM_ERROR", "Failed to create realtime session", http.StatusBadGateway)
			return
		}
		slog.ErrorContext(r.Context(), "session negotiation failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	resp := map[string]interface{}{
		"data": map[string]interface{}{
			"session_id":    sess.ID,
			"model":         sess.Model,
			"voice":         sess.Voice,
			"client_secret": sess.ClientSecret.Value,
			"expires_at":    sess.ClientSecret.ExpiresAt,
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
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
