package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/postbox/internal/db"
	"github.com/lalithlochan/postbox/internal/redis"
)

type SuggestionRequest struct {
	Category string `json:"category"`
	Content  string `json:"content"`
	AuthorID string `json:"author_id"`
}

// SubmitSuggestion handles POST /v1/suggestions
// Supports idempotency via the Idempotency-Key header.
func (h *Handler) SubmitSuggestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SuggestionRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.Content == "" || req.AuthorID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "content and author_id are required")
		return
	}
	if req.Category == "" {
		req.Category = string(db.FeedbackSuggestion)
	}

	authorID, err := uuid.Parse(req.AuthorID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid author_id", "author_id must be a valid UUID")
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	scope := IPKeyFunc(r)
	useIdempotency := idempotencyKey != "" && h.idempotency != nil

	if useIdempotency {
		cached, err := h.idempotency.CheckOrReserve(ctx, scope, idempotencyKey)
		switch {
		case errors.Is(err, redis.ErrDuplicateRequest):
			h.writeError(w, http.StatusConflict, "duplicate_request",
				"Request is already being processed",
				"Another request with this idempotency key is in progress")
			return
		case err != nil:
			h.logger.Warn("idempotency check failed, proceeding",
				zap.Error(err),
				zap.String("idempotency_key", idempotencyKey),
			)
			useIdempotency = false
		case cached != nil:
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Idempotency-Replayed", "true")
			w.WriteHeader(cached.StatusCode)
			_, _ = w.Write(cached.Body)
			return
		}
	}

	fb, err := h.svc.Feedback.Submit(ctx, req.Category, req.Content, authorID)
	if err != nil {
		if useIdempotency {
			if ferr := h.idempotency.Forget(ctx, scope, idempotencyKey); ferr != nil {
				h.logger.Warn("failed to release idempotency key", zap.Error(ferr))
			}
		}
		if fb != nil {
			h.logger.Error("feedback stored but not delivered",
				zap.Error(err),
				zap.String("feedback_id", fb.ID.String()),
			)
			h.writeError(w, http.StatusBadGateway, "delivery_failed", "Feedback stored but not delivered", fb.ID.String())
			return
		}
		h.writeDomainError(w, err, "author")
		return
	}

	body, err := json.Marshal(fb)
	if err != nil {
		h.writeDomainError(w, err, "suggestion")
		return
	}

	if useIdempotency {
		result := &redis.IdempotencyResult{
			ResourceID: fb.ID.String(),
			StatusCode: http.StatusCreated,
			Body:       body,
		}
		if err := h.idempotency.Store(ctx, scope, idempotencyKey, result); err != nil {
			h.logger.Warn("failed to store idempotency result",
				zap.Error(err),
				zap.String("idempotency_key", idempotencyKey),
			)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

// MarkSuggestionRead handles GET and POST /v1/suggestions/{id}/read. GET is
// what the operator's email link issues.
func (h *Handler) MarkSuggestionRead(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "suggestion")
	if !ok {
		return
	}

	fb, err := h.svc.Feedback.MarkRead(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err, "suggestion")
		return
	}

	h.logger.Info("suggestion marked read", zap.String("id", id.String()))
	h.writeJSON(w, http.StatusOK, fb)
}

// ListSuggestions handles GET /v1/suggestions?author_id=xxx&limit=10&offset=0
func (h *Handler) ListSuggestions(w http.ResponseWriter, r *http.Request) {
	authorStr := r.URL.Query().Get("author_id")
	if authorStr == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing author_id", "author_id query parameter is required")
		return
	}
	authorID, err := uuid.Parse(authorStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid author_id", "author_id must be a valid UUID")
		return
	}

	limit, offset := pagination(r)
	items, err := h.repo.ListFeedbackByAuthor(r.Context(), authorID, limit, offset)
	if err != nil {
		h.writeDomainError(w, err, "suggestions")
		return
	}

	h.writeJSON(w, http.StatusOK, listOf(items, limit, offset))
}
