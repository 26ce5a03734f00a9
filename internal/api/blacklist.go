package api

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/postbox/internal/db"
	"github.com/lalithlochan/postbox/internal/mail"
)

type BlacklistRequest struct {
	UserID     string   `json:"user_id"`
	Categories []string `json:"categories"`
}

// CreateBlacklistEntry handles POST /v1/blacklist
func (h *Handler) CreateBlacklistEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BlacklistRequest
	if !h.decode(w, r, &req) {
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user_id", "user_id must be a valid UUID")
		return
	}

	categories, err := mail.NormalizeCategories(req.Categories)
	if err != nil {
		h.writeDomainError(w, err, "blacklist entry")
		return
	}

	if _, err := h.repo.GetUser(ctx, userID); err != nil {
		h.writeDomainError(w, err, "user")
		return
	}

	entry := &db.SuppressionEntry{UserID: userID, Categories: categories}
	if err := h.repo.CreateSuppression(ctx, entry); err != nil {
		h.writeDomainError(w, err, "blacklist entry")
		return
	}

	h.logger.Info("blacklist entry created",
		zap.String("id", entry.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int("categories", len(categories)),
	)
	h.writeJSON(w, http.StatusCreated, entry)
}

// GetBlacklistEntry handles GET /v1/blacklist/{id}
func (h *Handler) GetBlacklistEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "blacklist entry")
	if !ok {
		return
	}

	entry, err := h.repo.GetSuppression(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err, "blacklist entry")
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

// UpdateBlacklistEntry handles PUT /v1/blacklist/{id}. Only the category
// set can change.
func (h *Handler) UpdateBlacklistEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.pathID(w, r, "blacklist entry")
	if !ok {
		return
	}

	var req BlacklistRequest
	if !h.decode(w, r, &req) {
		return
	}

	categories, err := mail.NormalizeCategories(req.Categories)
	if err != nil {
		h.writeDomainError(w, err, "blacklist entry")
		return
	}

	entry, err := h.repo.GetSuppression(ctx, id)
	if err != nil {
		h.writeDomainError(w, err, "blacklist entry")
		return
	}
	entry.Categories = categories

	if err := h.repo.UpdateSuppression(ctx, entry); err != nil {
		h.writeDomainError(w, err, "blacklist entry")
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

// DeleteBlacklistEntry handles DELETE /v1/blacklist/{id}
func (h *Handler) DeleteBlacklistEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "blacklist entry")
	if !ok {
		return
	}

	if err := h.repo.DeleteSuppression(r.Context(), id); err != nil {
		h.writeDomainError(w, err, "blacklist entry")
		return
	}

	h.logger.Info("blacklist entry deleted", zap.String("id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

// ListBlacklist handles GET /v1/blacklist?limit=10&offset=0
func (h *Handler) ListBlacklist(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	items, err := h.repo.ListSuppressions(r.Context(), limit, offset)
	if err != nil {
		h.writeDomainError(w, err, "blacklist")
		return
	}
	h.writeJSON(w, http.StatusOK, listOf(items, limit, offset))
}
