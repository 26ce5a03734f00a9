package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/postbox/internal/db"
	"github.com/lalithlochan/postbox/internal/mail"
)

// NotificationRequest creates a BulkMessage.
type NotificationRequest struct {
	Header            string            `json:"header"`
	Category          string            `json:"category"`
	Subject           string            `json:"subject"`
	Language          string            `json:"language"`
	IsTest            bool              `json:"is_test"`
	ScheduledSendTime *time.Time        `json:"scheduled_send_time,omitempty"`
	Blocks            []mail.BlockInput `json:"blocks"`
}

type DispatchResponse struct {
	ID       string `json:"id"`
	Messages int    `json:"messages"`
}

// CreateNotification handles POST /v1/notifications
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req NotificationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Subject == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "subject is required")
		return
	}

	bulk := &db.BulkMessage{
		Header:            req.Header,
		Category:          db.Category(req.Category),
		Subject:           req.Subject,
		Language:          req.Language,
		IsTest:            req.IsTest,
		ScheduledSendTime: req.ScheduledSendTime,
	}
	if err := mail.PrepareBulk(bulk); err != nil {
		h.writeDomainError(w, err, "notification")
		return
	}

	blockIDs, err := h.svc.Composer.ComposeAll(ctx, req.Blocks)
	if err != nil {
		h.writeDomainError(w, err, "notification")
		return
	}
	bulk.BlockIDs = blockIDs

	if err := h.repo.CreateBulkMessage(ctx, bulk); err != nil {
		h.writeDomainError(w, err, "notification")
		return
	}

	h.logger.Info("notification created",
		zap.String("id", bulk.ID.String()),
		zap.String("language", bulk.Language),
		zap.Bool("is_test", bulk.IsTest),
	)
	h.writeJSON(w, http.StatusCreated, bulk)
}

// GetNotification handles GET /v1/notifications/{id}
func (h *Handler) GetNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "notification")
	if !ok {
		return
	}

	bulk, err := h.repo.GetBulkMessage(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err, "notification")
		return
	}
	h.writeJSON(w, http.StatusOK, bulk)
}

// ListNotifications handles GET /v1/notifications?limit=10&offset=0
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	items, err := h.repo.ListBulkMessages(r.Context(), limit, offset)
	if err != nil {
		h.writeDomainError(w, err, "notifications")
		return
	}
	h.writeJSON(w, http.StatusOK, listOf(items, limit, offset))
}

// DispatchNotification handles POST /v1/notifications/{id}/dispatch. The
// fan-out happens now; the resulting messages still wait for their
// scheduled time.
func (h *Handler) DispatchNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.pathID(w, r, "notification")
	if !ok {
		return
	}

	bulk, err := h.repo.GetBulkMessage(ctx, id)
	if err != nil {
		h.writeDomainError(w, err, "notification")
		return
	}

	messages, err := h.svc.FanOut.Dispatch(ctx, bulk)
	if err != nil {
		h.writeDomainError(w, err, "notification")
		return
	}

	h.writeJSON(w, http.StatusOK, DispatchResponse{ID: bulk.ID.String(), Messages: len(messages)})
}
