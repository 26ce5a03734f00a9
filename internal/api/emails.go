package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/postbox/internal/db"
	"github.com/lalithlochan/postbox/internal/mail"
	"github.com/lalithlochan/postbox/internal/observ"
)

// EmailRequest creates a single Message. To may be omitted for test
// messages, which always go to the test recipient.
type EmailRequest struct {
	To                string            `json:"to"`
	Header            string            `json:"header"`
	Category          string            `json:"category"`
	Subject           string            `json:"subject"`
	Language          string            `json:"language"`
	IsTest            bool              `json:"is_test"`
	ScheduledSendTime *time.Time        `json:"scheduled_send_time,omitempty"`
	Blocks            []mail.BlockInput `json:"blocks"`
}

// CreateEmail handles POST /v1/emails
func (h *Handler) CreateEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req EmailRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Subject == "" || (req.To == "" && !req.IsTest) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "subject and to are required")
		return
	}

	msg := &db.Message{
		Header:            req.Header,
		Category:          db.Category(req.Category),
		Subject:           req.Subject,
		Language:          req.Language,
		IsTest:            req.IsTest,
		ScheduledSendTime: req.ScheduledSendTime,
	}

	if req.To != "" {
		user, err := h.repo.GetUserByEmail(ctx, req.To)
		if err != nil {
			h.writeDomainError(w, err, "recipient")
			return
		}
		msg.RecipientID = user.ID
		if msg.Language == "" {
			msg.Language = user.PreferredLanguage
		}
	}

	blockIDs, err := h.svc.Composer.ComposeAll(ctx, req.Blocks)
	if err != nil {
		h.writeDomainError(w, err, "email")
		return
	}
	msg.BlockIDs = blockIDs

	if err := h.svc.Messages.Create(ctx, msg); err != nil {
		h.writeDomainError(w, err, "email")
		return
	}

	h.logger.Info("email created",
		zap.String("id", msg.ID.String()),
		zap.String("to", observ.RedactEmail(req.To)),
		zap.Timep("scheduled_send_time", msg.ScheduledSendTime),
	)
	h.writeJSON(w, http.StatusCreated, msg)
}

// GetEmail handles GET /v1/emails/{id}
func (h *Handler) GetEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "email")
	if !ok {
		return
	}

	msg, err := h.svc.Messages.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err, "email")
		return
	}
	h.writeJSON(w, http.StatusOK, msg)
}

// ListEmails handles GET /v1/emails?limit=10&offset=0
func (h *Handler) ListEmails(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	items, err := h.repo.ListMessages(r.Context(), limit, offset)
	if err != nil {
		h.writeDomainError(w, err, "emails")
		return
	}
	h.writeJSON(w, http.StatusOK, listOf(items, limit, offset))
}

// GetEmailBlocks handles GET /v1/emails/{id}/blocks
func (h *Handler) GetEmailBlocks(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "email")
	if !ok {
		return
	}

	msg, err := h.svc.Messages.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err, "email")
		return
	}

	blocks, err := h.repo.GetBlocks(r.Context(), msg.BlockIDs)
	if err != nil {
		h.writeDomainError(w, err, "block")
		return
	}
	if blocks == nil {
		blocks = []*db.ContentBlock{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"id": msg.ID, "blocks": blocks})
}
