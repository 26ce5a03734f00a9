package api

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/postbox/internal/db"
	"github.com/lalithlochan/postbox/internal/mail"
)

type VerifyEmailRequest struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

type ResetPasswordRequest struct {
	UserID string `json:"user_id"`
	Key    string `json:"key"`
}

type TransactionalResponse struct {
	MessageID string       `json:"message_id"`
	Outcome   mail.Outcome `json:"outcome"`
}

// SendVerificationEmail handles POST /v1/transactional/verify-email
func (h *Handler) SendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if !h.decode(w, r, &req) {
		return
	}
	userID, ok := h.parseUserID(w, req.UserID)
	if !ok {
		return
	}

	msg, outcome, err := h.svc.Transactional.SendVerification(r.Context(), userID, req.Token)
	h.writeTransactional(w, msg, outcome, err)
}

// SendPasswordResetEmail handles POST /v1/transactional/reset-password
func (h *Handler) SendPasswordResetEmail(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	userID, ok := h.parseUserID(w, req.UserID)
	if !ok {
		return
	}

	msg, outcome, err := h.svc.Transactional.SendPasswordReset(r.Context(), userID, req.Key)
	h.writeTransactional(w, msg, outcome, err)
}

func (h *Handler) parseUserID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user_id", "user_id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// writeTransactional answers 200 for sent and suppressed mail. A stored
// message that failed to go out is a 502.
func (h *Handler) writeTransactional(w http.ResponseWriter, msg *db.Message, outcome mail.Outcome, err error) {
	if err != nil && msg != nil && outcome == mail.OutcomeSent {
		h.logger.Warn("transactional email sent but not recorded",
			zap.String("message_id", msg.ID.String()),
			zap.Error(err),
		)
		err = nil
	}
	if err != nil {
		if msg != nil {
			h.writeError(w, http.StatusBadGateway, "delivery_failed", "Email stored but not delivered", msg.ID.String())
			return
		}
		h.writeDomainError(w, err, "user")
		return
	}
	h.writeJSON(w, http.StatusOK, TransactionalResponse{MessageID: msg.ID.String(), Outcome: outcome})
}
