package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/postbox/internal/db"
	"github.com/lalithlochan/postbox/internal/mail"
	"github.com/lalithlochan/postbox/internal/redis"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Repository is the storage the handlers read and write directly.
type Repository interface {
	GetUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	GetBlocks(ctx context.Context, ids []uuid.UUID) ([]*db.ContentBlock, error)

	ListMessages(ctx context.Context, limit, offset int) ([]*db.Message, error)

	CreateBulkMessage(ctx context.Context, bulk *db.BulkMessage) error
	GetBulkMessage(ctx context.Context, id uuid.UUID) (*db.BulkMessage, error)
	ListBulkMessages(ctx context.Context, limit, offset int) ([]*db.BulkMessage, error)

	ListFeedbackByAuthor(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]*db.FeedbackMessage, error)

	CreateSuppression(ctx context.Context, entry *db.SuppressionEntry) error
	GetSuppression(ctx context.Context, id uuid.UUID) (*db.SuppressionEntry, error)
	UpdateSuppression(ctx context.Context, entry *db.SuppressionEntry) error
	DeleteSuppression(ctx context.Context, id uuid.UUID) error
	ListSuppressions(ctx context.Context, limit, offset int) ([]*db.SuppressionEntry, error)
}

type MessageService interface {
	Create(ctx context.Context, msg *db.Message) error
	Get(ctx context.Context, id uuid.UUID) (*db.Message, error)
}

type BulkDispatcher interface {
	Dispatch(ctx context.Context, bulk *db.BulkMessage) ([]*db.Message, error)
}

type FeedbackService interface {
	Submit(ctx context.Context, category, body string, authorID uuid.UUID) (*db.FeedbackMessage, error)
	MarkRead(ctx context.Context, id uuid.UUID) (*db.FeedbackMessage, error)
}

type TransactionalService interface {
	SendVerification(ctx context.Context, userID uuid.UUID, token string) (*db.Message, mail.Outcome, error)
	SendPasswordReset(ctx context.Context, userID uuid.UUID, key string) (*db.Message, mail.Outcome, error)
}

type BlockComposer interface {
	ComposeAll(ctx context.Context, inputs []mail.BlockInput) ([]uuid.UUID, error)
}

// Idempotency is satisfied by *redis.IdempotencyService.
type Idempotency interface {
	CheckOrReserve(ctx context.Context, scope, key string) (*redis.IdempotencyResult, error)
	Store(ctx context.Context, scope, key string, result *redis.IdempotencyResult) error
	Forget(ctx context.Context, scope, key string) error
}

// Services bundles the domain operations behind the handlers.
type Services struct {
	Messages      MessageService
	FanOut        BulkDispatcher
	Feedback      FeedbackService
	Transactional TransactionalService
	Composer      BlockComposer
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// ListResponse wraps every paginated list.
type ListResponse[T any] struct {
	Data   []T `json:"data"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

type Handler struct {
	logger      *zap.Logger
	repo        Repository
	svc         Services
	idempotency Idempotency // nil if Redis not configured
}

func NewHandler(logger *zap.Logger, repo Repository, svc Services) *Handler {
	return &Handler{
		logger: logger,
		repo:   repo,
		svc:    svc,
	}
}

// WithIdempotency enables Idempotency-Key handling on feedback submission.
func (h *Handler) WithIdempotency(idem Idempotency) *Handler {
	h.idempotency = idem
	return h
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// writeDomainError maps domain and storage errors onto problem responses.
// what names the resource in the not-found title.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error, what string) {
	var verr *mail.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeError(w, http.StatusBadRequest, "validation_error", "Invalid "+verr.Field, verr.Reason)
	case errors.Is(err, mail.ErrValidation):
		h.writeError(w, http.StatusBadRequest, "validation_error", "Invalid request", err.Error())
	case errors.Is(err, db.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", what+" not found", err.Error())
	case errors.Is(err, mail.ErrAlreadySent):
		h.writeError(w, http.StatusConflict, "already_sent", what+" already sent", "")
	default:
		h.logger.Error("request failed", zap.String("resource", what), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to process "+what, "")
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return false
	}
	return true
}

// pathID parses the {id} URL parameter.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid "+what+" ID", "ID must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// pagination reads limit and offset with the defaults of every list.
func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= maxPageSize {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}

func listOf[T any](items []T, limit, offset int) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Data: items, Limit: limit, Offset: offset, Count: len(items)}
}
