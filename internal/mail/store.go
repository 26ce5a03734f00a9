package mail

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lalithlochan/postbox/internal/db"
)

type BlockStore interface {
	CreateBlock(ctx context.Context, block *db.ContentBlock) error
	GetBlocks(ctx context.Context, ids []uuid.UUID) ([]*db.ContentBlock, error)
}

type UserStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	ListUsers(ctx context.Context) ([]*db.User, error)
}

type SuppressionStore interface {
	ListSuppressionsByUser(ctx context.Context, userID uuid.UUID) ([]*db.SuppressionEntry, error)
}

type MessageStore interface {
	CreateMessage(ctx context.Context, msg *db.Message) error
	UpdateMessage(ctx context.Context, msg *db.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*db.Message, error)
}

// DeliveryStore persists the outcome of a dispatch.
type DeliveryStore interface {
	MarkMessageSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkMessageSkipped(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFeedbackSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
}

type BulkStore interface {
	CompleteFanOut(ctx context.Context, bulkID uuid.UUID, messages []*db.Message, sentAt time.Time) error
}

type FeedbackStore interface {
	CreateFeedback(ctx context.Context, fb *db.FeedbackMessage, block *db.ContentBlock) error
	GetFeedback(ctx context.Context, id uuid.UUID) (*db.FeedbackMessage, error)
	MarkFeedbackRead(ctx context.Context, id uuid.UUID) error
}
