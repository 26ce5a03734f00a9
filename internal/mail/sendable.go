package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lalithlochan/postbox/internal/db"
)

// Ref identifies a sendable row.
type Ref struct {
	Kind string
	ID   uuid.UUID
}

func (r Ref) String() string { return r.Kind + ":" + r.ID.String() }

// Sendable is anything the Dispatcher can deliver. The unexported methods
// keep the set closed to the row types of this package.
type Sendable interface {
	Ref() Ref
	Category() db.Category
	Subject() string
	Recipient(ctx context.Context, users UserStore) (Recipient, error)
	RenderContext(ctx context.Context, blocks BlockStore, tr Translator) (RenderContext, error)

	markSent(ctx context.Context, store DeliveryStore, at time.Time) error
	markSkipped(ctx context.Context, store DeliveryStore, at time.Time) error
}

// MessageSendable adapts a stored Message.
type MessageSendable struct {
	Msg *db.Message
}

func NewMessageSendable(msg *db.Message) *MessageSendable {
	return &MessageSendable{Msg: msg}
}

func (s *MessageSendable) Ref() Ref              { return Ref{Kind: db.KindMessage, ID: s.Msg.ID} }
func (s *MessageSendable) Category() db.Category { return s.Msg.Category }
func (s *MessageSendable) Subject() string       { return s.Msg.Subject }

func (s *MessageSendable) Recipient(ctx context.Context, users UserStore) (Recipient, error) {
	user, err := users.GetUser(ctx, s.Msg.RecipientID)
	if err != nil {
		return Recipient{}, fmt.Errorf("load recipient: %w", err)
	}
	return Recipient{UserID: &user.ID, Email: user.Email}, nil
}

func (s *MessageSendable) RenderContext(ctx context.Context, blocks BlockStore, tr Translator) (RenderContext, error) {
	views, err := loadBlockViews(ctx, blocks, s.Msg.BlockIDs)
	if err != nil {
		return RenderContext{}, fmt.Errorf("load blocks: %w", err)
	}
	return RenderContext{
		Language: s.Msg.Language,
		Header:   s.Msg.Header,
		Blocks:   views,
		Footer: &Footer{
			FollowText:      tr.T(s.Msg.Language, KeyFollowText),
			UnsubscribeText: tr.T(s.Msg.Language, KeyUnsubscribeText),
		},
	}, nil
}

func (s *MessageSendable) markSent(ctx context.Context, store DeliveryStore, at time.Time) error {
	if err := store.MarkMessageSent(ctx, s.Msg.ID, at); err != nil {
		return err
	}
	s.Msg.SentTime = &at
	s.Msg.WasSent = true
	return nil
}

func (s *MessageSendable) markSkipped(ctx context.Context, store DeliveryStore, at time.Time) error {
	if err := store.MarkMessageSkipped(ctx, s.Msg.ID, at); err != nil {
		return err
	}
	s.Msg.SkippedAt = &at
	return nil
}

// FeedbackSendable adapts a FeedbackMessage addressed to the operator inbox.
type FeedbackSendable struct {
	Feedback *db.FeedbackMessage
	Inbox    string
}

func NewFeedbackSendable(fb *db.FeedbackMessage, inbox string) *FeedbackSendable {
	return &FeedbackSendable{Feedback: fb, Inbox: inbox}
}

func (s *FeedbackSendable) Ref() Ref { return Ref{Kind: db.KindFeedback, ID: s.Feedback.ID} }

// Category is SUGGESTION for every feedback kind so the inbox can opt out of
// feedback mail as a whole.
func (s *FeedbackSendable) Category() db.Category { return db.CategorySuggestion }
func (s *FeedbackSendable) Subject() string       { return s.Feedback.Subject }

func (s *FeedbackSendable) Recipient(_ context.Context, _ UserStore) (Recipient, error) {
	return Recipient{Email: s.Inbox}, nil
}

func (s *FeedbackSendable) RenderContext(ctx context.Context, blocks BlockStore, _ Translator) (RenderContext, error) {
	views, err := loadBlockViews(ctx, blocks, s.Feedback.BlockIDs)
	if err != nil {
		return RenderContext{}, fmt.Errorf("load blocks: %w", err)
	}
	return RenderContext{
		Language: db.LanguageEnglish,
		Header:   s.Feedback.Header,
		Blocks:   views,
	}, nil
}

func (s *FeedbackSendable) markSent(ctx context.Context, store DeliveryStore, at time.Time) error {
	if err := store.MarkFeedbackSent(ctx, s.Feedback.ID, at); err != nil {
		return err
	}
	s.Feedback.SentTime = &at
	s.Feedback.WasSent = true
	return nil
}

// Feedback is sent once from the submit path and never polled, so a
// suppressed one has nothing to record.
func (s *FeedbackSendable) markSkipped(context.Context, DeliveryStore, time.Time) error {
	return nil
}
