package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/postbox/internal/db"
)

type FeedbackConfig struct {
	Inbox     string
	PublicURL string
}

// FeedbackService records user feedback and mails it to the operator inbox
// immediately.
type FeedbackService struct {
	store      FeedbackStore
	users      UserStore
	dispatcher *Dispatcher
	translator Translator
	config     FeedbackConfig
	logger     *zap.Logger
}

func NewFeedbackService(store FeedbackStore, users UserStore, dispatcher *Dispatcher, tr Translator, cfg FeedbackConfig, logger *zap.Logger) *FeedbackService {
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &FeedbackService{
		store:      store,
		users:      users,
		dispatcher: dispatcher,
		translator: tr,
		config:     cfg,
		logger:     logger,
	}
}

// ReadLink is the operator's mark-as-read URL for a feedback message.
func (s *FeedbackService) ReadLink(id uuid.UUID) string {
	return fmt.Sprintf("%s/v1/suggestions/%s/read", s.config.PublicURL, id)
}

// Submit validates category, stores the feedback with one body block and
// sends it. An invalid category fails before anything is stored. When the
// send fails the stored feedback is returned with the error.
func (s *FeedbackService) Submit(ctx context.Context, category string, body string, authorID uuid.UUID) (*db.FeedbackMessage, error) {
	cat := db.FeedbackCategory(strings.ToUpper(strings.TrimSpace(category)))
	if !cat.Valid() {
		return nil, &ValidationError{Field: "category", Reason: fmt.Sprintf("type %q not allowed", category)}
	}

	author, err := s.users.GetUser(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("submit feedback: %w", err)
	}

	fb := &db.FeedbackMessage{
		ID:       uuid.New(),
		AuthorID: author.ID,
		Category: cat,
		Subject:  string(cat),
		Header:   fmt.Sprintf("%s from user id:%s", cat, author.ID),
	}

	label := s.translator.T(db.LanguageEnglish, KeyFeedbackLink)
	link := s.ReadLink(fb.ID)
	block := NewBlock(BlockInput{
		Title:     strPtr(fb.Header),
		Body:      strPtr(body),
		LinkLabel: &label,
		LinkURL:   &link,
	})

	if err := s.store.CreateFeedback(ctx, fb, block); err != nil {
		return nil, fmt.Errorf("submit feedback: %w", err)
	}

	s.logger.Info("feedback submitted",
		zap.String("feedback_id", fb.ID.String()),
		zap.String("author_id", author.ID.String()),
		zap.String("category", string(cat)),
	)

	if _, err := s.dispatcher.Send(ctx, NewFeedbackSendable(fb, s.config.Inbox)); err != nil {
		return fb, fmt.Errorf("send feedback: %w", err)
	}
	return fb, nil
}

// MarkRead sets was_read and returns the updated feedback.
func (s *FeedbackService) MarkRead(ctx context.Context, id uuid.UUID) (*db.FeedbackMessage, error) {
	if err := s.store.MarkFeedbackRead(ctx, id); err != nil {
		return nil, fmt.Errorf("mark feedback read: %w", err)
	}
	return s.store.GetFeedback(ctx, id)
}
