package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/postbox/internal/db"
	"github.com/lalithlochan/postbox/internal/metrics"
)

// FanOut expands a BulkMessage into per-user Messages.
type FanOut struct {
	users    UserStore
	store    BulkStore
	messages *MessageService
	test     *TestRecipient
	clock    Clock
	logger   *zap.Logger
}

func NewFanOut(users UserStore, store BulkStore, messages *MessageService, test *TestRecipient, clock Clock, logger *zap.Logger) *FanOut {
	if clock == nil {
		clock = SystemClock{}
	}
	return &FanOut{
		users:    users,
		store:    store,
		messages: messages,
		test:     test,
		clock:    clock,
		logger:   logger,
	}
}

// Plan builds the Messages a dispatch of bulk would create, without storing
// them: one per user whose preferred language matches (skipped for test
// bulk messages), in user order, then one for the test recipient.
func (f *FanOut) Plan(ctx context.Context, bulk *db.BulkMessage) ([]*db.Message, error) {
	var messages []*db.Message

	if !bulk.IsTest {
		users, err := f.users.ListUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		for _, user := range users {
			if user.PreferredLanguage != bulk.Language {
				continue
			}
			messages = append(messages, messageFromBulk(bulk, user.ID))
		}
	}

	testUser, err := f.test.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	messages = append(messages, messageFromBulk(bulk, testUser.ID))

	for _, msg := range messages {
		if err := f.messages.Prepare(ctx, msg); err != nil {
			return nil, err
		}
	}
	return messages, nil
}

// Dispatch plans the fan-out, stores every Message and marks bulk sent.
func (f *FanOut) Dispatch(ctx context.Context, bulk *db.BulkMessage) ([]*db.Message, error) {
	if bulk.WasSent {
		return nil, fmt.Errorf("dispatch bulk %s: %w", bulk.ID, ErrAlreadySent)
	}

	messages, err := f.Plan(ctx, bulk)
	if err != nil {
		return nil, fmt.Errorf("dispatch bulk %s: %w", bulk.ID, err)
	}

	now := f.clock.Now()
	if err := f.store.CompleteFanOut(ctx, bulk.ID, messages, now); err != nil {
		// another dispatch marked it sent after bulk was read
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("dispatch bulk %s: %w", bulk.ID, ErrAlreadySent)
		}
		return nil, fmt.Errorf("dispatch bulk %s: %w", bulk.ID, err)
	}
	bulk.SentTime = &now
	bulk.WasSent = true

	metrics.RecordFanOut(len(messages))
	f.logger.Info("bulk message dispatched",
		zap.String("bulk_id", bulk.ID.String()),
		zap.String("language", bulk.Language),
		zap.Bool("is_test", bulk.IsTest),
		zap.Int("messages", len(messages)),
	)
	return messages, nil
}

func messageFromBulk(bulk *db.BulkMessage, recipientID uuid.UUID) *db.Message {
	blockIDs := make([]uuid.UUID, len(bulk.BlockIDs))
	copy(blockIDs, bulk.BlockIDs)

	var scheduled = bulk.ScheduledSendTime
	if scheduled != nil {
		t := *scheduled
		scheduled = &t
	}

	return &db.Message{
		ID:                uuid.New(),
		Header:            bulk.Header,
		Category:          bulk.Category,
		Subject:           bulk.Subject,
		RecipientID:       recipientID,
		Language:          bulk.Language,
		BlockIDs:          blockIDs,
		IsTest:            bulk.IsTest,
		ScheduledSendTime: scheduled,
	}
}

// PrepareBulk fills the defaults of a new bulk message and checks its
// category.
func PrepareBulk(bulk *db.BulkMessage) error {
	if bulk.Category == "" {
		bulk.Category = db.CategoryNotification
	}
	if !bulk.Category.Valid() {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", bulk.Category)}
	}
	bulk.Language = strings.ToUpper(strings.TrimSpace(bulk.Language))
	if bulk.Language == "" {
		bulk.Language = db.LanguageEnglish
	}
	if bulk.ID == uuid.Nil {
		bulk.ID = uuid.New()
	}
	bulk.WasSent = false
	bulk.SentTime = nil
	return nil
}
