package mail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lalithlochan/postbox/internal/db"
)

// DefaultScheduleDelay is the minimum buffer between persisting an unsent
// message and sending it.
const DefaultScheduleDelay = 5 * time.Minute

// ApplyScheduleFloor pushes the scheduled send time of an unsent message to
// now+delay when it is missing or not in the future. Sent messages are left
// untouched.
func ApplyScheduleFloor(msg *db.Message, now time.Time, delay time.Duration) {
	if msg.WasSent {
		return
	}
	if msg.ScheduledSendTime == nil || !msg.ScheduledSendTime.After(now) {
		at := now.Add(delay)
		msg.ScheduledSendTime = &at
	}
}

// TestRecipient resolves the fixed user that receives every test message.
type TestRecipient struct {
	users UserStore
	email string

	mu   sync.Mutex
	user *db.User
}

func NewTestRecipient(users UserStore, email string) *TestRecipient {
	return &TestRecipient{users: users, email: email}
}

func (t *TestRecipient) Email() string { return t.email }

// Resolve returns the test user, caching it after the first successful lookup.
func (t *TestRecipient) Resolve(ctx context.Context) (*db.User, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.user != nil {
		return t.user, nil
	}
	user, err := t.users.GetUserByEmail(ctx, t.email)
	if err != nil {
		return nil, fmt.Errorf("resolve test recipient %s: %w", t.email, err)
	}
	t.user = user
	return user, nil
}

// MessageService persists Messages, applying the test override and the
// scheduling floor on every save.
type MessageService struct {
	store MessageStore
	test  *TestRecipient
	clock Clock
	delay time.Duration
}

func NewMessageService(store MessageStore, test *TestRecipient, clock Clock, delay time.Duration) *MessageService {
	if clock == nil {
		clock = SystemClock{}
	}
	if delay == 0 {
		delay = DefaultScheduleDelay
	}
	return &MessageService{store: store, test: test, clock: clock, delay: delay}
}

// Prepare applies the save rules to msg in memory.
func (s *MessageService) Prepare(ctx context.Context, msg *db.Message) error {
	if msg.WasSent {
		return nil
	}
	if msg.Category == "" {
		msg.Category = db.CategoryNotification
	}
	if msg.Language == "" {
		msg.Language = db.LanguageEnglish
	}
	if msg.IsTest {
		user, err := s.test.Resolve(ctx)
		if err != nil {
			return err
		}
		msg.RecipientID = user.ID
	}
	ApplyScheduleFloor(msg, s.clock.Now(), s.delay)
	return nil
}

// Create stores a new, unsent message.
func (s *MessageService) Create(ctx context.Context, msg *db.Message) error {
	if !msg.Category.Valid() && msg.Category != "" {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", msg.Category)}
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.WasSent = false
	msg.SentTime = nil

	if err := s.Prepare(ctx, msg); err != nil {
		return err
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// Update rewrites an unsent message. Sent messages are frozen.
func (s *MessageService) Update(ctx context.Context, msg *db.Message) error {
	if msg.WasSent {
		return ErrAlreadySent
	}
	if !msg.Category.Valid() {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", msg.Category)}
	}
	if err := s.Prepare(ctx, msg); err != nil {
		return err
	}
	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

func (s *MessageService) Get(ctx context.Context, id uuid.UUID) (*db.Message, error) {
	return s.store.GetMessage(ctx, id)
}
