package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lalithlochan/postbox/internal/db"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(t time.Time) *fixedClock { return &fixedClock{now: t} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memStore is an in-memory stand-in for db.Repository.
type memStore struct {
	mu           sync.Mutex
	users        []*db.User
	blocks       map[uuid.UUID]*db.ContentBlock
	messages     map[uuid.UUID]*db.Message
	messageOrder []uuid.UUID
	bulks        map[uuid.UUID]*db.BulkMessage
	feedback     map[uuid.UUID]*db.FeedbackMessage
	suppressions []*db.SuppressionEntry

	failCreateFeedback error
}

func newMemStore() *memStore {
	return &memStore{
		blocks:   map[uuid.UUID]*db.ContentBlock{},
		messages: map[uuid.UUID]*db.Message{},
		bulks:    map[uuid.UUID]*db.BulkMessage{},
		feedback: map[uuid.UUID]*db.FeedbackMessage{},
	}
}

func (s *memStore) addUser(email, lang string) *db.User {
	u := &db.User{ID: uuid.New(), Email: email, FirstName: strings.Split(email, "@")[0], PreferredLanguage: lang}
	s.users = append(s.users, u)
	return u
}

func (s *memStore) suppress(userID uuid.UUID, cats ...db.Category) {
	s.suppressions = append(s.suppressions, &db.SuppressionEntry{ID: uuid.New(), UserID: userID, Categories: cats})
}

func (s *memStore) GetUser(_ context.Context, id uuid.UUID) (*db.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", id, db.ErrNotFound)
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (*db.User, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, db.ErrNotFound)
}

func (s *memStore) ListUsers(context.Context) ([]*db.User, error) {
	return append([]*db.User(nil), s.users...), nil
}

func (s *memStore) ListSuppressionsByUser(_ context.Context, userID uuid.UUID) ([]*db.SuppressionEntry, error) {
	var out []*db.SuppressionEntry
	for _, e := range s.suppressions {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) CreateBlock(_ context.Context, b *db.ContentBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[b.ID] = b
	return nil
}

func (s *memStore) GetBlocks(_ context.Context, ids []uuid.UUID) ([]*db.ContentBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*db.ContentBlock, 0, len(ids))
	for _, id := range ids {
		b, ok := s.blocks[id]
		if !ok {
			return nil, fmt.Errorf("block %s: %w", id, db.ErrNotFound)
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *memStore) CreateMessage(_ context.Context, m *db.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.messages[m.ID] = &cp
	s.messageOrder = append(s.messageOrder, m.ID)
	return nil
}

func (s *memStore) UpdateMessage(_ context.Context, m *db.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.messages[m.ID]
	if !ok || stored.WasSent {
		return fmt.Errorf("unsent message %s: %w", m.ID, db.ErrNotFound)
	}
	cp := *m
	cp.WasSent, cp.SentTime = stored.WasSent, stored.SentTime
	s.messages[m.ID] = &cp
	return nil
}

func (s *memStore) GetMessage(_ context.Context, id uuid.UUID) (*db.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, db.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) orderedMessages() []*db.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*db.Message, 0, len(s.messageOrder))
	for _, id := range s.messageOrder {
		cp := *s.messages[id]
		out = append(out, &cp)
	}
	return out
}

func (s *memStore) MarkMessageSent(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || m.WasSent {
		return fmt.Errorf("unsent message %s: %w", id, db.ErrNotFound)
	}
	m.WasSent = true
	m.SentTime = &at
	return nil
}

func (s *memStore) MarkMessageSkipped(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.messages[id]; ok && !m.WasSent {
		m.SkippedAt = &at
	}
	return nil
}

func (s *memStore) MarkFeedbackSent(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fb, ok := s.feedback[id]
	if !ok {
		return fmt.Errorf("feedback %s: %w", id, db.ErrNotFound)
	}
	fb.WasSent = true
	fb.SentTime = &at
	return nil
}

func (s *memStore) CompleteFanOut(_ context.Context, bulkID uuid.UUID, msgs []*db.Message, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bulks[bulkID]; ok {
		if b.WasSent {
			return fmt.Errorf("unsent bulk message %s: %w", bulkID, db.ErrNotFound)
		}
		b.WasSent = true
		b.SentTime = &at
	}
	for _, m := range msgs {
		cp := *m
		s.messages[m.ID] = &cp
		s.messageOrder = append(s.messageOrder, m.ID)
	}
	return nil
}

func (s *memStore) CreateFeedback(_ context.Context, fb *db.FeedbackMessage, b *db.ContentBlock) error {
	if s.failCreateFeedback != nil {
		return s.failCreateFeedback
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[b.ID] = b
	fb.BlockIDs = []uuid.UUID{b.ID}
	s.feedback[fb.ID] = fb
	return nil
}

func (s *memStore) GetFeedback(_ context.Context, id uuid.UUID) (*db.FeedbackMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fb, ok := s.feedback[id]
	if !ok {
		return nil, fmt.Errorf("feedback %s: %w", id, db.ErrNotFound)
	}
	return fb, nil
}

func (s *memStore) MarkFeedbackRead(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fb, ok := s.feedback[id]
	if !ok {
		return fmt.Errorf("feedback %s: %w", id, db.ErrNotFound)
	}
	fb.WasRead = true
	return nil
}

// recordingTransport captures delivered envelopes.
type recordingTransport struct {
	mu        sync.Mutex
	delivered []Envelope
	err       error
}

func (t *recordingTransport) Name() string { return "recording" }

func (t *recordingTransport) Deliver(_ context.Context, env Envelope) error {
	if t.err != nil {
		return t.err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delivered = append(t.delivered, env)
	return nil
}

func (t *recordingTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.delivered)
}

type mapTranslator map[string]string

func (m mapTranslator) T(lang, key string) string {
	if v, ok := m[strings.ToLower(lang)+":"+key]; ok {
		return v
	}
	if v, ok := m["en:"+key]; ok {
		return v
	}
	return key
}

var testTranslations = mapTranslator{
	"en:" + KeyFollowText:      "Follow Us",
	"en:" + KeyUnsubscribeText: "Click here to unsubscribe.",
	"es:" + KeyFollowText:      "Síguenos",
	"en:" + KeyFeedbackLink:    "Mark as read",
	"en:" + KeyGreeting:        "Hi,",
	"en:" + KeyVerifySubject:   "Verify your email",
	"en:" + KeyVerifyHeader:    "Welcome to",
	"en:" + KeyResetSubject:    "Reset your password",
}

// textRenderer flattens the render context so tests can assert on content.
type textRenderer struct {
	err  error
	last RenderContext
}

func (r *textRenderer) Render(name string, rc RenderContext) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.last = rc
	var sb strings.Builder
	sb.WriteString(name + "|" + rc.Header)
	for _, b := range rc.Blocks {
		sb.WriteString("|" + b.Title + "|" + b.Body)
		if b.HasLink {
			sb.WriteString("|" + b.LinkLabel + "=" + b.LinkURL)
		}
	}
	if rc.Footer != nil {
		sb.WriteString("|" + rc.Footer.FollowText + "|" + rc.Footer.UnsubscribeText)
	}
	return sb.String(), nil
}

type recordingPublisher struct {
	events []DeliveryEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e DeliveryEvent) error {
	p.events = append(p.events, e)
	return p.err
}

var errProvider = errors.New("provider unavailable")
