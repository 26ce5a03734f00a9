package mail

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/postbox/internal/db"
)

const (
	testRecipientEmail = "qa@postbox.local"
	operatorInbox      = "feedback@postbox.local"
)

var epoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type harness struct {
	clock      *fixedClock
	store      *memStore
	transport  *recordingTransport
	renderer   *textRenderer
	events     *recordingPublisher
	testUser   *db.User
	test       *TestRecipient
	messages   *MessageService
	dispatcher *Dispatcher
	fanout     *FanOut
	feedback   *FeedbackService
}

func newHarness(t *testing.T, mode MatchMode) *harness {
	t.Helper()

	h := &harness{
		clock:     newFixedClock(epoch),
		store:     newMemStore(),
		transport: &recordingTransport{},
		renderer:  &textRenderer{},
		events:    &recordingPublisher{},
	}
	h.testUser = h.store.addUser(testRecipientEmail, db.LanguageOther)

	logger := zap.NewNop()
	h.test = NewTestRecipient(h.store, testRecipientEmail)
	h.messages = NewMessageService(h.store, h.test, h.clock, DefaultScheduleDelay)
	h.dispatcher = NewDispatcher(DispatcherDeps{
		Suppression: NewSuppressionList(h.store, h.store, mode),
		Users:       h.store,
		Blocks:      h.store,
		Store:       h.store,
		Renderer:    h.renderer,
		Translator:  testTranslations,
		Transport:   h.transport,
		Events:      h.events,
		Clock:       h.clock,
	}, DispatcherConfig{From: "noreply@postbox.local"}, logger)
	h.fanout = NewFanOut(h.store, h.store, h.messages, h.test, h.clock, logger)
	h.feedback = NewFeedbackService(h.store, h.store, h.dispatcher, testTranslations, FeedbackConfig{
		Inbox:     operatorInbox,
		PublicURL: "https://api.postbox.local/",
	}, logger)
	return h
}

func (h *harness) block(title, body string) *db.ContentBlock {
	b := NewBlock(BlockInput{Title: &title, Body: &body})
	_ = h.store.CreateBlock(context.Background(), b)
	return b
}
