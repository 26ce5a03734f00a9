package mail

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalithlochan/postbox/internal/db"
)

func newTransactional(h *harness) *Transactional {
	return NewTransactional(h.store, h.store, h.messages, h.dispatcher, testTranslations, TransactionalConfig{
		AppName:          "Postbox",
		VerifyEmailURL:   "https://api.postbox.local/v1/users/",
		ResetPasswordURL: "https://app.postbox.local/reset",
	})
}

func TestSendVerification(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, MatchExact)
	u := h.store.addUser("ana@example.com", db.LanguageEnglish)

	msg, outcome, err := newTransactional(h).SendVerification(ctx, u.ID, "tok en")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)

	assert.Equal(t, "Verify your email", msg.Subject)
	assert.Equal(t, "Welcome to Postbox", msg.Header)
	assert.True(t, msg.WasSent)

	blocks, err := h.store.GetBlocks(ctx, msg.BlockIDs)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Hi, ana!", *blocks[0].Title)
	assert.Equal(t, "https://api.postbox.local/v1/users/"+u.ID.String()+"/verify?token=tok+en", *blocks[0].LinkURL)

	require.Equal(t, 1, h.transport.count())
	assert.Equal(t, "ana@example.com", h.transport.delivered[0].To)
}

func TestSendPasswordReset(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, MatchExact)
	u := h.store.addUser("ana@example.com", db.LanguageEnglish)

	msg, _, err := newTransactional(h).SendPasswordReset(ctx, u.ID, "k3y")
	require.NoError(t, err)
	assert.Equal(t, "Reset your password", msg.Subject)

	blocks, err := h.store.GetBlocks(ctx, msg.BlockIDs)
	require.NoError(t, err)
	assert.Equal(t, "https://app.postbox.local/reset/k3y", *blocks[0].LinkURL)
}

func TestTransactionalValidation(t *testing.T) {
	h := newHarness(t, MatchExact)
	tx := newTransactional(h)

	_, _, err := tx.SendVerification(context.Background(), uuid.New(), "")
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = tx.SendPasswordReset(context.Background(), uuid.New(), "key")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestTransactionalSuppressed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, MatchExact)
	u := h.store.addUser("ana@example.com", db.LanguageEnglish)
	h.store.suppress(u.ID, db.CategoryNotification)

	msg, outcome, err := newTransactional(h).SendPasswordReset(ctx, u.ID, "k3y")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuppressed, outcome)
	assert.False(t, msg.WasSent)
	assert.NotNil(t, msg.SkippedAt)
	assert.Zero(t, h.transport.count())
}
