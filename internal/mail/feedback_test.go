package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalithlochan/postbox/internal/db"
)

func TestFeedbackSubmitSendsToInbox(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, MatchExact)
	author := h.store.addUser("author@example.com", db.LanguageEnglish)

	fb, err := h.feedback.Submit(ctx, "BUG", "Crash on login", author.ID)
	require.NoError(t, err)

	assert.Equal(t, db.FeedbackBug, fb.Category)
	assert.Equal(t, "BUG", fb.Subject)
	assert.Equal(t, "BUG from user id:"+author.ID.String(), fb.Header)
	assert.True(t, fb.WasSent)
	require.NotNil(t, fb.SentTime)
	assert.Equal(t, epoch, *fb.SentTime, "feedback is sent without the schedule buffer")
	assert.False(t, fb.WasRead)

	require.Len(t, fb.BlockIDs, 1)
	blocks, err := h.store.GetBlocks(ctx, fb.BlockIDs)
	require.NoError(t, err)
	block := blocks[0]
	assert.Equal(t, "Crash on login", *block.Body)
	assert.True(t, block.HasLink)
	assert.Equal(t, "Mark as read", *block.LinkLabel)
	assert.Equal(t, "https://api.postbox.local/v1/suggestions/"+fb.ID.String()+"/read", *block.LinkURL)

	require.Equal(t, 1, h.transport.count())
	env := h.transport.delivered[0]
	assert.Equal(t, operatorInbox, env.To)
	assert.Equal(t, "BUG", env.Subject)
	assert.Nil(t, h.renderer.last.Footer, "feedback mail has no unsubscribe footer")
}

func TestFeedbackSubmitRejectsUnknownCategory(t *testing.T) {
	h := newHarness(t, MatchExact)
	author := h.store.addUser("author@example.com", db.LanguageEnglish)

	for _, category := range []string{"PRAISE", "", "NOTIFICATION"} {
		fb, err := h.feedback.Submit(context.Background(), category, "hello", author.ID)

		assert.Nil(t, fb)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, category)
		assert.Equal(t, "category", verr.Field)
	}

	assert.Empty(t, h.store.feedback)
	assert.Empty(t, h.store.blocks)
	assert.Zero(t, h.transport.count())
}

func TestFeedbackSubmitNormalizesCategory(t *testing.T) {
	h := newHarness(t, MatchExact)
	author := h.store.addUser("author@example.com", db.LanguageEnglish)

	fb, err := h.feedback.Submit(context.Background(), " suggestion ", "More themes", author.ID)
	require.NoError(t, err)
	assert.Equal(t, db.FeedbackSuggestion, fb.Category)
}

func TestFeedbackSubmitUnknownAuthor(t *testing.T) {
	h := newHarness(t, MatchExact)

	_, err := h.feedback.Submit(context.Background(), "OTHER", "hi", uuid.New())
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Empty(t, h.store.feedback)
}

func TestFeedbackSubmitTransportFailure(t *testing.T) {
	h := newHarness(t, MatchExact)
	author := h.store.addUser("author@example.com", db.LanguageEnglish)
	h.transport.err = errProvider

	fb, err := h.feedback.Submit(context.Background(), "ERROR", "500 on save", author.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errProvider))
	require.NotNil(t, fb, "stored feedback is returned with the send error")
	assert.False(t, fb.WasSent)
}

func TestFeedbackSubmitInboxSuppressed(t *testing.T) {
	h := newHarness(t, MatchExact)
	inbox := h.store.addUser(operatorInbox, db.LanguageEnglish)
	h.store.suppress(inbox.ID, db.CategorySuggestion)
	author := h.store.addUser("author@example.com", db.LanguageEnglish)

	fb, err := h.feedback.Submit(context.Background(), "SUGGESTION", "idea", author.ID)
	require.NoError(t, err)
	assert.False(t, fb.WasSent)
	assert.Zero(t, h.transport.count())
}

func TestFeedbackMarkRead(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, MatchExact)
	author := h.store.addUser("author@example.com", db.LanguageEnglish)

	fb, err := h.feedback.Submit(ctx, "OTHER", "note", author.ID)
	require.NoError(t, err)

	read, err := h.feedback.MarkRead(ctx, fb.ID)
	require.NoError(t, err)
	assert.True(t, read.WasRead)
	assert.True(t, read.WasSent, "mark read touches nothing else")

	_, err = h.feedback.MarkRead(ctx, uuid.New())
	assert.ErrorIs(t, err, db.ErrNotFound)
}
