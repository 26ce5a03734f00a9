package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalithlochan/postbox/internal/db"
)

func TestSuppressionListModes(t *testing.T) {
	store := newMemStore()
	u := store.addUser("u@example.com", db.LanguageEnglish)
	store.suppress(u.ID, db.CategoryPromotion, db.CategoryInvoice)

	tests := []struct {
		name     string
		mode     MatchMode
		category db.Category
		want     bool
	}{
		{"exact member", MatchExact, db.CategoryPromotion, true},
		{"exact second member", MatchExact, db.CategoryInvoice, true},
		{"exact non member", MatchExact, db.CategoryGeneral, false},
		{"exact partial name", MatchExact, "PROMO", false},
		{"substring partial name", MatchSubstring, "PROMO", true},
		{"substring lower case", MatchSubstring, "invoice", true},
		{"substring non member", MatchSubstring, db.CategorySettings, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := NewSuppressionList(store, store, tt.mode)
			got, err := list.IsSuppressed(context.Background(), Recipient{UserID: &u.ID, Email: u.Email}, tt.category)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSuppressionListByEmail(t *testing.T) {
	store := newMemStore()
	u := store.addUser("Known@Example.com", db.LanguageEnglish)
	store.suppress(u.ID, db.CategorySuggestion)
	list := NewSuppressionList(store, store, "")

	got, err := list.IsSuppressed(context.Background(), Recipient{Email: "known@example.com"}, db.CategorySuggestion)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = list.IsSuppressed(context.Background(), Recipient{Email: "stranger@example.com"}, db.CategorySuggestion)
	require.NoError(t, err)
	assert.False(t, got, "addresses without a user are never suppressed")
}

func TestNormalizeCategories(t *testing.T) {
	got, err := NormalizeCategories([]string{"promotion", "INVOICE", "Promotion"})
	require.NoError(t, err)
	assert.Equal(t, []db.Category{db.CategoryPromotion, db.CategoryInvoice}, got)

	_, err = NormalizeCategories([]string{"PROMOTION", "NEWSLETTER"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NormalizeCategories(nil)
	assert.ErrorIs(t, err, ErrValidation)

	all := []string{"NOTIFICATION", "PROMOTION", "GENERAL", "SETTINGS", "INVOICE", "SUGGESTION"}
	_, err = NormalizeCategories(all)
	assert.ErrorIs(t, err, ErrValidation, "six categories exceed the limit")

	got, err = NormalizeCategories(all[:5])
	require.NoError(t, err)
	assert.Len(t, got, 5)
}
