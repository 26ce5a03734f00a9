package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lalithlochan/postbox/internal/db"
)

// MatchMode selects how a category is compared against an entry.
type MatchMode string

const (
	// MatchExact treats the entry's categories as a set.
	MatchExact MatchMode = "exact"
	// MatchSubstring is case-insensitive containment over the
	// comma-joined category list.
	MatchSubstring MatchMode = "substring"
)

// Recipient is the resolved address of a sendable. UserID is nil when the
// address is not tied to a known user, e.g. the operator inbox.
type Recipient struct {
	UserID *uuid.UUID
	Email  string
}

// SuppressionList answers whether a recipient opted out of a category.
type SuppressionList struct {
	store SuppressionStore
	users UserStore
	mode  MatchMode
}

func NewSuppressionList(store SuppressionStore, users UserStore, mode MatchMode) *SuppressionList {
	if mode == "" {
		mode = MatchExact
	}
	return &SuppressionList{store: store, users: users, mode: mode}
}

// IsSuppressed is a pure read. Addresses with no user are never suppressed.
func (l *SuppressionList) IsSuppressed(ctx context.Context, rcpt Recipient, category db.Category) (bool, error) {
	userID := rcpt.UserID
	if userID == nil {
		user, err := l.users.GetUserByEmail(ctx, rcpt.Email)
		if errors.Is(err, db.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("resolve suppression user: %w", err)
		}
		userID = &user.ID
	}

	entries, err := l.store.ListSuppressionsByUser(ctx, *userID)
	if err != nil {
		return false, fmt.Errorf("list suppressions: %w", err)
	}

	for _, entry := range entries {
		if l.matches(entry.Categories, category) {
			return true, nil
		}
	}
	return false, nil
}

func (l *SuppressionList) matches(categories []db.Category, category db.Category) bool {
	if l.mode == MatchSubstring {
		joined := make([]string, len(categories))
		for i, c := range categories {
			joined[i] = string(c)
		}
		return strings.Contains(
			strings.ToUpper(strings.Join(joined, ",")),
			strings.ToUpper(string(category)),
		)
	}

	for _, c := range categories {
		if c == category {
			return true
		}
	}
	return false
}

// NormalizeCategories validates a suppression category set, upper-cases
// members and drops duplicates while keeping first-seen order.
func NormalizeCategories(in []string) ([]db.Category, error) {
	seen := make(map[db.Category]bool, len(in))
	out := make([]db.Category, 0, len(in))

	for _, raw := range in {
		c := db.Category(strings.ToUpper(strings.TrimSpace(raw)))
		if !c.Valid() {
			return nil, &ValidationError{Field: "categories", Reason: fmt.Sprintf("unknown category %q", raw)}
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}

	if len(out) == 0 {
		return nil, &ValidationError{Field: "categories", Reason: "at least one category is required"}
	}
	if len(out) > db.MaxSuppressedCategories {
		return nil, &ValidationError{
			Field:  "categories",
			Reason: fmt.Sprintf("at most %d categories allowed", db.MaxSuppressedCategories),
		}
	}
	return out, nil
}
