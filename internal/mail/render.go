package mail

import (
	"context"

	"github.com/google/uuid"

	"github.com/lalithlochan/postbox/internal/db"
)

// TemplateEmail is the single layout every sendable renders through.
const TemplateEmail = "email"

// Translation keys used by the core.
const (
	KeyFollowText      = "email.follow_text"
	KeyUnsubscribeText = "email.unsubscribe_text"
	KeyGreeting        = "email.greeting"
	KeyFeedbackLink    = "feedback.link_label"

	KeyVerifySubject   = "verify_email.subject"
	KeyVerifyHeader    = "verify_email.header"
	KeyVerifyContent   = "verify_email.content"
	KeyVerifyLinkLabel = "verify_email.link_label"

	KeyResetSubject   = "reset_password.subject"
	KeyResetHeader    = "reset_password.header"
	KeyResetContent   = "reset_password.content"
	KeyResetLinkLabel = "reset_password.link_label"
)

// Translator looks up a localized string. Unknown keys come back unchanged.
type Translator interface {
	T(lang, key string) string
}

// Renderer turns a render context into an HTML body.
type Renderer interface {
	Render(name string, rc RenderContext) (string, error)
}

type BlockView struct {
	Title     string
	Body      string
	HasLink   bool
	LinkLabel string
	LinkURL   string
}

// Footer is only present for user-addressed messages.
type Footer struct {
	FollowText      string
	UnsubscribeText string
}

type RenderContext struct {
	Language string
	Header   string
	Blocks   []BlockView
	Footer   *Footer
}

func blockViews(blocks []*db.ContentBlock) []BlockView {
	views := make([]BlockView, 0, len(blocks))
	for _, b := range blocks {
		views = append(views, BlockView{
			Title:     deref(b.Title),
			Body:      deref(b.Body),
			HasLink:   b.HasLink,
			LinkLabel: deref(b.LinkLabel),
			LinkURL:   deref(b.LinkURL),
		})
	}
	return views
}

func loadBlockViews(ctx context.Context, store BlockStore, ids []uuid.UUID) ([]BlockView, error) {
	if len(ids) == 0 {
		return []BlockView{}, nil
	}
	blocks, err := store.GetBlocks(ctx, ids)
	if err != nil {
		return nil, err
	}
	return blockViews(blocks), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
