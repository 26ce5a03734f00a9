package mail

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/lalithlochan/postbox/internal/db"
)

type TransactionalConfig struct {
	AppName          string
	VerifyEmailURL   string
	ResetPasswordURL string
}

// Transactional builds account emails and sends them right away.
type Transactional struct {
	users      UserStore
	blocks     BlockStore
	messages   *MessageService
	dispatcher *Dispatcher
	translator Translator
	config     TransactionalConfig
}

func NewTransactional(users UserStore, blocks BlockStore, messages *MessageService, dispatcher *Dispatcher, tr Translator, cfg TransactionalConfig) *Transactional {
	cfg.VerifyEmailURL = strings.TrimRight(cfg.VerifyEmailURL, "/")
	cfg.ResetPasswordURL = strings.TrimRight(cfg.ResetPasswordURL, "/")
	return &Transactional{
		users:      users,
		blocks:     blocks,
		messages:   messages,
		dispatcher: dispatcher,
		translator: tr,
		config:     cfg,
	}
}

// SendVerification mails userID a link that verifies their address.
func (t *Transactional) SendVerification(ctx context.Context, userID uuid.UUID, token string) (*db.Message, Outcome, error) {
	if token == "" {
		return nil, OutcomeFailed, &ValidationError{Field: "token", Reason: "required"}
	}
	user, err := t.users.GetUser(ctx, userID)
	if err != nil {
		return nil, OutcomeFailed, fmt.Errorf("verification email: %w", err)
	}

	lang := user.PreferredLanguage
	link := fmt.Sprintf("%s/%s/verify?token=%s", t.config.VerifyEmailURL, user.ID, url.QueryEscape(token))

	return t.send(ctx, user, accountEmail{
		subject: t.translator.T(lang, KeyVerifySubject),
		header:  t.translator.T(lang, KeyVerifyHeader) + " " + t.config.AppName,
		content: t.translator.T(lang, KeyVerifyContent),
		label:   t.translator.T(lang, KeyVerifyLinkLabel),
		link:    link,
	})
}

// SendPasswordReset mails userID a link carrying their reset key.
func (t *Transactional) SendPasswordReset(ctx context.Context, userID uuid.UUID, key string) (*db.Message, Outcome, error) {
	if key == "" {
		return nil, OutcomeFailed, &ValidationError{Field: "key", Reason: "required"}
	}
	user, err := t.users.GetUser(ctx, userID)
	if err != nil {
		return nil, OutcomeFailed, fmt.Errorf("password reset email: %w", err)
	}

	lang := user.PreferredLanguage
	return t.send(ctx, user, accountEmail{
		subject: t.translator.T(lang, KeyResetSubject),
		header:  t.translator.T(lang, KeyResetHeader),
		content: t.translator.T(lang, KeyResetContent),
		label:   t.translator.T(lang, KeyResetLinkLabel),
		link:    t.config.ResetPasswordURL + "/" + url.PathEscape(key),
	})
}

type accountEmail struct {
	subject string
	header  string
	content string
	label   string
	link    string
}

func (t *Transactional) send(ctx context.Context, user *db.User, e accountEmail) (*db.Message, Outcome, error) {
	lang := user.PreferredLanguage
	title := fmt.Sprintf("%s %s!", t.translator.T(lang, KeyGreeting), user.FirstName)

	block, err := NewComposer(t.blocks).Compose(ctx, BlockInput{
		Title:     &title,
		Body:      &e.content,
		LinkLabel: &e.label,
		LinkURL:   &e.link,
	})
	if err != nil {
		return nil, OutcomeFailed, err
	}

	msg := &db.Message{
		Header:      e.header,
		Category:    db.CategoryNotification,
		Subject:     e.subject,
		RecipientID: user.ID,
		Language:    lang,
		BlockIDs:    []uuid.UUID{block.ID},
	}
	if err := t.messages.Create(ctx, msg); err != nil {
		return nil, OutcomeFailed, err
	}

	outcome, err := t.dispatcher.Send(ctx, NewMessageSendable(msg))
	return msg, outcome, err
}
