package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
	"go.uber.org/zap"

	"github.com/lalithlochan/postbox/internal/config"
	"github.com/lalithlochan/postbox/internal/mail"
	"github.com/lalithlochan/postbox/internal/observ"
)

// PostmarkAPI is the part of the Postmark client the transport uses.
type PostmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

type PostmarkConfig struct {
	ServerToken  string
	AccountToken string
}

type PostmarkTransport struct {
	client PostmarkAPI
	logger *zap.Logger
}

func NewPostmarkTransport(cfg PostmarkConfig, logger *zap.Logger) (*PostmarkTransport, error) {
	if cfg.ServerToken == "" {
		return nil, errors.New("postmark: server token is required")
	}
	return NewPostmarkTransportWithClient(postmark.NewClient(cfg.ServerToken, cfg.AccountToken), logger), nil
}

func NewPostmarkTransportWithClient(client PostmarkAPI, logger *zap.Logger) *PostmarkTransport {
	return &PostmarkTransport{client: client, logger: logger}
}

func (p *PostmarkTransport) Name() string { return config.ProviderPostmark }

// Deliver sends through Postmark's transactional API. Opens and HTML link
// clicks are tracked.
func (p *PostmarkTransport) Deliver(ctx context.Context, env mail.Envelope) error {
	if err := validateEnvelope(env); err != nil {
		return err
	}

	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:       env.From,
		To:         env.To,
		Subject:    env.Subject,
		Tag:        env.Tag,
		HTMLBody:   env.HTMLBody,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return fmt.Errorf("postmark send failed: %w", err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("%w: postmark error %d - %s", ErrProviderRejected, resp.ErrorCode, resp.Message)
	}

	p.logger.Info("email sent via Postmark",
		zap.String("to", observ.RedactEmail(env.To)),
		zap.String("message_id", resp.MessageID),
	)
	return nil
}
