package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"github.com/lalithlochan/postbox/internal/config"
	"github.com/lalithlochan/postbox/internal/mail"
	"github.com/lalithlochan/postbox/internal/observ"
)

// ResendAPI is the part of resend.Client.Emails the transport uses.
type ResendAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type ResendTransport struct {
	emails ResendAPI
	logger *zap.Logger
}

func NewResendTransport(apiKey string, logger *zap.Logger) (*ResendTransport, error) {
	if apiKey == "" {
		return nil, errors.New("resend: api key is required")
	}
	return NewResendTransportWithClient(resend.NewClient(apiKey).Emails, logger), nil
}

func NewResendTransportWithClient(emails ResendAPI, logger *zap.Logger) *ResendTransport {
	return &ResendTransport{emails: emails, logger: logger}
}

func (r *ResendTransport) Name() string { return config.ProviderResend }

func (r *ResendTransport) Deliver(ctx context.Context, env mail.Envelope) error {
	if err := validateEnvelope(env); err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    env.From,
		To:      []string{env.To},
		Subject: env.Subject,
		Html:    env.HTMLBody,
	}
	if env.Tag != "" {
		params.Tags = []resend.Tag{{Name: "category", Value: env.Tag}}
	}

	sent, err := r.emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}

	r.logger.Info("email sent via Resend",
		zap.String("to", observ.RedactEmail(env.To)),
		zap.String("message_id", sent.Id),
	)
	return nil
}
