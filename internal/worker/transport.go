package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lalithlochan/postbox/internal/config"
	"github.com/lalithlochan/postbox/internal/mail"
)

var (
	ErrInvalidEnvelope  = errors.New("invalid envelope")
	ErrProviderRejected = errors.New("provider rejected message")
)

// NewTransport builds the mail.Transport named by cfg.MailProvider.
func NewTransport(ctx context.Context, cfg *config.Config, logger *zap.Logger) (mail.Transport, error) {
	switch cfg.MailProvider {
	case config.ProviderSES:
		return NewSESTransport(ctx, SESConfig{Region: cfg.AWSRegion}, logger)
	case config.ProviderPostmark:
		return NewPostmarkTransport(PostmarkConfig{
			ServerToken:  cfg.PostmarkServerToken,
			AccountToken: cfg.PostmarkAccountToken,
		}, logger)
	case config.ProviderResend:
		return NewResendTransport(cfg.ResendAPIKey, logger)
	case config.ProviderLog, "":
		return NewLogTransport(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.MailProvider)
	}
}

func validateEnvelope(env mail.Envelope) error {
	if env.From == "" {
		return fmt.Errorf("%w: missing from", ErrInvalidEnvelope)
	}
	if env.To == "" {
		return fmt.Errorf("%w: missing to", ErrInvalidEnvelope)
	}
	if env.Subject == "" {
		return fmt.Errorf("%w: missing subject", ErrInvalidEnvelope)
	}
	if env.HTMLBody == "" {
		return fmt.Errorf("%w: missing body", ErrInvalidEnvelope)
	}
	return nil
}
