package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/lalithlochan/postbox/internal/config"
	"github.com/lalithlochan/postbox/internal/mail"
	"github.com/lalithlochan/postbox/internal/observ"
)

// LogTransport only logs envelopes (for testing/development)
type LogTransport struct {
	logger *zap.Logger
}

func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Name() string { return config.ProviderLog }

func (t *LogTransport) Deliver(_ context.Context, env mail.Envelope) error {
	if err := validateEnvelope(env); err != nil {
		return err
	}
	t.logger.Info("email sent",
		zap.String("to", observ.RedactEmail(env.To)),
		zap.String("subject", env.Subject),
		zap.String("tag", env.Tag),
		zap.Int("body_bytes", len(env.HTMLBody)),
	)
	return nil
}
