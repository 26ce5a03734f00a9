package worker

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"github.com/lalithlochan/postbox/internal/config"
	"github.com/lalithlochan/postbox/internal/mail"
	"github.com/lalithlochan/postbox/internal/observ"
)

// SESAPI is the part of the SES client the transport uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESTransport struct {
	client SESAPI
	logger *zap.Logger
}

type SESConfig struct {
	Region string
}

func NewSESTransport(ctx context.Context, cfg SESConfig, logger *zap.Logger) (*SESTransport, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config: %w", err)
	}
	return NewSESTransportWithClient(ses.NewFromConfig(awsCfg), logger), nil
}

func NewSESTransportWithClient(client SESAPI, logger *zap.Logger) *SESTransport {
	return &SESTransport{client: client, logger: logger}
}

func (s *SESTransport) Name() string { return config.ProviderSES }

// Deliver sends an HTML email via AWS SES
func (s *SESTransport) Deliver(ctx context.Context, env mail.Envelope) error {
	if err := validateEnvelope(env); err != nil {
		return err
	}

	input := &ses.SendEmailInput{
		Source: aws.String(env.From),
		Destination: &types.Destination{
			ToAddresses: []string{env.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(env.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(env.HTMLBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}
	if env.Tag != "" {
		input.Tags = []types.MessageTag{{Name: aws.String("category"), Value: aws.String(env.Tag)}}
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send failed: %w", err)
	}

	s.logger.Info("email sent via SES",
		zap.String("to", observ.RedactEmail(env.To)),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)
	return nil
}
