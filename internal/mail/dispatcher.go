package mail

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/postbox/internal/metrics"
	"github.com/lalithlochan/postbox/internal/observ"
)

// Envelope is what a Transport receives.
type Envelope struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
	Tag      string
}

// Transport hands an envelope to a mail provider synchronously.
type Transport interface {
	Deliver(ctx context.Context, env Envelope) error
	Name() string
}

// Outcome of a Send call.
type Outcome string

const (
	OutcomeSent       Outcome = "sent"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeFailed     Outcome = "failed"
)

// DeliveryEvent is published after every decided dispatch.
type DeliveryEvent struct {
	Kind       string    `json:"kind"`
	ID         string    `json:"id"`
	Category   string    `json:"category"`
	Outcome    Outcome   `json:"outcome"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher is optional. Publish failures are logged, never returned.
type EventPublisher interface {
	Publish(ctx context.Context, event DeliveryEvent) error
}

type DispatcherConfig struct {
	From string
}

// Dispatcher runs suppression check, render, transmit and mark-sent for one
// Sendable. It does not retry.
type Dispatcher struct {
	suppression *SuppressionList
	users       UserStore
	blocks      BlockStore
	store       DeliveryStore
	renderer    Renderer
	translator  Translator
	transport   Transport
	events      EventPublisher
	clock       Clock
	config      DispatcherConfig
	logger      *zap.Logger
}

type DispatcherDeps struct {
	Suppression *SuppressionList
	Users       UserStore
	Blocks      BlockStore
	Store       DeliveryStore
	Renderer    Renderer
	Translator  Translator
	Transport   Transport
	Events      EventPublisher
	Clock       Clock
}

func NewDispatcher(deps DispatcherDeps, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	return &Dispatcher{
		suppression: deps.Suppression,
		users:       deps.Users,
		blocks:      deps.Blocks,
		store:       deps.Store,
		renderer:    deps.Renderer,
		translator:  deps.Translator,
		transport:   deps.Transport,
		events:      deps.Events,
		clock:       deps.Clock,
		config:      cfg,
		logger:      logger,
	}
}

// Send delivers s unless its recipient suppressed s's category. Transport
// errors come back wrapped and leave s unsent.
func (d *Dispatcher) Send(ctx context.Context, s Sendable) (Outcome, error) {
	ref := s.Ref()
	category := s.Category()

	rcpt, err := s.Recipient(ctx, d.users)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("send %s: %w", ref, err)
	}

	suppressed, err := d.suppression.IsSuppressed(ctx, rcpt, category)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("send %s: %w", ref, err)
	}

	if suppressed {
		if err := s.markSkipped(ctx, d.store, d.clock.Now()); err != nil {
			d.logger.Warn("failed to record suppressed message",
				zap.String("ref", ref.String()),
				zap.Error(err),
			)
		}
		d.finish(ctx, s, rcpt, OutcomeSuppressed)
		return OutcomeSuppressed, nil
	}

	rc, err := s.RenderContext(ctx, d.blocks, d.translator)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("send %s: %w", ref, err)
	}

	html, err := d.renderer.Render(TemplateEmail, rc)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("render %s: %w", ref, err)
	}

	env := Envelope{
		From:     d.config.From,
		To:       rcpt.Email,
		Subject:  s.Subject(),
		HTMLBody: html,
		Tag:      string(category),
	}

	if err := d.transport.Deliver(ctx, env); err != nil {
		metrics.RecordDispatch(ref.Kind, string(OutcomeFailed))
		d.logger.Error("message delivery failed",
			zap.String("ref", ref.String()),
			zap.String("transport", d.transport.Name()),
			zap.Error(err),
		)
		return OutcomeFailed, fmt.Errorf("deliver %s: %w", ref, err)
	}

	if err := s.markSent(ctx, d.store, d.clock.Now()); err != nil {
		return OutcomeSent, fmt.Errorf("record sent %s: %w", ref, err)
	}

	d.finish(ctx, s, rcpt, OutcomeSent)
	return OutcomeSent, nil
}

func (d *Dispatcher) finish(ctx context.Context, s Sendable, rcpt Recipient, outcome Outcome) {
	ref := s.Ref()
	metrics.RecordDispatch(ref.Kind, string(outcome))

	d.logger.Info("message "+string(outcome),
		zap.String("ref", ref.String()),
		zap.String("category", string(s.Category())),
		zap.String("to", observ.RedactEmail(rcpt.Email)),
		zap.Bool("sent", outcome == OutcomeSent),
	)

	if d.events == nil {
		return
	}
	event := DeliveryEvent{
		Kind:       ref.Kind,
		ID:         ref.ID.String(),
		Category:   string(s.Category()),
		Outcome:    outcome,
		OccurredAt: d.clock.Now(),
	}
	if err := d.events.Publish(ctx, event); err != nil {
		d.logger.Warn("failed to publish delivery event",
			zap.String("ref", ref.String()),
			zap.Error(err),
		)
	}
}
