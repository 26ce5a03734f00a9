package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/postbox/internal/mail"
	"github.com/lalithlochan/postbox/internal/metrics"
)

// ProtectedTransport wraps a mail.Transport with a CircuitBreaker and
// records provider latency.
type ProtectedTransport struct {
	transport mail.Transport
	breaker   *CircuitBreaker
	logger    *zap.Logger
}

func NewProtectedTransport(transport mail.Transport, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedTransport {
	return &ProtectedTransport{
		transport: transport,
		breaker:   breaker,
		logger:    logger,
	}
}

// Protect builds a breaker named after the transport that reports its state
// to the breaker gauge.
func Protect(transport mail.Transport, cfg Config, logger *zap.Logger) *ProtectedTransport {
	cfg.Name = transport.Name()
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = func(name string, to State) { metrics.SetBreakerState(name, int(to)) }
	}
	return NewProtectedTransport(transport, New(cfg, logger), logger)
}

func (p *ProtectedTransport) Name() string { return p.transport.Name() }

// Deliver fails fast with ErrCircuitOpen while the breaker is open.
func (p *ProtectedTransport) Deliver(ctx context.Context, env mail.Envelope) error {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected delivery",
			zap.String("breaker", p.breaker.Name()),
			zap.String("state", p.breaker.GetState().String()),
		)
		return fmt.Errorf("%w: %s transport unavailable", ErrCircuitOpen, p.breaker.Name())
	}

	start := time.Now()
	err := p.transport.Deliver(ctx, env)
	metrics.RecordDelivery(p.transport.Name(), err, time.Since(start))

	switch {
	case err == nil:
		p.breaker.RecordSuccess()
	case errors.Is(err, context.Canceled):
		p.breaker.Abandon()
	default:
		p.breaker.RecordFailure()
		p.logger.Debug("circuit breaker recorded failure",
			zap.String("breaker", p.breaker.Name()),
			zap.Error(err),
		)
	}
	return err
}

func (p *ProtectedTransport) Breaker() *CircuitBreaker {
	return p.breaker
}
