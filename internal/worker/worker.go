package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lalithlochan/postbox/internal/db"
	"github.com/lalithlochan/postbox/internal/mail"
	"github.com/lalithlochan/postbox/internal/metrics"
)

const (
	sweepMessages = "messages"
	sweepBulk     = "bulk"
)

// Repository lists candidate rows and re-reads a row once it is claimed, so a
// sweep never acts on a snapshot another worker has already sent.
type Repository interface {
	ListDueMessages(ctx context.Context, now time.Time, limit int) ([]*db.Message, error)
	ListPendingBulkMessages(ctx context.Context, limit int) ([]*db.BulkMessage, error)
	GetMessage(ctx context.Context, id uuid.UUID) (*db.Message, error)
	GetBulkMessage(ctx context.Context, id uuid.UUID) (*db.BulkMessage, error)
}

// Claimer hands out exclusive send rights for one row. db.LeaseClaimer and
// redis.SendLock both satisfy it.
type Claimer interface {
	Claim(ctx context.Context, kind string, id uuid.UUID) (bool, error)
	Release(ctx context.Context, kind string, id uuid.UUID) error
}

type Dispatcher interface {
	Send(ctx context.Context, s mail.Sendable) (mail.Outcome, error)
}

type FanOut interface {
	Dispatch(ctx context.Context, bulk *db.BulkMessage) ([]*db.Message, error)
}

type Worker struct {
	repo       Repository
	claimer    Claimer
	dispatcher Dispatcher
	fanOut     FanOut
	clock      mail.Clock
	config     Config
	logger     *zap.Logger
}

type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

func New(repo Repository, claimer Claimer, dispatcher Dispatcher, fanOut FanOut, clock mail.Clock, cfg Config, logger *zap.Logger) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if clock == nil {
		clock = mail.SystemClock{}
	}

	return &Worker{
		repo:       repo,
		claimer:    claimer,
		dispatcher: dispatcher,
		fanOut:     fanOut,
		clock:      clock,
		config:     cfg,
		logger:     logger,
	}
}

// Start runs the message and bulk sweeps on their own tickers until ctx is
// cancelled.
func (w *Worker) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w.loop(ctx, sweepMessages, func(ctx context.Context) error {
			_, err := w.SweepMessages(ctx)
			return err
		})
		return nil
	})
	g.Go(func() error {
		w.loop(ctx, sweepBulk, func(ctx context.Context) error {
			_, err := w.SweepBulk(ctx)
			return err
		})
		return nil
	})
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context, name string, sweep func(context.Context) error) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sweep stopping", zap.String("sweep", name))
			return
		case <-ticker.C:
			if err := sweep(ctx); err != nil {
				w.logger.Error("sweep failed", zap.String("sweep", name), zap.Error(err))
			}
		}
	}
}

// RunOnce runs both sweeps a single time, bulk first so freshly fanned-out
// messages that are already due go out in the same pass.
func (w *Worker) RunOnce(ctx context.Context) error {
	_, bulkErr := w.SweepBulk(ctx)
	_, msgErr := w.SweepMessages(ctx)
	return errors.Join(bulkErr, msgErr)
}

// SweepMessages sends every due message it can claim and returns how many
// reached a final outcome. Failed rows are released and retried next pass.
func (w *Worker) SweepMessages(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { metrics.RecordSweep(sweepMessages, time.Since(start)) }()

	due, err := w.repo.ListDueMessages(ctx, w.clock.Now(), w.config.BatchSize)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, msg := range due {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if w.processMessage(ctx, msg) {
			done++
		}
	}
	return done, nil
}

func (w *Worker) processMessage(ctx context.Context, listed *db.Message) bool {
	if !w.claim(ctx, sweepMessages, db.KindMessage, listed.ID) {
		return false
	}

	// the listed row may be stale once a claim expires under another worker
	msg, err := w.repo.GetMessage(ctx, listed.ID)
	if err != nil {
		w.logger.Error("failed to reload claimed message",
			zap.String("id", listed.ID.String()),
			zap.Error(err),
		)
		metrics.RecordSweepRow(sweepMessages, "failed")
		w.release(ctx, db.KindMessage, listed.ID)
		return false
	}
	if msg.WasSent || msg.SkippedAt != nil {
		metrics.RecordSweepRow(sweepMessages, "already_sent")
		return false
	}

	outcome, err := w.dispatcher.Send(ctx, mail.NewMessageSendable(msg))
	if err != nil {
		w.logger.Error("failed to send message",
			zap.String("id", msg.ID.String()),
			zap.String("outcome", string(outcome)),
			zap.Error(err),
		)
		metrics.RecordSweepRow(sweepMessages, "failed")
		// a sent message whose bookkeeping failed must not go out again
		if outcome != mail.OutcomeSent {
			w.release(ctx, db.KindMessage, msg.ID)
		}
		return false
	}

	metrics.RecordSweepRow(sweepMessages, string(outcome))
	return true
}

// SweepBulk fans out every pending bulk message it can claim.
func (w *Worker) SweepBulk(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { metrics.RecordSweep(sweepBulk, time.Since(start)) }()

	pending, err := w.repo.ListPendingBulkMessages(ctx, w.config.BatchSize)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, bulk := range pending {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if w.processBulk(ctx, bulk) {
			done++
		}
	}
	return done, nil
}

func (w *Worker) processBulk(ctx context.Context, listed *db.BulkMessage) bool {
	if !w.claim(ctx, sweepBulk, db.KindBulk, listed.ID) {
		return false
	}

	bulk, err := w.repo.GetBulkMessage(ctx, listed.ID)
	if err != nil {
		w.logger.Error("failed to reload claimed bulk message",
			zap.String("id", listed.ID.String()),
			zap.Error(err),
		)
		metrics.RecordSweepRow(sweepBulk, "failed")
		w.release(ctx, db.KindBulk, listed.ID)
		return false
	}
	if bulk.WasSent {
		metrics.RecordSweepRow(sweepBulk, "already_sent")
		return false
	}

	messages, err := w.fanOut.Dispatch(ctx, bulk)
	if err != nil {
		if errors.Is(err, mail.ErrAlreadySent) {
			metrics.RecordSweepRow(sweepBulk, "already_sent")
			return false
		}
		w.logger.Error("failed to fan out bulk message",
			zap.String("id", bulk.ID.String()),
			zap.Error(err),
		)
		metrics.RecordSweepRow(sweepBulk, "failed")
		w.release(ctx, db.KindBulk, bulk.ID)
		return false
	}

	w.logger.Debug("bulk message fanned out",
		zap.String("id", bulk.ID.String()),
		zap.Int("messages", len(messages)),
	)
	metrics.RecordSweepRow(sweepBulk, "fanned_out")
	return true
}

func (w *Worker) claim(ctx context.Context, sweep, kind string, id uuid.UUID) bool {
	ok, err := w.claimer.Claim(ctx, kind, id)
	if err != nil {
		w.logger.Error("failed to claim row",
			zap.String("kind", kind),
			zap.String("id", id.String()),
			zap.Error(err),
		)
		metrics.RecordSweepRow(sweep, "claim_error")
		return false
	}
	if !ok {
		metrics.RecordSweepRow(sweep, "contended")
	}
	return ok
}

func (w *Worker) release(ctx context.Context, kind string, id uuid.UUID) {
	if err := w.claimer.Release(ctx, kind, id); err != nil {
		w.logger.Warn("failed to release claim",
			zap.String("kind", kind),
			zap.String("id", id.String()),
			zap.Error(err),
		)
	}
}
