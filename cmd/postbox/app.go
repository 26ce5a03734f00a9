package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lalithlochan/postbox/internal/api"
	"github.com/lalithlochan/postbox/internal/circuitbreaker"
	"github.com/lalithlochan/postbox/internal/config"
	"github.com/lalithlochan/postbox/internal/db"
	"github.com/lalithlochan/postbox/internal/i18n"
	"github.com/lalithlochan/postbox/internal/mail"
	"github.com/lalithlochan/postbox/internal/observ"
	"github.com/lalithlochan/postbox/internal/redis"
	"github.com/lalithlochan/postbox/internal/render"
	"github.com/lalithlochan/postbox/internal/sqs"
	"github.com/lalithlochan/postbox/internal/worker"
)

// app holds every long-lived component. Commands build one with newApp and
// must call close.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	database *db.DB
	repo     *db.Repository
	redis    *redis.Client // nil when Redis is disabled or unreachable

	breaker *circuitbreaker.CircuitBreaker
	worker  *worker.Worker
	handler *api.Handler
	limiter *redis.RateLimiter
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	database, err := db.New(ctx, db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
		AppName:  "postbox",
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.database = database
	a.repo = db.NewRepository(database, logger)

	logger.Info("database connection established",
		zap.String("host", cfg.DBHost),
		zap.Int("port", cfg.DBPort),
		zap.String("database", cfg.DBName),
	)

	if cfg.RedisEnabled {
		client, err := redis.New(ctx, redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.Warn("redis unavailable, using database leases without idempotency or rate limiting",
				zap.Error(err),
				zap.String("host", cfg.RedisHost),
			)
		} else {
			a.redis = client
		}
	}

	translator, err := i18n.New(logger)
	if err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}
	renderer, err := render.New()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	transport, err := worker.NewTransport(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create mail transport: %w", err)
	}
	protected := circuitbreaker.Protect(transport, circuitbreaker.Config{
		MaxFailures:         cfg.BreakerMaxFailures,
		RecoveryTimeout:     cfg.BreakerRecovery,
		HalfOpenMaxRequests: 1,
	}, logger)
	a.breaker = protected.Breaker()

	deps := mail.DispatcherDeps{
		Suppression: mail.NewSuppressionList(a.repo, a.repo, mail.MatchMode(cfg.SuppressionMatch)),
		Users:       a.repo,
		Blocks:      a.repo,
		Store:       a.repo,
		Renderer:    renderer,
		Translator:  translator,
		Transport:   protected,
	}
	if cfg.EventsQueueURL != "" {
		producer, err := sqs.NewProducer(ctx, sqs.Config{Region: cfg.AWSRegion, QueueURL: cfg.EventsQueueURL}, logger)
		if err != nil {
			logger.Warn("sqs producer unavailable, delivery events disabled", zap.Error(err))
		} else {
			deps.Events = producer
		}
	}
	dispatcher := mail.NewDispatcher(deps, mail.DispatcherConfig{From: cfg.MailFrom}, logger)

	clock := mail.SystemClock{}
	testRecipient := mail.NewTestRecipient(a.repo, cfg.TestRecipientEmail)
	messages := mail.NewMessageService(a.repo, testRecipient, clock, cfg.ScheduleDelay)
	fanOut := mail.NewFanOut(a.repo, a.repo, messages, testRecipient, clock, logger)

	feedback := mail.NewFeedbackService(a.repo, a.repo, dispatcher, translator, mail.FeedbackConfig{
		Inbox:     cfg.OperatorInboxEmail,
		PublicURL: cfg.PublicURL,
	}, logger)

	verifyURL := cfg.VerifyEmailURL
	if verifyURL == "" {
		verifyURL = strings.TrimRight(cfg.PublicURL, "/") + "/v1/users"
	}
	transactional := mail.NewTransactional(a.repo, a.repo, messages, dispatcher, translator, mail.TransactionalConfig{
		AppName:          cfg.AppName,
		VerifyEmailURL:   verifyURL,
		ResetPasswordURL: cfg.ResetPasswordURL,
	})

	var claimer worker.Claimer = db.NewLeaseClaimer(database, cfg.ClaimTTL)
	if a.redis != nil {
		claimer = redis.NewSendLock(a.redis, cfg.ClaimTTL, logger)
	}

	a.worker = worker.New(a.repo, claimer, dispatcher, fanOut, clock, worker.Config{
		PollInterval: cfg.SweepInterval,
		BatchSize:    cfg.SweepBatchSize,
	}, logger)

	a.handler = api.NewHandler(logger, a.repo, api.Services{
		Messages:      messages,
		FanOut:        fanOut,
		Feedback:      feedback,
		Transactional: transactional,
		Composer:      mail.NewComposer(a.repo),
	})
	if a.redis != nil {
		a.handler.WithIdempotency(redis.NewIdempotencyService(a.redis, logger))
		a.limiter = redis.NewRateLimiter(a.redis, logger, redis.RateLimitConfig{
			Limit:  cfg.RateLimit,
			Window: cfg.RateLimitWindow,
		})
	}

	logger.Info("postbox wired",
		zap.String("provider", protected.Name()),
		zap.Bool("redis", a.redis != nil),
		zap.Bool("events", deps.Events != nil),
		zap.String("suppression_match", cfg.SuppressionMatch),
	)
	return nil
}

func (a *app) routerOptions() api.RouterOptions {
	opts := api.RouterOptions{
		Health:  a.database.Health,
		Breaker: a.breaker,
	}
	if a.limiter != nil {
		opts.Limiter = a.limiter
	}
	return opts
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.database != nil {
		a.database.Close()
	}
	_ = a.logger.Sync()
}
