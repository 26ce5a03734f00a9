package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lalithlochan/postbox/internal/circuitbreaker"
	"github.com/lalithlochan/postbox/internal/metrics"
)

// RouterOptions carries the optional collaborators of the HTTP surface.
type RouterOptions struct {
	Limiter        RateLimiter
	Health         func(ctx context.Context) error
	Breaker        *circuitbreaker.CircuitBreaker
	RequestTimeout time.Duration
}

type healthResponse struct {
	Status   string                `json:"status"`
	Database string                `json:"database"`
	Breaker  *circuitbreaker.Stats `json:"breaker,omitempty"`
}

func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(metrics.Middleware)
	r.Use(RequestLogger(h.logger))

	r.Route("/v1", func(r chi.Router) {
		r.Use(RateLimitMiddleware(opts.Limiter, h.logger, ClientKeyFunc))

		r.Post("/emails", h.CreateEmail)
		r.Get("/emails", h.ListEmails)
		r.Get("/emails/{id}", h.GetEmail)
		r.Get("/emails/{id}/blocks", h.GetEmailBlocks)

		r.Post("/notifications", h.CreateNotification)
		r.Get("/notifications", h.ListNotifications)
		r.Get("/notifications/{id}", h.GetNotification)
		r.Post("/notifications/{id}/dispatch", h.DispatchNotification)

		r.Post("/suggestions", h.SubmitSuggestion)
		r.Get("/suggestions", h.ListSuggestions)
		r.Get("/suggestions/{id}/read", h.MarkSuggestionRead)
		r.Post("/suggestions/{id}/read", h.MarkSuggestionRead)

		r.Post("/blacklist", h.CreateBlacklistEntry)
		r.Get("/blacklist", h.ListBlacklist)
		r.Get("/blacklist/{id}", h.GetBlacklistEntry)
		r.Put("/blacklist/{id}", h.UpdateBlacklistEntry)
		r.Delete("/blacklist/{id}", h.DeleteBlacklistEntry)

		r.Post("/transactional/verify-email", h.SendVerificationEmail)
		r.Post("/transactional/reset-password", h.SendPasswordResetEmail)
	})

	r.Get("/health", h.health(opts))
	r.Handle("/metrics", metrics.Handler())

	return r
}

// health reports 503 when the database is unreachable. An open breaker is
// reported but does not fail the check.
func (h *Handler) health(opts RouterOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Database: "ok"}
		status := http.StatusOK

		if opts.Health != nil {
			if err := opts.Health(r.Context()); err != nil {
				resp.Status = "degraded"
				resp.Database = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		if opts.Breaker != nil {
			stats := opts.Breaker.Stats()
			resp.Breaker = &stats
		}

		h.writeJSON(w, status, resp)
	}
}
