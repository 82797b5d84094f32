package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hackgods/clinic-frontdesk/internal/appointment"
	"github.com/hackgods/clinic-frontdesk/internal/events"
	"github.com/hackgods/clinic-frontdesk/internal/metrics"
	"github.com/hackgods/clinic-frontdesk/internal/queue"
)

type RouterConfig struct {
	Queue        *queue.Store
	Appointments *appointment.Store
	Hub          *events.Hub
	History      events.History
	Metrics      *metrics.Metrics // optional
	PgPool       *pgxpool.Pool    // optional
	Redis        *redis.Client    // optional
	Logger       zerolog.Logger
	Env          string
	Version      string

	// BookingLimiter throttles both booking endpoints. Nil disables it.
	BookingLimiter *rate.Limiter
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))

	limit := func(h http.HandlerFunc) http.Handler {
		if cfg.BookingLimiter == nil {
			return h
		}
		return RateLimitMiddleware(cfg.BookingLimiter)(h)
	}

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	q := cfg.Queue
	r.Route("/queue", func(r chi.Router) {
		r.Post("/open", openClinicHandler(q))
		r.Post("/close", closeClinicHandler(q))
		r.Method(http.MethodPost, "/book", limit(bookTokenHandler(q)))
		r.Post("/call-next", callNextHandler(q))
		r.Post("/complete-current", completeCurrentHandler(q))
		r.Post("/no-show", tokenTransitionHandler(q.MarkNoShow))
		r.Post("/cancel", tokenTransitionHandler(q.Cancel))
		r.Post("/reset", resetQueueHandler(q))
		r.Get("/status", queueStatusHandler(q))
		r.Get("/summary", queueSummaryHandler(q))
		r.Get("/appointments", listTokensHandler(q))
		r.Get("/appointments/{id}", getTokenHandler(q))
	})

	s := cfg.Appointments
	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", listAppointmentsHandler(s))
		r.Method(http.MethodPost, "/book", limit(bookAppointmentHandler(s)))
		r.Get("/slots", availableSlotsHandler(s))
		r.Get("/today", todayAppointmentsHandler(s))
		r.Get("/today/summary", todaySummaryHandler(s))
		r.Post("/confirm", appointmentTransitionHandler(s.Confirm))
		r.Post("/complete", completeAppointmentHandler(s))
		r.Post("/cancel", appointmentTransitionHandler(s.Cancel))
		r.Post("/no-show", appointmentTransitionHandler(s.MarkNoShow))
		r.Get("/{id}", getAppointmentHandler(s))
	})

	r.Get("/settings", getSettingsHandler(s))
	r.Patch("/settings", updateSettingsHandler(s))

	r.Get("/events/stream", streamEventsHandler(cfg.Hub, cfg.Logger))
	if cfg.History != nil {
		r.Get("/events/history/{id}", eventHistoryHandler(cfg.History))
	}

	return r
}
