package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hackgods/clinic-frontdesk/internal/api"
	"github.com/hackgods/clinic-frontdesk/internal/appointment"
	"github.com/hackgods/clinic-frontdesk/internal/config"
	"github.com/hackgods/clinic-frontdesk/internal/db"
	"github.com/hackgods/clinic-frontdesk/internal/domain"
	"github.com/hackgods/clinic-frontdesk/internal/events"
	"github.com/hackgods/clinic-frontdesk/internal/logger"
	"github.com/hackgods/clinic-frontdesk/internal/metrics"
	"github.com/hackgods/clinic-frontdesk/internal/queue"
	redisclient "github.com/hackgods/clinic-frontdesk/internal/redis"
	"github.com/hackgods/clinic-frontdesk/internal/worker"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.Env, cfg.LogLevel)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("tz", cfg.Location.String()).
		Bool("postgres", cfg.PostgresEnabled()).
		Bool("redis", cfg.RedisEnabled()).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		pgPool  *pgxpool.Pool
		rdb     *redis.Client
		history events.History
		sinks   []events.Sink
	)

	if cfg.PostgresEnabled() {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.Connect(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()

		pg := events.NewPgHistory(pgPool)
		if err := pg.Migrate(rootCtx); err != nil {
			log.Fatal().Err(err).Msg("event history migration failed")
		}
		history = pg
		log.Info().Msg("connected to Postgres, event history is durable")
	} else {
		history = events.NewMemoryHistory(cfg.EventHistorySize)
	}
	sinks = append(sinks, history)

	if cfg.RedisEnabled() {
		rdb, err = redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis")
			}
		}()
		sinks = append(sinks, redisclient.NewEventPublisher(rdb, cfg.RedisChannel))
		log.Info().Str("channel", cfg.RedisChannel).Msg("connected to Redis, publishing events")
	}

	// The hub and the gauges reference each other, so the stores are
	// created after the metrics and read lazily at scrape time.
	var (
		hub *events.Hub
		q   *queue.Store
	)
	m := metrics.New("clinic", metrics.Gauges{
		Waiting:       func() int { return q.WaitingCount() },
		StreamClients: func() int { return hub.Subscribers() },
	})
	sinks = append(sinks, m)

	hub = events.NewHub(256, log, sinks...)
	clock := domain.ClockIn(cfg.Location)

	q = queue.NewStore(cfg.AvgConsultationMinutes, hub, clock, log.With().Str("store", "queue").Logger())
	appts, err := appointment.NewStore(appointment.DefaultSettings(), hub, clock, log.With().Str("store", "appointment").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("appointment store init failed")
	}

	hubDone := make(chan struct{})
	hubCtx, stopHub := context.WithCancel(context.Background())
	go func() {
		hub.Run(hubCtx)
		close(hubDone)
	}()

	rollover := worker.NewRollover(q, appts, clock, cfg.WorkerInterval, log)
	go rollover.Run(rootCtx)

	router := api.NewRouter(api.RouterConfig{
		Queue:          q,
		Appointments:   appts,
		Hub:            hub,
		History:        history,
		Metrics:        m,
		PgPool:         pgPool,
		Redis:          rdb,
		Logger:         log,
		Env:            cfg.Env,
		Version:        version,
		BookingLimiter: rate.NewLimiter(rate.Limit(cfg.BookingRateLimit), cfg.BookingRateBurst),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return rootCtx },
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}

	// Drain queued events into history and Redis before the pools close.
	stopHub()
	<-hubDone
	log.Info().Int64("dropped_events", hub.Dropped()).Msg("api-server stopped")
}
