package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-frontdesk/internal/config"
	"github.com/hackgods/clinic-frontdesk/internal/domain"
	"github.com/hackgods/clinic-frontdesk/internal/logger"
	redisclient "github.com/hackgods/clinic-frontdesk/internal/redis"
)

// board is a waiting-room display fed from the Redis event channel, so it can
// run on a different machine from the api-server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("config load error")
	}
	log := logger.New(cfg.Env, cfg.LogLevel)

	if !cfg.RedisEnabled() {
		log.Fatal().Msg("board needs REDIS_URL or REDIS_ADDR")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()

	log.Info().Str("channel", cfg.RedisChannel).Msg("board following events")

	for ev := range redisclient.Subscribe(rootCtx, rdb, cfg.RedisChannel) {
		if line := render(ev); line != "" {
			fmt.Println(line)
		}
	}

	log.Info().Msg("board stopped")
}

func render(ev domain.Event) string {
	ts := ev.CreatedAt.Format("15:04")
	switch ev.Type {
	case domain.EventTokenCalled:
		return fmt.Sprintf("[%s] NOW SERVING token %v", ts, ev.Payload["token_number"])
	case domain.EventTokenBooked:
		return fmt.Sprintf("[%s] token %v joined the queue", ts, ev.Payload["token_number"])
	case domain.EventTokenCompleted:
		return fmt.Sprintf("[%s] token %v done", ts, ev.Payload["token_number"])
	case domain.EventTokenCancelled:
		return fmt.Sprintf("[%s] token %v cancelled", ts, ev.Payload["token_number"])
	case domain.EventTokenNoShow:
		return fmt.Sprintf("[%s] token %v missed their turn", ts, ev.Payload["token_number"])
	case domain.EventClinicOpened:
		return fmt.Sprintf("[%s] clinic is open", ts)
	case domain.EventClinicClosed:
		return fmt.Sprintf("[%s] clinic is closed for walk-ins", ts)
	case domain.EventQueueReset:
		return fmt.Sprintf("[%s] new day, queue cleared", ts)
	case domain.EventAppointmentConfirmed:
		return fmt.Sprintf("[%s] appointment at %v checked in", ts, ev.Payload["time_slot"])
	}
	return ""
}
