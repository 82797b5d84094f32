package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-frontdesk/internal/appointment"
	"github.com/hackgods/clinic-frontdesk/internal/domain"
)

type QueueResetter interface {
	ResetDay()
}

type MissedSweeper interface {
	SweepMissed(before string) int
}

// Rollover starts each clinic day clean: when the local date changes the
// walk-in queue is reset and earlier appointments that never happened are
// marked no-show.
type Rollover struct {
	queue    QueueResetter
	appts    MissedSweeper
	now      domain.Clock
	interval time.Duration
	log      zerolog.Logger

	lastDate string
}

func NewRollover(q QueueResetter, appts MissedSweeper, now domain.Clock, interval time.Duration, log zerolog.Logger) *Rollover {
	if now == nil {
		now = domain.SystemClock
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Rollover{
		queue:    q,
		appts:    appts,
		now:      now,
		interval: interval,
		log:      log.With().Str("worker", "rollover").Logger(),
	}
}

// Run checks once at startup and then every interval until ctx is done.
func (r *Rollover) Run(ctx context.Context) {
	r.RunOnce()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("stopping rollover worker")
			return
		case <-ticker.C:
			r.RunOnce()
		}
	}
}

// RunOnce reports whether a new day was started. The first call only sweeps,
// since the queue was created fresh for the current day.
func (r *Rollover) RunOnce() bool {
	today := r.now().Format(appointment.DateLayout)
	if today == r.lastDate {
		return false
	}

	first := r.lastDate == ""
	r.lastDate = today

	if !first {
		r.queue.ResetDay()
	}
	swept := r.appts.SweepMissed(today)

	r.log.Info().
		Str("date", today).
		Bool("queue_reset", !first).
		Int("swept_no_show", swept).
		Msg("day rollover")
	return !first
}
