package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-frontdesk/internal/domain"
)

// Sink consumes committed events off the store's critical path.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev domain.Event) error
}

// Filter selects the events a subscriber wants. A nil filter accepts all.
type Filter func(ev domain.Event) bool

// queueMovement lists queue events that can change a waiting token's position
// or live wait even though they are about some other token.
var queueMovement = map[string]bool{
	domain.EventTokenCalled:    true,
	domain.EventTokenCancelled: true,
	domain.EventTokenNoShow:    true,
	domain.EventQueueReset:     true,
}

// ForAppointment matches events about one appointment or token, plus every
// queue event that moves the line, so a tracking screen can refresh its
// position without polling.
func ForAppointment(id string) Filter {
	return func(ev domain.Event) bool {
		if ev.AppointmentID == id {
			return true
		}
		return ev.Source == domain.SourceQueue && queueMovement[ev.Type]
	}
}

type subscription struct {
	ch     chan domain.Event
	filter Filter
}

// Hub implements domain.Notifier. Subscribers get events pushed on buffered
// channels; sinks are fed asynchronously by Run. Neither path ever blocks
// the notifying store: full buffers drop the event.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscription
	nextID  uint64
	queue   chan domain.Event
	sinks   []Sink
	timeout time.Duration
	dropped atomic.Int64
	log     zerolog.Logger
}

func NewHub(buffer int, log zerolog.Logger, sinks ...Sink) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	return &Hub{
		subs:    make(map[uint64]*subscription),
		queue:   make(chan domain.Event, buffer),
		sinks:   sinks,
		timeout: 2 * time.Second,
		log:     log.With().Str("component", "events").Logger(),
	}
}

func (h *Hub) Notify(ev domain.Event) {
	h.mu.RLock()
	for _, sub := range h.subs {
		if sub.filter != nil && !sub.filter(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
	h.mu.RUnlock()

	if len(h.sinks) == 0 {
		return
	}
	select {
	case h.queue <- ev:
	default:
		h.dropped.Add(1)
		h.log.Warn().Str("event_type", ev.Type).Msg("sink queue full, event dropped")
	}
}

// Subscribe registers a listener. The returned cancel func unregisters it and
// closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(filter Filter, buffer int) (<-chan domain.Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &subscription{ch: make(chan domain.Event, buffer), filter: filter}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped counts events that a full subscriber buffer or sink queue discarded.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Run feeds queued events to the sinks until ctx is done, then flushes what
// is already queued.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.flush()
			return
		case ev := <-h.queue:
			h.dispatch(ctx, ev)
		}
	}
}

func (h *Hub) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	for {
		select {
		case ev := <-h.queue:
			h.dispatch(ctx, ev)
		default:
			return
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, ev domain.Event) {
	for _, sink := range h.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := sink.Handle(sinkCtx, ev)
		cancel()
		if err != nil {
			h.log.Error().Err(err).
				Str("sink", sink.Name()).
				Str("event_type", ev.Type).
				Str("appointment_id", ev.AppointmentID).
				Msg("sink failed")
		}
	}
}
