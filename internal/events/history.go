package events

import (
	"context"
	"sync"

	"github.com/hackgods/clinic-frontdesk/internal/domain"
)

// History records events so a client can replay what happened to one
// appointment.
type History interface {
	Sink
	ListByAppointment(ctx context.Context, appointmentID string) ([]domain.Event, error)
}

// MemoryHistory keeps the most recent events in a fixed-size ring.
type MemoryHistory struct {
	mu     sync.RWMutex
	ring   []domain.Event
	next   int
	filled bool
}

func NewMemoryHistory(size int) *MemoryHistory {
	if size <= 0 {
		size = 1024
	}
	return &MemoryHistory{ring: make([]domain.Event, size)}
}

func (m *MemoryHistory) Name() string { return "memory_history" }

func (m *MemoryHistory) Handle(_ context.Context, ev domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ring[m.next] = ev
	m.next = (m.next + 1) % len(m.ring)
	if m.next == 0 {
		m.filled = true
	}
	return nil
}

// ListByAppointment returns matching events oldest first.
func (m *MemoryHistory) ListByAppointment(_ context.Context, appointmentID string) ([]domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start, n := 0, m.next
	if m.filled {
		start, n = m.next, len(m.ring)
	}

	out := make([]domain.Event, 0)
	for i := 0; i < n; i++ {
		ev := m.ring[(start+i)%len(m.ring)]
		if ev.AppointmentID == appointmentID {
			out = append(out, ev)
		}
	}
	return out, nil
}
