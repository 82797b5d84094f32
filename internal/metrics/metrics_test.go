package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-frontdesk/internal/domain"
)

func TestHandleCountsEvents(t *testing.T) {
	m := New("clinic", Gauges{})
	ctx := context.Background()

	require.NoError(t, m.Handle(ctx, domain.Event{Source: domain.SourceQueue, Type: domain.EventTokenBooked}))
	require.NoError(t, m.Handle(ctx, domain.Event{Source: domain.SourceQueue, Type: domain.EventTokenBooked}))
	require.NoError(t, m.Handle(ctx, domain.Event{Source: domain.SourceAppointment, Type: domain.EventAppointmentBooked}))

	text := scrape(t, m)
	assert.Contains(t, text, `clinic_events_total{source="queue",type="TOKEN_BOOKED"} 2`)
	assert.Contains(t, text, `clinic_events_total{source="appointment",type="APPOINTMENT_BOOKED"} 1`)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestIndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New("clinic", Gauges{})
		New("clinic", Gauges{})
	})
}

func TestHandlerExposesGauges(t *testing.T) {
	waiting := 3
	m := New("clinic", Gauges{
		Waiting:       func() int { return waiting },
		StreamClients: func() int { return 1 },
	})
	m.ObserveRequest("POST", "/queue/book", 201, 5*time.Millisecond)

	text := scrape(t, m)
	assert.Contains(t, text, "clinic_queue_waiting_patients 3")
	assert.Contains(t, text, "clinic_event_stream_clients 1")
	assert.Contains(t, text, `clinic_http_requests_total{method="POST",route="/queue/book",status="201"} 1`)
}
