package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/hackgods/clinic-frontdesk/internal/appointment"
	"github.com/hackgods/clinic-frontdesk/internal/domain"
	"github.com/hackgods/clinic-frontdesk/internal/events"
	"github.com/hackgods/clinic-frontdesk/internal/metrics"
	"github.com/hackgods/clinic-frontdesk/internal/queue"
)

// Monday morning before opening.
var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

const tomorrow = "2026-03-03"

type testEnv struct {
	handler http.Handler
	queue   *queue.Store
	appts   *appointment.Store
	hub     *events.Hub
	history *events.MemoryHistory
}

func newTestEnv(t *testing.T, limiter *rate.Limiter) *testEnv {
	t.Helper()

	clock := func() time.Time { return testNow }
	history := events.NewMemoryHistory(64)
	m := metrics.New("clinic_test", metrics.Gauges{})
	hub := events.NewHub(64, zerolog.Nop(), history, m)

	q := queue.NewStore(queue.DefaultConsultationMinutes, hub, clock, zerolog.Nop())
	appts, err := appointment.NewStore(appointment.DefaultSettings(), hub, clock, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &testEnv{
		handler: NewRouter(RouterConfig{
			Queue:          q,
			Appointments:   appts,
			Hub:            hub,
			History:        history,
			Metrics:        m,
			Logger:         zerolog.Nop(),
			Env:            "test",
			Version:        "test",
			BookingLimiter: limiter,
		}),
		queue:   q,
		appts:   appts,
		hub:     hub,
		history: history,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, code, decode[ErrorResponse](t, rec).Error)
}

func TestQueueFlow(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/queue/book", BookTokenRequest{Name: "Alice", Phone: "555-0100"})
	require.Equal(t, http.StatusCreated, rec.Code)
	alice := decode[queue.Token](t, rec)
	assert.Equal(t, 1, alice.TokenNumber)
	assert.Equal(t, queue.StatusWaiting, alice.Status)

	rec = e.do(t, http.MethodPost, "/queue/book", BookTokenRequest{Name: "Bob", Phone: "555-0101"})
	require.Equal(t, http.StatusCreated, rec.Code)
	bob := decode[queue.Token](t, rec)
	assert.Equal(t, 10, bob.EstimatedWaitMinutes)

	rec = e.do(t, http.MethodGet, "/queue/appointments/"+bob.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[TokenDetailResponse](t, rec)
	assert.Equal(t, 2, detail.Position)
	assert.Equal(t, 20, detail.LiveWaitMinutes)

	rec = e.do(t, http.MethodPost, "/queue/call-next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, alice.ID, decode[queue.Token](t, rec).ID)

	rec = e.do(t, http.MethodPost, "/queue/call-next", nil)
	assertError(t, rec, http.StatusConflict, "invalid_status_transition")

	rec = e.do(t, http.MethodGet, "/queue/status", nil)
	status := decode[queue.ClinicStatus](t, rec)
	require.NotNil(t, status.CurrentToken)
	assert.Equal(t, 1, *status.CurrentToken)
	assert.Equal(t, 2, status.TotalTokensToday)

	rec = e.do(t, http.MethodPost, "/queue/complete-current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, queue.StatusCompleted, decode[queue.Token](t, rec).Status)

	rec = e.do(t, http.MethodPost, "/queue/complete-current", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, http.MethodPost, "/queue/cancel", IDRequest{ID: bob.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, queue.StatusCancelled, decode[queue.Token](t, rec).Status)

	rec = e.do(t, http.MethodPost, "/queue/call-next", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, http.MethodGet, "/queue/summary", nil)
	summary := decode[queue.Summary](t, rec)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 0, summary.Waiting)

	rec = e.do(t, http.MethodGet, "/queue/appointments", nil)
	assert.Len(t, decode[[]queue.Token](t, rec), 2)
}

func TestQueueErrors(t *testing.T) {
	e := newTestEnv(t, nil)

	assertError(t, e.do(t, http.MethodPost, "/queue/book", "{not json"), http.StatusBadRequest, "invalid_request_body")
	assertError(t, e.do(t, http.MethodPost, "/queue/book", map[string]string{"phone": "1"}), http.StatusBadRequest, "invalid_input")
	assertError(t, e.do(t, http.MethodPost, "/queue/book", BookTokenRequest{Name: "", Phone: "1"}), http.StatusBadRequest, "invalid_input")
	assertError(t, e.do(t, http.MethodPost, "/queue/book", BookTokenRequest{Name: "Ann", Phone: ""}), http.StatusBadRequest, "invalid_input")
	assertError(t, e.do(t, http.MethodPost, "/queue/book", map[string]string{"name": "Ann", "phone": "1", "extra": "x"}), http.StatusBadRequest, "invalid_request_body")
	assertError(t, e.do(t, http.MethodPost, "/queue/book", BookTokenRequest{Name: "   ", Phone: "1"}), http.StatusBadRequest, "invalid_input")
	assertError(t, e.do(t, http.MethodPost, "/queue/no-show", IDRequest{ID: "missing"}), http.StatusNotFound, "appointment_not_found")
	assertError(t, e.do(t, http.MethodGet, "/queue/appointments/missing", nil), http.StatusNotFound, "appointment_not_found")

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/queue/close", nil).Code)
	assertError(t, e.do(t, http.MethodPost, "/queue/book", BookTokenRequest{Name: "Late", Phone: "1"}), http.StatusConflict, "clinic_closed")

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/queue/open", nil).Code)
	assert.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/queue/book", BookTokenRequest{Name: "Late", Phone: "1"}).Code)

	rec := e.do(t, http.MethodPost, "/queue/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[queue.ClinicStatus](t, rec).TotalTokensToday)
}

func TestAppointmentFlow(t *testing.T) {
	e := newTestEnv(t, nil)

	book := BookAppointmentRequest{Name: "Carol", Phone: "555-0200", Date: tomorrow, TimeSlot: "09:20", Reason: "checkup"}
	rec := e.do(t, http.MethodPost, "/appointments/book", book)
	require.Equal(t, http.StatusCreated, rec.Code)
	appt := decode[appointment.Appointment](t, rec)
	assert.Equal(t, appointment.StatusScheduled, appt.Status)

	assertError(t, e.do(t, http.MethodPost, "/appointments/book", book), http.StatusConflict, "slot_taken")

	rec = e.do(t, http.MethodGet, "/appointments/slots?date="+tomorrow, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	slots := decode[[]appointment.TimeSlot](t, rec)
	require.Len(t, slots, 27)
	assert.Equal(t, "09:20", slots[1].Time)
	assert.False(t, slots[1].Available)
	assert.Equal(t, appt.ID, slots[1].AppointmentID)

	rec = e.do(t, http.MethodPost, "/appointments/confirm", IDRequest{ID: appt.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	assertError(t, e.do(t, http.MethodPost, "/appointments/confirm", IDRequest{ID: appt.ID}), http.StatusConflict, "invalid_status_transition")

	rec = e.do(t, http.MethodPost, "/appointments/complete", CompleteAppointmentRequest{ID: appt.ID, Notes: "all good"})
	require.Equal(t, http.StatusOK, rec.Code)
	done := decode[appointment.Appointment](t, rec)
	assert.Equal(t, appointment.StatusCompleted, done.Status)
	assert.Equal(t, "all good", done.Notes)

	rec = e.do(t, http.MethodGet, "/appointments/"+appt.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, appointment.StatusCompleted, decode[appointment.Appointment](t, rec).Status)

	rec = e.do(t, http.MethodGet, "/appointments?phone=555-0200", nil)
	assert.Len(t, decode[[]appointment.Appointment](t, rec), 1)

	rec = e.do(t, http.MethodGet, "/appointments?date="+tomorrow, nil)
	assert.Len(t, decode[[]appointment.Appointment](t, rec), 1)

	assertError(t, e.do(t, http.MethodGet, "/appointments", nil), http.StatusBadRequest, "invalid_input")
	assertError(t, e.do(t, http.MethodGet, "/appointments/missing", nil), http.StatusNotFound, "appointment_not_found")
}

func TestAppointmentValidation(t *testing.T) {
	e := newTestEnv(t, nil)

	assertError(t, e.do(t, http.MethodPost, "/appointments/book",
		BookAppointmentRequest{Name: "Dan", Phone: "1", Date: "2026-03-08", TimeSlot: "09:00"}),
		http.StatusBadRequest, "invalid_input")
	assertError(t, e.do(t, http.MethodPost, "/appointments/book",
		BookAppointmentRequest{Name: "Dan", Phone: "1", Date: tomorrow, TimeSlot: "09:05"}),
		http.StatusBadRequest, "invalid_input")
	assertError(t, e.do(t, http.MethodPost, "/appointments/book",
		map[string]string{"name": "Dan", "phone": "1", "date": tomorrow}),
		http.StatusBadRequest, "invalid_request_body")
	for _, req := range []BookAppointmentRequest{
		{Name: "", Phone: "1", Date: tomorrow, TimeSlot: "09:00"},
		{Name: "Dan", Phone: "", Date: tomorrow, TimeSlot: "09:00"},
		{Name: "Dan", Phone: "   ", Date: tomorrow, TimeSlot: "09:00"},
	} {
		assertError(t, e.do(t, http.MethodPost, "/appointments/book", req), http.StatusBadRequest, "invalid_input")
	}
	assertError(t, e.do(t, http.MethodGet, "/appointments/slots?date=03/03/2026", nil), http.StatusBadRequest, "invalid_input")
	assertError(t, e.do(t, http.MethodGet, "/appointments/slots", nil), http.StatusBadRequest, "invalid_input")
}

func TestTodayEndpoints(t *testing.T) {
	e := newTestEnv(t, nil)

	for _, slot := range []string{"10:00", "09:00"} {
		rec := e.do(t, http.MethodPost, "/appointments/book",
			BookAppointmentRequest{Name: "P " + slot, Phone: "1", Date: "2026-03-02", TimeSlot: slot})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := e.do(t, http.MethodGet, "/appointments/today", nil)
	today := decode[[]appointment.Appointment](t, rec)
	require.Len(t, today, 2)
	assert.Equal(t, "09:00", today[0].TimeSlot)

	rec = e.do(t, http.MethodGet, "/appointments/today/summary", nil)
	assert.Equal(t, 2, decode[appointment.DaySummary](t, rec).Scheduled)
}

func TestSettingsEndpoints(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, decode[appointment.Settings](t, rec).SlotDuration)

	rec = e.do(t, http.MethodPatch, "/settings", map[string]any{"slotDuration": 30})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, decode[appointment.Settings](t, rec).SlotDuration)

	assertError(t, e.do(t, http.MethodPatch, "/settings", map[string]any{"startTime": "19:00"}),
		http.StatusUnprocessableEntity, "invalid_settings")
	assertError(t, e.do(t, http.MethodPatch, "/settings", map[string]any{"colour": "blue"}),
		http.StatusBadRequest, "invalid_request_body")

	rec = e.do(t, http.MethodGet, "/settings", nil)
	assert.Equal(t, "09:00", decode[appointment.Settings](t, rec).StartTime)
}

func TestBookingRateLimit(t *testing.T) {
	e := newTestEnv(t, rate.NewLimiter(0, 1))

	assert.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/queue/book", BookTokenRequest{Name: "A", Phone: "1"}).Code)
	assertError(t, e.do(t, http.MethodPost, "/queue/book", BookTokenRequest{Name: "B", Phone: "2"}), http.StatusTooManyRequests, "rate_limited")

	// Non-booking routes are not throttled.
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/queue/status", nil).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = e.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "ok", ready.Status)
	assert.Equal(t, "disabled", ready.Dependencies["postgres"])
	assert.Equal(t, "disabled", ready.Dependencies["redis"])

	e.do(t, http.MethodGet, "/queue/appointments/abc", nil)

	rec = e.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/queue/appointments/{id}"`)
}

func TestEventHistory(t *testing.T) {
	e := newTestEnv(t, nil)

	tok, err := e.queue.BookToken("Eve", "555")
	require.NoError(t, err)
	_, err = e.queue.CallNext()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		evs, _ := e.history.ListByAppointment(context.Background(), tok.ID)
		return len(evs) == 2
	}, time.Second, 5*time.Millisecond)

	rec := e.do(t, http.MethodGet, "/events/history/"+tok.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	evs := decode[[]domain.Event](t, rec)
	require.Len(t, evs, 2)
	assert.Equal(t, domain.EventTokenBooked, evs[0].Type)
	assert.Equal(t, domain.EventTokenCalled, evs[1].Type)
}

func TestEventStream(t *testing.T) {
	e := newTestEnv(t, nil)
	srv := httptest.NewServer(e.handler)
	defer srv.Close()

	other, err := e.queue.BookToken("Other", "1")
	require.NoError(t, err)
	mine, err := e.queue.BookToken("Mine", "2")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/stream?appointment_id="+mine.ID, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "retry: 1000\n", line)

	_, err = e.queue.Cancel(other.ID)
	require.NoError(t, err)
	_, err = e.queue.CallNext()
	require.NoError(t, err)

	readEvent := func() (string, domain.Event) {
		t.Helper()
		var name string
		var ev domain.Event
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
			case strings.HasPrefix(line, "data: "):
				require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data: "))), &ev))
			case line == "\n" && name != "":
				return name, ev
			}
		}
	}

	// The token ahead leaving the line reaches the tracker too.
	name, ev := readEvent()
	assert.Equal(t, domain.EventTokenCancelled, name)
	assert.Equal(t, other.ID, ev.AppointmentID)

	name, ev = readEvent()
	assert.Equal(t, domain.EventTokenCalled, name)
	assert.Equal(t, mine.ID, ev.AppointmentID)
}
