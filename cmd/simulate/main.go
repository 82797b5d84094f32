package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-frontdesk/internal/appointment"
	"github.com/hackgods/clinic-frontdesk/internal/logger"
	"github.com/hackgods/clinic-frontdesk/internal/queue"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Patients     int // concurrent patient workers
	Receptionist time.Duration
	Doctor       time.Duration
	Days         int // how far ahead patients book
}

type DataPool struct {
	mu           sync.RWMutex
	tokens       []string
	appointments []string
}

func (dp *DataPool) AddToken(id string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.tokens = append(dp.tokens, id)
}

func (dp *DataPool) AddAppointment(id string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) randomFrom(ids []string, rng *rand.Rand) (string, bool) {
	if len(ids) == 0 {
		return "", false
	}
	return ids[rng.Intn(len(ids))], true
}

func (dp *DataPool) RandomToken(rng *rand.Rand) (string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	return dp.randomFrom(dp.tokens, rng)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	return dp.randomFrom(dp.appointments, rng)
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, worst time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	n := len(latencies)
	return sum / time.Duration(n), latencies[n*50/100], latencies[min(n*95/100, n-1)], latencies[n-1]
}

type Metrics struct {
	BookToken       OperationMetrics
	BookAppointment OperationMetrics
	TrackToken      OperationMetrics
	CallNext        OperationMetrics
	Complete        OperationMetrics
	NoShow          OperationMetrics
	ConfirmAppt     OperationMetrics
	CompleteAppt    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    DataPool
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	log := logger.New(getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"))

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("patients", cfg.Patients).
		Dur("receptionist_every", cfg.Receptionist).
		Dur("doctor_every", cfg.Doctor).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	if _, err := sim.call(context.Background(), http.MethodPost, "/queue/open", nil, nil); err != nil {
		log.Fatal().Err(err).Msg("open clinic")
	}

	sim.Run()
	sim.PrintReport()

	if err := sim.Verify(context.Background()); err != nil {
		log.Error().Err(err).Msg("invariant check failed")
		os.Exit(1)
	}
	log.Info().Msg("invariants hold")
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Patients:     getInt("SIM_PATIENTS", 10),
		Receptionist: getDuration("SIM_RECEPTIONIST_EVERY", 200*time.Millisecond),
		Doctor:       getDuration("SIM_DOCTOR_EVERY", 300*time.Millisecond),
		Days:         getInt("SIM_DAYS", 3),
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Patients <= 0 {
		return fmt.Errorf("SIM_PATIENTS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Receptionist <= 0 || cfg.Doctor <= 0 {
		return fmt.Errorf("role intervals must be > 0")
	}
	if cfg.Days <= 0 {
		return fmt.Errorf("SIM_DAYS must be > 0")
	}
	return nil
}

// Run drives patients, one receptionist and one doctor concurrently until the
// configured duration elapses.
func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Patients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.patient(ctx, rand.New(rand.NewSource(time.Now().UnixNano()+int64(id))))
		}(i)
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		s.every(ctx, s.config.Receptionist, s.receptionist)
	}()
	go func() {
		defer wg.Done()
		s.every(ctx, s.config.Doctor, s.doctor)
	}()

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) every(ctx context.Context, interval time.Duration, fn func(context.Context, *rand.Rand)) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx, rng)
		}
	}
}

func (s *Simulator) patient(ctx context.Context, rng *rand.Rand) {
	for ctx.Err() == nil {
		switch r := rng.Float64(); {
		case r < 0.3:
			var tok queue.Token
			s.timed(&s.metrics.BookToken, func() (int, error) {
				return s.call(ctx, http.MethodPost, "/queue/book",
					map[string]string{"name": gofakeit.Name(), "phone": gofakeit.Phone()}, &tok)
			})
			if tok.ID != "" {
				s.pool.AddToken(tok.ID)
			}
		case r < 0.6:
			s.bookAppointment(ctx, rng)
		default:
			if id, ok := s.pool.RandomToken(rng); ok {
				s.timed(&s.metrics.TrackToken, func() (int, error) {
					return s.call(ctx, http.MethodGet, "/queue/appointments/"+id, nil, nil)
				})
			}
		}
		time.Sleep(time.Duration(rng.Intn(50)) * time.Millisecond)
	}
}

// bookAppointment deliberately picks from a handful of popular slots so that
// patients race for the same one.
func (s *Simulator) bookAppointment(ctx context.Context, rng *rand.Rand) {
	date := time.Now().AddDate(0, 0, 1+rng.Intn(s.config.Days)).Format(appointment.DateLayout)

	var slots []appointment.TimeSlot
	if _, err := s.call(ctx, http.MethodGet, "/appointments/slots?date="+date, nil, &slots); err != nil || len(slots) == 0 {
		return
	}
	slot := slots[rng.Intn(min(len(slots), 4))]

	var appt appointment.Appointment
	s.timed(&s.metrics.BookAppointment, func() (int, error) {
		return s.call(ctx, http.MethodPost, "/appointments/book", map[string]string{
			"name":     gofakeit.Name(),
			"phone":    gofakeit.Phone(),
			"date":     date,
			"timeSlot": slot.Time,
		}, &appt)
	})
	if appt.ID != "" {
		s.pool.AddAppointment(appt.ID)
	}
}

func (s *Simulator) receptionist(ctx context.Context, rng *rand.Rand) {
	if rng.Float64() < 0.1 {
		if id, ok := s.pool.RandomToken(rng); ok {
			s.timed(&s.metrics.NoShow, func() (int, error) {
				return s.call(ctx, http.MethodPost, "/queue/no-show", map[string]string{"id": id}, nil)
			})
			return
		}
	}
	s.timed(&s.metrics.CallNext, func() (int, error) {
		return s.call(ctx, http.MethodPost, "/queue/call-next", nil, nil)
	})
}

func (s *Simulator) doctor(ctx context.Context, rng *rand.Rand) {
	s.timed(&s.metrics.Complete, func() (int, error) {
		return s.call(ctx, http.MethodPost, "/queue/complete-current", nil, nil)
	})

	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	if rng.Float64() < 0.5 {
		s.timed(&s.metrics.ConfirmAppt, func() (int, error) {
			return s.call(ctx, http.MethodPost, "/appointments/confirm", map[string]string{"id": id}, nil)
		})
		return
	}
	s.timed(&s.metrics.CompleteAppt, func() (int, error) {
		return s.call(ctx, http.MethodPost, "/appointments/complete",
			map[string]string{"id": id, "notes": gofakeit.Sentence(6)}, nil)
	})
}

// Verify checks the queue never has two patients in consultation, that the
// clinic's current token mirrors the one in progress, and that no slot was
// handed out twice.
func (s *Simulator) Verify(ctx context.Context) error {
	var tokens []queue.Token
	if _, err := s.call(ctx, http.MethodGet, "/queue/appointments", nil, &tokens); err != nil {
		return err
	}
	var status queue.ClinicStatus
	if _, err := s.call(ctx, http.MethodGet, "/queue/status", nil, &status); err != nil {
		return err
	}

	var current *queue.Token
	for i := range tokens {
		if tokens[i].Status != queue.StatusInProgress {
			continue
		}
		if current != nil {
			return fmt.Errorf("tokens %d and %d both in progress", current.TokenNumber, tokens[i].TokenNumber)
		}
		current = &tokens[i]
	}
	switch {
	case current == nil && status.CurrentToken != nil:
		return fmt.Errorf("currentToken=%d but nothing in progress", *status.CurrentToken)
	case current != nil && (status.CurrentToken == nil || *status.CurrentToken != current.TokenNumber):
		return fmt.Errorf("token %d in progress but currentToken disagrees", current.TokenNumber)
	}

	for d := 1; d <= s.config.Days; d++ {
		date := time.Now().AddDate(0, 0, d).Format(appointment.DateLayout)
		var appts []appointment.Appointment
		if _, err := s.call(ctx, http.MethodGet, "/appointments?date="+date, nil, &appts); err != nil {
			return err
		}
		taken := make(map[string]string)
		for _, a := range appts {
			if !a.Status.Active() {
				continue
			}
			if other, dup := taken[a.TimeSlot]; dup {
				return fmt.Errorf("slot %s %s double-booked by %s and %s", date, a.TimeSlot, other, a.ID)
			}
			taken[a.TimeSlot] = a.ID
		}
	}
	return nil
}

func (s *Simulator) timed(om *OperationMetrics, fn func() (int, error)) {
	start := time.Now()
	status, err := fn()
	om.Record(time.Since(start), status, err)
}

// call returns the HTTP status; non-2xx answers are not errors here since the
// caller classifies conflicts separately.
func (s *Simulator) call(ctx context.Context, method, path string, body, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Patients: %d\n\n", s.config.Patients)

	printOperationReport("Book token", &s.metrics.BookToken)
	printOperationReport("Book appointment", &s.metrics.BookAppointment)
	printOperationReport("Track token", &s.metrics.TrackToken)
	printOperationReport("Call next", &s.metrics.CallNext)
	printOperationReport("Complete current", &s.metrics.Complete)
	printOperationReport("Mark no-show", &s.metrics.NoShow)
	printOperationReport("Confirm appointment", &s.metrics.ConfirmAppt)
	printOperationReport("Complete appointment", &s.metrics.CompleteAppt)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, worst := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n\n",
		avg.Round(time.Microsecond), p50.Round(time.Microsecond), p95.Round(time.Microsecond), worst.Round(time.Microsecond))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
