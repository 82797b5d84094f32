package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-frontdesk/internal/appointment"
	"github.com/hackgods/clinic-frontdesk/internal/logger"
)

var reasons = []string{
	"General checkup",
	"Follow-up",
	"Fever",
	"Back pain",
	"Prescription renewal",
	"Vaccination",
	"Blood test review",
	"Skin rash",
}

type seeder struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

func main() {
	log := logger.New(getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"))

	s := &seeder{
		baseURL: getEnv("SEED_API_BASE_URL", "http://localhost:8080"),
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
	walkIns := getInt("SEED_WALKINS", 12)
	perDay := getInt("SEED_APPOINTMENTS_PER_DAY", 8)
	days := getInt("SEED_DAYS", 5)

	log.Info().Str("api", s.baseURL).Int("walk_ins", walkIns).Int("per_day", perDay).Int("days", days).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.post(ctx, "/queue/open", nil, nil); err != nil {
		log.Fatal().Err(err).Msg("open clinic")
	}
	if err := s.seedWalkIns(ctx, walkIns); err != nil {
		log.Fatal().Err(err).Msg("seed walk-ins")
	}
	if err := s.seedAppointments(ctx, days, perDay); err != nil {
		log.Fatal().Err(err).Msg("seed appointments")
	}

	log.Info().Msg("seed complete")
}

func (s *seeder) seedWalkIns(ctx context.Context, count int) error {
	for i := 0; i < count; i++ {
		var tok struct {
			TokenNumber int `json:"tokenNumber"`
		}
		body := map[string]string{"name": gofakeit.Name(), "phone": gofakeit.Phone()}
		if err := s.post(ctx, "/queue/book", body, &tok); err != nil {
			return err
		}
		s.log.Debug().Int("token", tok.TokenNumber).Msg("walk-in booked")
	}
	s.log.Info().Int("count", count).Msg("walk-ins seeded")
	return nil
}

// seedAppointments fills random free slots on the next working days. Days the
// clinic is closed are skipped by the server's own validation.
func (s *seeder) seedAppointments(ctx context.Context, days, perDay int) error {
	booked := 0
	for d := 1; d <= days; d++ {
		date := time.Now().AddDate(0, 0, d).Format(appointment.DateLayout)

		var slots []appointment.TimeSlot
		if err := s.get(ctx, "/appointments/slots?date="+date, &slots); err != nil {
			return err
		}

		free := make([]string, 0, len(slots))
		for _, slot := range slots {
			if slot.Available {
				free = append(free, slot.Time)
			}
		}
		gofakeit.ShuffleStrings(free)

		for i := 0; i < perDay && i < len(free); i++ {
			body := map[string]string{
				"name":     gofakeit.Name(),
				"phone":    gofakeit.Phone(),
				"date":     date,
				"timeSlot": free[i],
				"reason":   reasons[gofakeit.Number(0, len(reasons)-1)],
			}
			if err := s.post(ctx, "/appointments/book", body, nil); err != nil {
				s.log.Warn().Err(err).Str("date", date).Str("slot", free[i]).Msg("skipping slot")
				continue
			}
			booked++
		}
	}
	s.log.Info().Int("count", booked).Msg("appointments seeded")
	return nil
}

func (s *seeder) post(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, out)
}

func (s *seeder) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	return s.do(req, out)
}

func (s *seeder) do(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s %s: %d %s %s", req.Method, req.URL.Path, resp.StatusCode, apiErr.Error, apiErr.Details)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
