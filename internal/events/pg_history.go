package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-frontdesk/internal/domain"
)

const createEventLogs = `
CREATE TABLE IF NOT EXISTS event_logs (
	id             TEXT PRIMARY KEY,
	event_type     TEXT        NOT NULL,
	source         TEXT        NOT NULL,
	appointment_id TEXT,
	status         TEXT,
	payload        JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS event_logs_appointment_idx ON event_logs (appointment_id, created_at);
`

// PgHistory stores events in Postgres. Only the audit trail is durable; the
// stores themselves stay in memory.
type PgHistory struct {
	pool *pgxpool.Pool
}

func NewPgHistory(pool *pgxpool.Pool) *PgHistory {
	return &PgHistory{pool: pool}
}

// Migrate creates the event_logs table if it does not exist.
func (r *PgHistory) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createEventLogs); err != nil {
		return fmt.Errorf("migrate event_logs: %w", err)
	}
	return nil
}

func (r *PgHistory) Name() string { return "postgres_history" }

func (r *PgHistory) Handle(ctx context.Context, ev domain.Event) error {
	var payload []byte
	if len(ev.Payload) > 0 {
		data, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		payload = data
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (id, event_type, source, appointment_id, status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
		ON CONFLICT (id) DO NOTHING
	`, ev.ID, ev.Type, ev.Source, nullableString(ev.AppointmentID), nullableString(ev.Status), payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func (r *PgHistory) ListByAppointment(ctx context.Context, appointmentID string) ([]domain.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_type, source, appointment_id, status, payload, created_at
		FROM event_logs
		WHERE appointment_id = $1
		ORDER BY created_at, id
	`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("query event logs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var (
		ev            domain.Event
		appointmentID *string
		status        *string
		payload       []byte
	)
	err := row.Scan(
		&ev.ID,
		&ev.Type,
		&ev.Source,
		&appointmentID,
		&status,
		&payload,
		&ev.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan event log: %w", err)
	}

	if appointmentID != nil {
		ev.AppointmentID = *appointmentID
	}
	if status != nil {
		ev.Status = *status
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &ev.Payload); err != nil {
			return nil, fmt.Errorf("decode event payload: %w", err)
		}
	}
	return &ev, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
