package domain

import "time"

// Event sources.
const (
	SourceQueue       = "queue"
	SourceAppointment = "appointment"
)

// Queue event types.
const (
	EventClinicOpened   = "CLINIC_OPENED"
	EventClinicClosed   = "CLINIC_CLOSED"
	EventTokenBooked    = "TOKEN_BOOKED"
	EventTokenCalled    = "TOKEN_CALLED"
	EventTokenCompleted = "TOKEN_COMPLETED"
	EventTokenNoShow    = "TOKEN_NO_SHOW"
	EventTokenCancelled = "TOKEN_CANCELLED"
	EventQueueReset     = "QUEUE_RESET"
)

// Scheduled appointment event types.
const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentNoShow    = "APPOINTMENT_NO_SHOW"
	EventSettingsUpdated      = "SETTINGS_UPDATED"
)

// Event describes one committed state change.
type Event struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Source        string         `json:"source"`
	AppointmentID string         `json:"appointmentId,omitempty"`
	Status        string         `json:"status,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Notifier receives events from the stores. Notify is called with the store
// lock held and must not block or call back into the store.
type Notifier interface {
	Notify(ev Event)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(Event) {}
