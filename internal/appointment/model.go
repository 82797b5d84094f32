package appointment

import (
	"time"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no-show"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled: {StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// CanTransition reports whether an appointment may move from one status to
// another. Completed, cancelled and no-show are terminal.
func CanTransition(from, to AppointmentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Active appointments hold their slot.
func (s AppointmentStatus) Active() bool {
	return s != StatusCancelled
}

type Appointment struct {
	ID           string            `json:"id"`
	PatientID    string            `json:"patientId"`
	PatientName  string            `json:"patientName"`
	PatientPhone string            `json:"patientPhone"`
	Date         string            `json:"date"`
	TimeSlot     string            `json:"timeSlot"`
	Status       AppointmentStatus `json:"status"`
	Reason       string            `json:"reason,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	BookedAt     time.Time         `json:"bookedAt"`
	ConfirmedAt  *time.Time        `json:"confirmedAt,omitempty"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
}

// Settings is the clinic's scheduling grid.
type Settings struct {
	WorkingDays           []int  `json:"workingDays"`
	StartTime             string `json:"startTime"`
	EndTime               string `json:"endTime"`
	SlotDuration          int    `json:"slotDuration"`
	MaxAdvanceBookingDays int    `json:"maxAdvanceBookingDays"`
}

// SettingsPatch carries a partial settings update; nil fields are left as is.
type SettingsPatch struct {
	WorkingDays           []int   `json:"workingDays,omitempty"`
	StartTime             *string `json:"startTime,omitempty"`
	EndTime               *string `json:"endTime,omitempty"`
	SlotDuration          *int    `json:"slotDuration,omitempty"`
	MaxAdvanceBookingDays *int    `json:"maxAdvanceBookingDays,omitempty"`
}

type TimeSlot struct {
	Time          string `json:"time"`
	Available     bool   `json:"available"`
	AppointmentID string `json:"appointmentId,omitempty"`
}

// DaySummary backs the receptionist and doctor dashboards for today.
type DaySummary struct {
	Date      string       `json:"date"`
	Scheduled int          `json:"scheduled"`
	Confirmed int          `json:"confirmed"`
	Completed int          `json:"completed"`
	NoShow    int          `json:"noShow"`
	Next      *Appointment `json:"next,omitempty"`
}

// DefaultSettings is Monday to Saturday, 09:00-18:00, 20 minute slots.
func DefaultSettings() Settings {
	return Settings{
		WorkingDays:           []int{1, 2, 3, 4, 5, 6},
		StartTime:             "09:00",
		EndTime:               "18:00",
		SlotDuration:          20,
		MaxAdvanceBookingDays: 30,
	}
}

func (s Settings) clone() Settings {
	s.WorkingDays = append([]int(nil), s.WorkingDays...)
	return s
}

func (s Settings) worksOn(day time.Weekday) bool {
	for _, d := range s.WorkingDays {
		if d == int(day) {
			return true
		}
	}
	return false
}

func (a Appointment) clone() Appointment {
	if a.ConfirmedAt != nil {
		at := *a.ConfirmedAt
		a.ConfirmedAt = &at
	}
	if a.CompletedAt != nil {
		at := *a.CompletedAt
		a.CompletedAt = &at
	}
	return a
}
