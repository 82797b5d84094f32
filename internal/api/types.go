package api

import (
	"github.com/hackgods/clinic-frontdesk/internal/queue"
)

// Blank names and phones are left to the stores so that "" and "  " are
// both reported as invalid_input.
type BookTokenRequest struct {
	Name  string `json:"name" validate:"max=120"`
	Phone string `json:"phone" validate:"max=32"`
}

type BookAppointmentRequest struct {
	Name     string `json:"name" validate:"max=120"`
	Phone    string `json:"phone" validate:"max=32"`
	Date     string `json:"date" validate:"required"`
	TimeSlot string `json:"timeSlot" validate:"required"`
	Reason   string `json:"reason" validate:"max=500"`
}

type IDRequest struct {
	ID string `json:"id" validate:"required"`
}

type CompleteAppointmentRequest struct {
	ID    string `json:"id" validate:"required"`
	Notes string `json:"notes" validate:"max=2000"`
}

// TokenDetailResponse is what a patient's tracking screen polls for.
type TokenDetailResponse struct {
	Token           queue.Token `json:"token"`
	Position        int         `json:"position"`
	LiveWaitMinutes int         `json:"liveWaitMinutes"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
