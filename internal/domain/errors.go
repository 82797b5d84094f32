package domain

import "errors"

// Command failures shared by the queue and appointment stores. Stores wrap
// them with detail; callers match with errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("appointment not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSlotTaken         = errors.New("time slot already booked")
	ErrClinicClosed      = errors.New("clinic is closed")
	ErrInvalidSettings   = errors.New("invalid clinic settings")
)
