package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient is the identity record of someone who books. Appointments embed
// name and phone directly and do not reference it.
type Patient struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewID returns an opaque random identifier.
func NewID() string {
	return uuid.NewString()
}

// Blank reports whether s is empty after trimming whitespace.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Clock returns the current time. Stores take one so tests can pin "today".
type Clock func() time.Time

// SystemClock is the wall clock in the process-local zone.
func SystemClock() time.Time {
	return time.Now()
}

// ClockIn returns a clock reporting wall time in loc.
func ClockIn(loc *time.Location) Clock {
	return func() time.Time {
		return time.Now().In(loc)
	}
}
