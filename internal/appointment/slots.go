package appointment

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidDate = errors.New("date must be YYYY-MM-DD")
	ErrInvalidTime = errors.New("time must be HH:MM")
)

func ParseDate(date string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// ParseClockToMinutes converts a zero-padded HH:MM label to minutes past midnight.
func ParseClockToMinutes(clock string) (int, error) {
	if len(clock) != len(ClockLayout) {
		return 0, ErrInvalidTime
	}
	tm, err := time.Parse(ClockLayout, clock)
	if err != nil {
		return 0, ErrInvalidTime
	}
	return tm.Hour()*60 + tm.Minute(), nil
}

func MinutesToClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// GenerateSlots emits start, start+duration, ... while the slot start is
// strictly before end.
func GenerateSlots(start, end string, duration int) ([]string, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("slot duration must be positive, got %d", duration)
	}
	startMin, err := ParseClockToMinutes(start)
	if err != nil {
		return nil, err
	}
	endMin, err := ParseClockToMinutes(end)
	if err != nil {
		return nil, err
	}

	slots := make([]string, 0)
	for cursor := startMin; cursor < endMin; cursor += duration {
		slots = append(slots, MinutesToClock(cursor))
	}
	return slots, nil
}

func containsSlot(slots []string, slot string) bool {
	for _, s := range slots {
		if s == slot {
			return true
		}
	}
	return false
}
