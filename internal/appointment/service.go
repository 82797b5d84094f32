package appointment

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-frontdesk/internal/domain"
)

// Store owns scheduled appointments and the clinic settings. A single mutex
// guards both, so the availability check and the insert in Book are atomic.
type Store struct {
	mu           sync.Mutex
	appointments []Appointment
	settings     Settings
	now          domain.Clock
	notifier     domain.Notifier
	log          zerolog.Logger
}

func NewStore(settings Settings, notifier domain.Notifier, now domain.Clock, log zerolog.Logger) (*Store, error) {
	if err := validateSettings(settings); err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	if now == nil {
		now = domain.SystemClock
	}
	return &Store{
		settings: settings.clone(),
		now:      now,
		notifier: notifier,
		log:      log.With().Str("component", "appointment").Logger(),
	}, nil
}

// BookRequest is the input of Book.
type BookRequest struct {
	Name     string
	Phone    string
	Date     string
	TimeSlot string
	Reason   string
}

// Book reserves a (date, time slot) pair. The slot must be on the settings grid,
// on a working day, not in the past and within the advance booking window.
func (s *Store) Book(req BookRequest) (*Appointment, error) {
	if domain.Blank(req.Name) {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if domain.Blank(req.Phone) {
		return nil, fmt.Errorf("%w: phone is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if err := s.checkBookableLocked(req.Date, req.TimeSlot, now); err != nil {
		return nil, err
	}

	if i := s.occupantLocked(req.Date, req.TimeSlot); i >= 0 {
		return nil, fmt.Errorf("%w: %s %s", domain.ErrSlotTaken, req.Date, req.TimeSlot)
	}

	appt := Appointment{
		ID:           domain.NewID(),
		PatientID:    domain.NewID(),
		PatientName:  strings.TrimSpace(req.Name),
		PatientPhone: strings.TrimSpace(req.Phone),
		Date:         req.Date,
		TimeSlot:     req.TimeSlot,
		Status:       StatusScheduled,
		Reason:       strings.TrimSpace(req.Reason),
		BookedAt:     now,
	}
	s.appointments = append(s.appointments, appt)

	s.emit(domain.EventAppointmentBooked, &appt)
	s.log.Debug().Str("appointment_id", appt.ID).Str("date", appt.Date).Str("slot", appt.TimeSlot).Msg("appointment booked")

	out := appt.clone()
	return &out, nil
}

func (s *Store) checkBookableLocked(date, slot string, now time.Time) error {
	day, err := ParseDate(date, now.Location())
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if _, err := ParseClockToMinutes(slot); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	today := startOfDay(now)
	if day.Before(today) {
		return fmt.Errorf("%w: %s is in the past", domain.ErrInvalidInput, date)
	}
	if limit := s.settings.MaxAdvanceBookingDays; limit > 0 && day.After(today.AddDate(0, 0, limit)) {
		return fmt.Errorf("%w: %s is more than %d days ahead", domain.ErrInvalidInput, date, limit)
	}
	if !s.settings.worksOn(day.Weekday()) {
		return fmt.Errorf("%w: clinic does not work on %s", domain.ErrInvalidInput, day.Weekday())
	}

	grid, err := GenerateSlots(s.settings.StartTime, s.settings.EndTime, s.settings.SlotDuration)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSettings, err)
	}
	if !containsSlot(grid, slot) {
		return fmt.Errorf("%w: %s is not a bookable slot", domain.ErrInvalidInput, slot)
	}
	return nil
}

func (s *Store) Confirm(id string) (*Appointment, error) {
	return s.transition(id, StatusConfirmed, domain.EventAppointmentConfirmed, func(a *Appointment, at time.Time) {
		a.ConfirmedAt = &at
	})
}

func (s *Store) Complete(id, notes string) (*Appointment, error) {
	return s.transition(id, StatusCompleted, domain.EventAppointmentCompleted, func(a *Appointment, at time.Time) {
		a.CompletedAt = &at
		if n := strings.TrimSpace(notes); n != "" {
			a.Notes = n
		}
	})
}

// Cancel frees the appointment's slot for rebooking.
func (s *Store) Cancel(id string) (*Appointment, error) {
	return s.transition(id, StatusCancelled, domain.EventAppointmentCancelled, nil)
}

func (s *Store) MarkNoShow(id string) (*Appointment, error) {
	return s.transition(id, StatusNoShow, domain.EventAppointmentNoShow, nil)
}

func (s *Store) transition(id string, to AppointmentStatus, eventType string, stamp func(*Appointment, time.Time)) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	a := &s.appointments[i]
	if !CanTransition(a.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, a.Status, to)
	}

	a.Status = to
	if stamp != nil {
		stamp(a, s.now())
	}

	s.emit(eventType, a)

	out := a.clone()
	return &out, nil
}

// ByDate lists non-cancelled appointments on date in booking order.
func (s *Store) ByDate(date string) []Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.byDateLocked(date)
}

// AvailableSlots lays the settings grid over date, marking occupied slots.
func (s *Store) AvailableSlots(date string) ([]TimeSlot, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, ErrInvalidDate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	grid, err := GenerateSlots(s.settings.StartTime, s.settings.EndTime, s.settings.SlotDuration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSettings, err)
	}

	out := make([]TimeSlot, 0, len(grid))
	for _, t := range grid {
		slot := TimeSlot{Time: t, Available: true}
		if i := s.occupantLocked(date, t); i >= 0 {
			slot.Available = false
			slot.AppointmentID = s.appointments[i].ID
		}
		out = append(out, slot)
	}
	return out, nil
}

func (s *Store) Get(id string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	out := s.appointments[i].clone()
	return &out, nil
}

// ByPhone returns every appointment booked with phone, cancelled ones included.
func (s *Store) ByPhone(phone string) []Appointment {
	phone = strings.TrimSpace(phone)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Appointment, 0)
	for _, a := range s.appointments {
		if a.PatientPhone == phone {
			out = append(out, a.clone())
		}
	}
	return out
}

// Today lists today's non-cancelled appointments ordered by time slot.
func (s *Store) Today() []Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.todayLocked()
}

func (s *Store) TodaySummary() DaySummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := DaySummary{Date: s.now().Format(DateLayout)}
	for _, a := range s.todayLocked() {
		switch a.Status {
		case StatusScheduled:
			sum.Scheduled++
		case StatusConfirmed:
			if sum.Next == nil {
				next := a
				sum.Next = &next
			}
			sum.Confirmed++
		case StatusCompleted:
			sum.Completed++
		case StatusNoShow:
			sum.NoShow++
		}
	}
	return sum
}

func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.settings.clone()
}

// UpdateSettings merges patch into the current settings. The merged result is
// validated before it replaces anything.
func (s *Store) UpdateSettings(patch SettingsPatch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings.clone()
	if patch.WorkingDays != nil {
		next.WorkingDays = append([]int(nil), patch.WorkingDays...)
	}
	if patch.StartTime != nil {
		next.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		next.EndTime = *patch.EndTime
	}
	if patch.SlotDuration != nil {
		next.SlotDuration = *patch.SlotDuration
	}
	if patch.MaxAdvanceBookingDays != nil {
		next.MaxAdvanceBookingDays = *patch.MaxAdvanceBookingDays
	}

	if err := validateSettings(next); err != nil {
		return s.settings.clone(), err
	}
	s.settings = next

	s.notifier.Notify(domain.Event{
		ID:     domain.NewID(),
		Type:   domain.EventSettingsUpdated,
		Source: domain.SourceAppointment,
		Payload: map[string]any{
			"working_days":             next.WorkingDays,
			"start_time":               next.StartTime,
			"end_time":                 next.EndTime,
			"slot_duration":            next.SlotDuration,
			"max_advance_booking_days": next.MaxAdvanceBookingDays,
		},
		CreatedAt: s.now(),
	})
	s.log.Info().Str("start", next.StartTime).Str("end", next.EndTime).Int("slot_minutes", next.SlotDuration).Msg("settings updated")

	return next.clone(), nil
}

// SweepMissed marks scheduled or confirmed appointments dated before the given
// day as no-show and reports how many changed.
func (s *Store) SweepMissed(before string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.appointments {
		a := &s.appointments[i]
		if a.Date >= before || !CanTransition(a.Status, StatusNoShow) {
			continue
		}
		a.Status = StatusNoShow
		s.emit(domain.EventAppointmentNoShow, a)
		n++
	}
	return n
}

func validateSettings(st Settings) error {
	start, err := ParseClockToMinutes(st.StartTime)
	if err != nil {
		return fmt.Errorf("%w: start time %q: %v", domain.ErrInvalidSettings, st.StartTime, err)
	}
	end, err := ParseClockToMinutes(st.EndTime)
	if err != nil {
		return fmt.Errorf("%w: end time %q: %v", domain.ErrInvalidSettings, st.EndTime, err)
	}
	if start >= end {
		return fmt.Errorf("%w: start time %s must be before end time %s", domain.ErrInvalidSettings, st.StartTime, st.EndTime)
	}
	if st.SlotDuration <= 0 {
		return fmt.Errorf("%w: slot duration must be positive", domain.ErrInvalidSettings)
	}
	if st.MaxAdvanceBookingDays < 0 {
		return fmt.Errorf("%w: max advance booking days must not be negative", domain.ErrInvalidSettings)
	}
	for _, d := range st.WorkingDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: working day %d outside 0-6", domain.ErrInvalidSettings, d)
		}
	}
	return nil
}

func (s *Store) indexLocked(id string) int {
	for i := range s.appointments {
		if s.appointments[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) occupantLocked(date, slot string) int {
	for i := range s.appointments {
		a := s.appointments[i]
		if a.Date == date && a.TimeSlot == slot && a.Status.Active() {
			return i
		}
	}
	return -1
}

func (s *Store) byDateLocked(date string) []Appointment {
	out := make([]Appointment, 0)
	for _, a := range s.appointments {
		if a.Date == date && a.Status.Active() {
			out = append(out, a.clone())
		}
	}
	return out
}

func (s *Store) todayLocked() []Appointment {
	out := s.byDateLocked(s.now().Format(DateLayout))
	// HH:MM labels are zero-padded, so string order is time order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimeSlot < out[j].TimeSlot
	})
	return out
}

func (s *Store) emit(eventType string, a *Appointment) {
	s.notifier.Notify(domain.Event{
		ID:            domain.NewID(),
		Type:          eventType,
		Source:        domain.SourceAppointment,
		AppointmentID: a.ID,
		Status:        string(a.Status),
		Payload: map[string]any{
			"date":      a.Date,
			"time_slot": a.TimeSlot,
		},
		CreatedAt: s.now(),
	})
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
