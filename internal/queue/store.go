package queue

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-frontdesk/internal/domain"
)

// Store owns the walk-in queue for the current day. Every method runs under a
// single mutex, so the one-in-progress invariant holds for concurrent callers.
type Store struct {
	mu       sync.Mutex
	status   ClinicStatus
	tokens   []Token
	avg      int
	now      domain.Clock
	notifier domain.Notifier
	log      zerolog.Logger
}

func NewStore(avgConsultationMinutes int, notifier domain.Notifier, now domain.Clock, log zerolog.Logger) *Store {
	if avgConsultationMinutes <= 0 {
		avgConsultationMinutes = DefaultConsultationMinutes
	}
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	if now == nil {
		now = domain.SystemClock
	}
	return &Store{
		status:   defaultStatus(avgConsultationMinutes),
		avg:      avgConsultationMinutes,
		now:      now,
		notifier: notifier,
		log:      log.With().Str("component", "queue").Logger(),
	}
}

func (s *Store) OpenClinic() ClinicStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.IsOpen = true
	s.emit(domain.EventClinicOpened, nil)
	return s.status.clone()
}

func (s *Store) CloseClinic() ClinicStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.IsOpen = false
	s.emit(domain.EventClinicClosed, nil)
	return s.status.clone()
}

// BookToken issues the next token number to a walk-in patient. The wait
// estimate is a snapshot of the queue at booking time.
func (s *Store) BookToken(name, phone string) (*Token, error) {
	if domain.Blank(name) {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if domain.Blank(phone) {
		return nil, fmt.Errorf("%w: phone is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.status.IsOpen {
		return nil, domain.ErrClinicClosed
	}

	number := s.status.TotalTokensToday + 1
	t := Token{
		ID:                   domain.NewID(),
		TokenNumber:          number,
		PatientID:            domain.NewID(),
		PatientName:          strings.TrimSpace(name),
		PatientPhone:         strings.TrimSpace(phone),
		Status:               StatusWaiting,
		BookedAt:             s.now(),
		EstimatedWaitMinutes: s.waitingLocked() * s.status.AverageConsultationTime,
	}

	s.tokens = append(s.tokens, t)
	s.status.TotalTokensToday = number

	s.emit(domain.EventTokenBooked, &t)
	s.log.Debug().Str("appointment_id", t.ID).Int("token", number).Msg("token booked")

	out := t.clone()
	return &out, nil
}

// CallNext moves the earliest waiting token into consultation. It returns nil
// without error when nobody is waiting, and ErrInvalidTransition while another
// consultation is still in progress.
func (s *Store) CallNext() (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.inProgressLocked(); i >= 0 {
		return nil, fmt.Errorf("%w: token %d is still in consultation",
			domain.ErrInvalidTransition, s.tokens[i].TokenNumber)
	}

	for i := range s.tokens {
		if s.tokens[i].Status != StatusWaiting {
			continue
		}

		at := s.now()
		s.tokens[i].Status = StatusInProgress
		s.tokens[i].CalledAt = &at

		number := s.tokens[i].TokenNumber
		s.status.CurrentToken = &number

		s.emit(domain.EventTokenCalled, &s.tokens[i])

		out := s.tokens[i].clone()
		return &out, nil
	}

	return nil, nil
}

// CompleteCurrent finishes the in-progress consultation, if any.
func (s *Store) CompleteCurrent() (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.inProgressLocked()
	if i < 0 {
		return nil, nil
	}

	at := s.now()
	s.tokens[i].Status = StatusCompleted
	s.tokens[i].CompletedAt = &at
	s.status.CurrentToken = nil

	s.emit(domain.EventTokenCompleted, &s.tokens[i])

	out := s.tokens[i].clone()
	return &out, nil
}

func (s *Store) MarkNoShow(id string) (*Token, error) {
	return s.finish(id, StatusNoShow, domain.EventTokenNoShow)
}

func (s *Store) Cancel(id string) (*Token, error) {
	return s.finish(id, StatusCancelled, domain.EventTokenCancelled)
}

// finish moves a live token to a terminal status, releasing the current
// consultation slot when the token held it.
func (s *Store) finish(id string, to TokenStatus, eventType string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	from := s.tokens[i].Status
	if from.Terminal() || !CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}

	s.tokens[i].Status = to
	if from == StatusInProgress {
		s.status.CurrentToken = nil
	}

	s.emit(eventType, &s.tokens[i])

	out := s.tokens[i].clone()
	return &out, nil
}

// Detail returns the token with its position and live wait read under one
// lock, so a concurrent CallNext cannot pair a waiting token with position 0.
func (s *Store) Detail(id string) (*Token, int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, 0, 0, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	pos := s.positionLocked(id)
	out := s.tokens[i].clone()
	return &out, pos, pos * s.status.AverageConsultationTime, nil
}

// QueuePosition is the 1-based place of id among waiting tokens, or 0 when the
// token is not waiting.
func (s *Store) QueuePosition(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.positionLocked(id)
}

// LiveWaitMinutes recomputes the wait from the current queue position, unlike
// Token.EstimatedWaitMinutes which is frozen at booking.
func (s *Store) LiveWaitMinutes(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.positionLocked(id) * s.status.AverageConsultationTime
}

func (s *Store) WaitingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.waitingLocked()
}

func (s *Store) Get(id string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	out := s.tokens[i].clone()
	return &out, nil
}

// List returns today's tokens in booking order.
func (s *Store) List() []Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Token, 0, len(s.tokens))
	for _, t := range s.tokens {
		out = append(out, t.clone())
	}
	return out
}

func (s *Store) Status() ClinicStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status.clone()
}

func (s *Store) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{IsOpen: s.status.IsOpen}
	for i := range s.tokens {
		t := s.tokens[i]
		switch t.Status {
		case StatusWaiting:
			if sum.Next == nil {
				next := t.clone()
				sum.Next = &next
			}
			sum.Waiting++
		case StatusInProgress:
			cur := t.clone()
			sum.Current = &cur
		case StatusCompleted:
			sum.Completed++
		}
	}
	sum.EstimatedWaitMinutes = sum.Waiting * s.status.AverageConsultationTime
	return sum
}

// ResetDay drops every token and restores the default clinic status.
func (s *Store) ResetDay() {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := len(s.tokens)
	s.tokens = nil
	s.status = defaultStatus(s.avg)

	s.emit(domain.EventQueueReset, nil)
	s.log.Info().Int("dropped", dropped).Msg("queue reset")
}

func (s *Store) indexLocked(id string) int {
	for i := range s.tokens {
		if s.tokens[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) inProgressLocked() int {
	for i := range s.tokens {
		if s.tokens[i].Status == StatusInProgress {
			return i
		}
	}
	return -1
}

func (s *Store) waitingLocked() int {
	n := 0
	for _, t := range s.tokens {
		if t.Status == StatusWaiting {
			n++
		}
	}
	return n
}

func (s *Store) positionLocked(id string) int {
	pos := 0
	for _, t := range s.tokens {
		if t.Status != StatusWaiting {
			continue
		}
		pos++
		if t.ID == id {
			return pos
		}
	}
	return 0
}

func (s *Store) emit(eventType string, t *Token) {
	ev := domain.Event{
		ID:        domain.NewID(),
		Type:      eventType,
		Source:    domain.SourceQueue,
		CreatedAt: s.now(),
	}
	if t != nil {
		ev.AppointmentID = t.ID
		ev.Status = string(t.Status)
		ev.Payload = map[string]any{
			"token_number": t.TokenNumber,
		}
	} else {
		ev.Payload = map[string]any{
			"is_open":            s.status.IsOpen,
			"total_tokens_today": s.status.TotalTokensToday,
		}
	}
	s.notifier.Notify(ev)
}
