package queue

import "time"

type TokenStatus string

const (
	StatusWaiting    TokenStatus = "waiting"
	StatusInProgress TokenStatus = "in-progress"
	StatusCompleted  TokenStatus = "completed"
	StatusCancelled  TokenStatus = "cancelled"
	StatusNoShow     TokenStatus = "no-show"
)

// DefaultConsultationMinutes is the average consultation time used for wait
// estimates when none is configured.
const DefaultConsultationMinutes = 10

var transitions = map[TokenStatus][]TokenStatus{
	StatusWaiting:    {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// CanTransition reports whether a token may move from one status to another.
// Completed, cancelled and no-show tokens are terminal.
func CanTransition(from, to TokenStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s TokenStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Token is a same-day walk-in appointment.
type Token struct {
	ID                   string      `json:"id"`
	TokenNumber          int         `json:"tokenNumber"`
	PatientID            string      `json:"patientId"`
	PatientName          string      `json:"patientName"`
	PatientPhone         string      `json:"patientPhone"`
	Status               TokenStatus `json:"status"`
	BookedAt             time.Time   `json:"bookedAt"`
	CalledAt             *time.Time  `json:"calledAt,omitempty"`
	CompletedAt          *time.Time  `json:"completedAt,omitempty"`
	EstimatedWaitMinutes int         `json:"estimatedWaitMinutes"`
}

// ClinicStatus is the queue's process-wide singleton.
type ClinicStatus struct {
	IsOpen                  bool `json:"isOpen"`
	CurrentToken            *int `json:"currentToken"`
	TotalTokensToday        int  `json:"totalTokensToday"`
	AverageConsultationTime int  `json:"averageConsultationTime"`
}

// Summary is the dashboard view shared by the receptionist and doctor screens.
type Summary struct {
	IsOpen               bool   `json:"isOpen"`
	Waiting              int    `json:"waiting"`
	Completed            int    `json:"completed"`
	Current              *Token `json:"current,omitempty"`
	Next                 *Token `json:"next,omitempty"`
	EstimatedWaitMinutes int    `json:"estimatedWaitMinutes"`
}

func defaultStatus(avg int) ClinicStatus {
	return ClinicStatus{
		IsOpen:                  true,
		CurrentToken:            nil,
		TotalTokensToday:        0,
		AverageConsultationTime: avg,
	}
}

func (t Token) clone() Token {
	if t.CalledAt != nil {
		at := *t.CalledAt
		t.CalledAt = &at
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		t.CompletedAt = &at
	}
	return t
}

func (c ClinicStatus) clone() ClinicStatus {
	if c.CurrentToken != nil {
		n := *c.CurrentToken
		c.CurrentToken = &n
	}
	return c
}
