package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchAccepted  MatchStatus = "accepted"
	MatchRejected  MatchStatus = "rejected"
	MatchCancelled MatchStatus = "cancelled"
)

// MaxMessageLength bounds the free-text note a mentee attaches to a request.
const MaxMessageLength = 1000

var ErrIllegalTransition = errors.New("illegal match request transition")

// transitions lists every caller-driven move out of a status. Statuses with
// no entry are terminal.
var transitions = map[MatchStatus][]MatchStatus{
	MatchPending:  {MatchAccepted, MatchRejected, MatchCancelled},
	MatchAccepted: {MatchCancelled},
}

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchPending, MatchAccepted, MatchRejected, MatchCancelled:
		return true
	}
	return false
}

// IsActive reports whether the status counts toward a mentee's single
// outstanding request.
func (s MatchStatus) IsActive() bool {
	return s == MatchPending || s == MatchAccepted
}

func (s MatchStatus) CanTransitionTo(next MatchStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type MatchRequest struct {
	ID        uuid.UUID   `json:"id"`
	MentorID  uuid.UUID   `json:"mentorId"`
	MenteeID  uuid.UUID   `json:"menteeId"`
	Message   string      `json:"message"`
	Status    MatchStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

func NewMatchRequest(mentorID, menteeID uuid.UUID, message string, now time.Time) *MatchRequest {
	return &MatchRequest{
		ID:        uuid.New(),
		MentorID:  mentorID,
		MenteeID:  menteeID,
		Message:   message,
		Status:    MatchPending,
		CreatedAt: Timestamp(now),
	}
}

// Timestamp normalises t to UTC milliseconds, the finest precision every
// store keeps. Values returned by a write must equal the ones read back later.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// TransitionTo moves the request to next if the state table allows it.
func (m *MatchRequest) TransitionTo(next MatchStatus) error {
	if !m.Status.CanTransitionTo(next) {
		return ErrIllegalTransition
	}
	m.Status = next
	return nil
}
