package reschedule

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a reschedule negotiation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCountered Status = "countered"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
)

// Active reports whether the request still occupies the match's single
// negotiation slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusCountered
}

// Request is one reschedule negotiation for a match. A counter-proposal
// replaces the open request in place, so at most one active request exists
// per match; closed requests are archived, never mutated.
type Request struct {
	ID                  string
	MatchID             string
	RequestedByPlayerID string
	RespondingPlayerID  string
	ProposedDate        time.Time
	Status              Status
}

func (r Request) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("request id is required")
	}
	if r.MatchID == "" {
		return fmt.Errorf("request match id is required")
	}
	if r.RequestedByPlayerID == "" || r.RespondingPlayerID == "" {
		return fmt.Errorf("request players are required")
	}
	if r.RequestedByPlayerID == r.RespondingPlayerID {
		return fmt.Errorf("request players must differ")
	}
	if r.ProposedDate.IsZero() {
		return fmt.Errorf("request proposed date is required")
	}

	return nil
}
