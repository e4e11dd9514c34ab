package match

import (
	"fmt"
	"time"
)

// Discipline is one of the independently scored game variants of a match.
type Discipline string

const (
	DisciplineEightBall Discipline = "8-ball"
	DisciplineNineBall  Discipline = "9-ball"
)

// Disciplines lists every variant a match is scored in, in reporting order.
func Disciplines() []Discipline {
	return []Discipline{DisciplineEightBall, DisciplineNineBall}
}

func (d Discipline) Valid() bool {
	return d == DisciplineEightBall || d == DisciplineNineBall
}

// Status is the lifecycle state of one discipline of a match.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusDisputed   Status = "disputed"
	StatusFinalized  Status = "finalized"
)

// DisciplineState is the per-discipline score sheet of a match. Version backs
// optimistic concurrency: every committed mutation increments it.
type DisciplineState struct {
	Status        Status
	PointsP1      int
	PointsP2      int
	RaceTargetP1  int
	RaceTargetP2  int
	WinnerID      string
	DisputeReason string
	Version       int64
}

// Match is the central entity: two players, a scheduled date, and one state
// machine per discipline. Disciplines progress independently.
type Match struct {
	ID          string
	LeagueID    string
	Player1ID   string
	Player2ID   string
	ScheduledAt time.Time
	Bounty      *int64
	Disciplines map[Discipline]DisciplineState
}

func (m Match) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("match id is required")
	}
	if m.LeagueID == "" {
		return fmt.Errorf("match league id is required")
	}
	if m.Player1ID == "" || m.Player2ID == "" {
		return fmt.Errorf("match players are required")
	}
	if m.Player1ID == m.Player2ID {
		return fmt.Errorf("match players must differ")
	}
	if m.ScheduledAt.IsZero() {
		return fmt.Errorf("match scheduled date is required")
	}
	if len(m.Disciplines) == 0 {
		return fmt.Errorf("match disciplines are required")
	}
	for d, state := range m.Disciplines {
		if !d.Valid() {
			return fmt.Errorf("unknown discipline %q", d)
		}
		if state.RaceTargetP1 < 1 || state.RaceTargetP2 < 1 {
			return fmt.Errorf("race targets for %s must be at least 1", d)
		}
	}

	return nil
}

func (m Match) IsParticipant(playerID string) bool {
	return playerID != "" && (playerID == m.Player1ID || playerID == m.Player2ID)
}

// Opponent returns the other participant, or empty for a non-participant.
func (m Match) Opponent(playerID string) string {
	switch playerID {
	case m.Player1ID:
		return m.Player2ID
	case m.Player2ID:
		return m.Player1ID
	default:
		return ""
	}
}

// FullyFinalized reports whether every discipline reached a terminal status.
func (m Match) FullyFinalized() bool {
	if len(m.Disciplines) == 0 {
		return false
	}
	for _, state := range m.Disciplines {
		if state.Status != StatusFinalized {
			return false
		}
	}
	return true
}

// Game is one rack within a discipline of a match. Immutable once recorded;
// corrections happen through explicit reversals, never edits.
type Game struct {
	ID             string     `json:"id"`
	MatchID        string     `json:"match_id"`
	Discipline     Discipline `json:"discipline"`
	SequenceNumber int        `json:"sequence_number"`
	WinnerID       string     `json:"winner_id"`
	IsBreakAndRun  bool       `json:"is_break_and_run"`
	Innings        *int       `json:"innings,omitempty"`
}
