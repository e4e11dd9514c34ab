package postgres

import (
	"database/sql"
	"time"

	"github.com/rackside/pool-league/internal/domain/match"
)

type matchTableModel struct {
	ID          string        `db:"id"`
	LeagueID    string        `db:"league_id"`
	Player1ID   string        `db:"player1_id"`
	Player2ID   string        `db:"player2_id"`
	ScheduledAt time.Time     `db:"scheduled_at"`
	Bounty      sql.NullInt64 `db:"bounty"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}

type matchDisciplineTableModel struct {
	MatchID       string `db:"match_id"`
	Discipline    string `db:"discipline"`
	Status        string `db:"status"`
	PointsP1      int    `db:"points_p1"`
	PointsP2      int    `db:"points_p2"`
	RaceTargetP1  int    `db:"race_target_p1"`
	RaceTargetP2  int    `db:"race_target_p2"`
	WinnerID      string `db:"winner_id"`
	DisputeReason string `db:"dispute_reason"`
	Version       int64  `db:"version"`
}

type gameTableModel struct {
	ID             string        `db:"id"`
	MatchID        string        `db:"match_id"`
	Discipline     string        `db:"discipline"`
	SequenceNumber int           `db:"sequence_number"`
	WinnerID       string        `db:"winner_id"`
	IsBreakAndRun  bool          `db:"is_break_and_run"`
	Innings        sql.NullInt64 `db:"innings"`
}

func (m matchDisciplineTableModel) toState() match.DisciplineState {
	return match.DisciplineState{
		Status:        match.Status(m.Status),
		PointsP1:      m.PointsP1,
		PointsP2:      m.PointsP2,
		RaceTargetP1:  m.RaceTargetP1,
		RaceTargetP2:  m.RaceTargetP2,
		WinnerID:      m.WinnerID,
		DisputeReason: m.DisputeReason,
		Version:       m.Version,
	}
}

func (m gameTableModel) toGame() match.Game {
	return match.Game{
		ID:             m.ID,
		MatchID:        m.MatchID,
		Discipline:     match.Discipline(m.Discipline),
		SequenceNumber: m.SequenceNumber,
		WinnerID:       m.WinnerID,
		IsBreakAndRun:  m.IsBreakAndRun,
		Innings:        nullInt64ToIntPtr(m.Innings),
	}
}
