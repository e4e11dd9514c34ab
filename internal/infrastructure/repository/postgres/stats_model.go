package postgres

import (
	"time"

	"github.com/rackside/pool-league/internal/domain/leaguestats"
)

type playerStatsTableModel struct {
	LeagueID         string    `db:"league_id"`
	PlayerID         string    `db:"player_id"`
	MatchesPlayed    int       `db:"matches_played"`
	MatchesWon       int       `db:"matches_won"`
	RacksPlayed      int       `db:"racks_played"`
	RacksWon         int       `db:"racks_won"`
	Shutouts         int       `db:"shutouts"`
	BreakAndRunCount int       `db:"break_and_run_count"`
	InningsTotal     int       `db:"innings_total"`
	BountyEarned     int64     `db:"bounty_earned"`
	UpdatedAt        time.Time `db:"updated_at"`
}

type appliedEventInsertModel struct {
	MatchID    string    `db:"match_id"`
	Discipline string    `db:"discipline"`
	Payload    string    `db:"payload"`
	AppliedAt  time.Time `db:"applied_at"`
}

func (m playerStatsTableModel) toStats() leaguestats.PlayerStats {
	return leaguestats.PlayerStats{
		LeagueID:         m.LeagueID,
		PlayerID:         m.PlayerID,
		MatchesPlayed:    m.MatchesPlayed,
		MatchesWon:       m.MatchesWon,
		RacksPlayed:      m.RacksPlayed,
		RacksWon:         m.RacksWon,
		Shutouts:         m.Shutouts,
		BreakAndRunCount: m.BreakAndRunCount,
		InningsTotal:     m.InningsTotal,
		BountyEarned:     m.BountyEarned,
	}
}
