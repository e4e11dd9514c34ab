package leaguestats

import "github.com/rackside/pool-league/internal/domain/match"

// PlayerStats is the durable per-league, per-player aggregate. Every field is
// a monotonically non-decreasing running total derived solely from finalized
// games and matches.
type PlayerStats struct {
	LeagueID         string
	PlayerID         string
	MatchesPlayed    int
	MatchesWon       int
	RacksPlayed      int
	RacksWon         int
	Shutouts         int
	BreakAndRunCount int
	InningsTotal     int
	BountyEarned     int64
}

// Delta is one player's increment from a single finalized discipline.
type Delta struct {
	LeagueID         string `json:"league_id"`
	PlayerID         string `json:"player_id"`
	MatchesPlayed    int    `json:"matches_played"`
	MatchesWon       int    `json:"matches_won"`
	RacksPlayed      int    `json:"racks_played"`
	RacksWon         int    `json:"racks_won"`
	Shutouts         int    `json:"shutouts"`
	BreakAndRunCount int    `json:"break_and_run_count"`
	InningsTotal     int    `json:"innings_total"`
	BountyEarned     int64  `json:"bounty_earned"`
}

// AppliedKey identifies an applied finalize event in the idempotency ledger.
type AppliedKey struct {
	MatchID    string
	Discipline match.Discipline
}
