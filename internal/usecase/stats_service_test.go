package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rackside/pool-league/internal/domain/leaguestats"
	"github.com/rackside/pool-league/internal/domain/match"
	"github.com/rackside/pool-league/internal/infrastructure/repository/memory"
	"github.com/rackside/pool-league/internal/platform/logging"
)

func intPtr(v int) *int { return &v }

func finalizedEventFixture() match.FinalizedEvent {
	bounty := int64(250)
	return match.FinalizedEvent{
		MatchID:    "match-1",
		LeagueID:   "league-1",
		Discipline: match.DisciplineNineBall,
		WinnerID:   "player-1",
		LoserID:    "player-2",
		Bounty:     &bounty,
		Games: []match.Game{
			{ID: "g1", MatchID: "match-1", Discipline: match.DisciplineNineBall, SequenceNumber: 1, WinnerID: "player-1", IsBreakAndRun: true, Innings: intPtr(1)},
			{ID: "g2", MatchID: "match-1", Discipline: match.DisciplineNineBall, SequenceNumber: 2, WinnerID: "player-2", Innings: intPtr(4)},
			{ID: "g3", MatchID: "match-1", Discipline: match.DisciplineNineBall, SequenceNumber: 3, WinnerID: "player-1", Innings: intPtr(2)},
			{ID: "g4", MatchID: "match-1", Discipline: match.DisciplineNineBall, SequenceNumber: 4, WinnerID: "player-1"},
		},
	}
}

func TestStatsService_ApplyMatchFinalized(t *testing.T) {
	svc := NewStatsService(memory.NewStatsRepository(), logging.NewNop())

	err := svc.ApplyMatchFinalized(t.Context(), finalizedEventFixture())
	require.NoError(t, err)

	winner, err := svc.GetPlayerStats(t.Context(), "league-1", "player-1")
	require.NoError(t, err)
	require.Equal(t, leaguestats.PlayerStats{
		LeagueID:         "league-1",
		PlayerID:         "player-1",
		MatchesPlayed:    1,
		MatchesWon:       1,
		RacksPlayed:      4,
		RacksWon:         3,
		BreakAndRunCount: 1,
		InningsTotal:     7,
		BountyEarned:     250,
	}, winner)

	loser, err := svc.GetPlayerStats(t.Context(), "league-1", "player-2")
	require.NoError(t, err)
	require.Equal(t, leaguestats.PlayerStats{
		LeagueID:      "league-1",
		PlayerID:      "player-2",
		MatchesPlayed: 1,
		RacksPlayed:   4,
		RacksWon:      1,
		InningsTotal:  7,
	}, loser)
}

func TestStatsService_ApplyMatchFinalized_Idempotent(t *testing.T) {
	svc := NewStatsService(memory.NewStatsRepository(), logging.NewNop())
	event := finalizedEventFixture()

	require.NoError(t, svc.ApplyMatchFinalized(t.Context(), event))
	require.NoError(t, svc.ApplyMatchFinalized(t.Context(), event))

	winner, err := svc.GetPlayerStats(t.Context(), "league-1", "player-1")
	require.NoError(t, err)
	require.Equal(t, 1, winner.MatchesPlayed)
	require.Equal(t, 4, winner.RacksPlayed)
	require.Equal(t, int64(250), winner.BountyEarned)
}

func TestStatsService_ApplyMatchFinalized_PerDiscipline(t *testing.T) {
	svc := NewStatsService(memory.NewStatsRepository(), logging.NewNop())

	nine := finalizedEventFixture()
	require.NoError(t, svc.ApplyMatchFinalized(t.Context(), nine))

	eight := finalizedEventFixture()
	eight.Discipline = match.DisciplineEightBall
	eight.Games = nil
	require.NoError(t, svc.ApplyMatchFinalized(t.Context(), eight))

	winner, err := svc.GetPlayerStats(t.Context(), "league-1", "player-1")
	require.NoError(t, err)
	require.Equal(t, 2, winner.MatchesPlayed)
	require.Equal(t, 2, winner.MatchesWon)
	require.Equal(t, 4, winner.RacksPlayed)
	require.Equal(t, int64(500), winner.BountyEarned)
}

func TestStatsService_ApplyMatchFinalized_Shutout(t *testing.T) {
	svc := NewStatsService(memory.NewStatsRepository(), logging.NewNop())

	event := finalizedEventFixture()
	event.Games = []match.Game{
		{ID: "g1", MatchID: "match-1", Discipline: match.DisciplineNineBall, SequenceNumber: 1, WinnerID: "player-1"},
		{ID: "g2", MatchID: "match-1", Discipline: match.DisciplineNineBall, SequenceNumber: 2, WinnerID: "player-1"},
	}
	require.NoError(t, svc.ApplyMatchFinalized(t.Context(), event))

	winner, err := svc.GetPlayerStats(t.Context(), "league-1", "player-1")
	require.NoError(t, err)
	require.Equal(t, 1, winner.Shutouts)

	loser, err := svc.GetPlayerStats(t.Context(), "league-1", "player-2")
	require.NoError(t, err)
	require.Zero(t, loser.Shutouts)
}

func TestStatsService_ApplyMatchFinalized_NoShutoutWithoutGames(t *testing.T) {
	svc := NewStatsService(memory.NewStatsRepository(), logging.NewNop())

	event := finalizedEventFixture()
	event.Games = nil
	require.NoError(t, svc.ApplyMatchFinalized(t.Context(), event))

	winner, err := svc.GetPlayerStats(t.Context(), "league-1", "player-1")
	require.NoError(t, err)
	require.Zero(t, winner.Shutouts)
	require.Zero(t, winner.RacksPlayed)
	require.Equal(t, 1, winner.MatchesWon)
}

func TestStatsService_ApplyMatchFinalized_RejectsMalformedEvents(t *testing.T) {
	svc := NewStatsService(memory.NewStatsRepository(), logging.NewNop())

	cases := map[string]func(e *match.FinalizedEvent){
		"missing match id":  func(e *match.FinalizedEvent) { e.MatchID = "" },
		"missing league id": func(e *match.FinalizedEvent) { e.LeagueID = "" },
		"bad discipline":    func(e *match.FinalizedEvent) { e.Discipline = "snooker" },
		"winner is loser":   func(e *match.FinalizedEvent) { e.LoserID = e.WinnerID },
		"foreign game winner": func(e *match.FinalizedEvent) {
			e.Games[0].WinnerID = "player-9"
		},
	}

	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			event := finalizedEventFixture()
			corrupt(&event)
			err := svc.ApplyMatchFinalized(t.Context(), event)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestStatsService_GetPlayerStats_MissingRowReadsZero(t *testing.T) {
	svc := NewStatsService(memory.NewStatsRepository(), logging.NewNop())

	stats, err := svc.GetPlayerStats(t.Context(), "league-1", "player-7")
	require.NoError(t, err)
	require.Equal(t, leaguestats.PlayerStats{LeagueID: "league-1", PlayerID: "player-7"}, stats)

	_, err = svc.GetPlayerStats(t.Context(), "", "player-7")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestStatsService_ListLeagueStats(t *testing.T) {
	svc := NewStatsService(memory.NewStatsRepository(), logging.NewNop())

	require.NoError(t, svc.ApplyMatchFinalized(t.Context(), finalizedEventFixture()))

	rows, err := svc.ListLeagueStats(t.Context(), "league-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	rows, err = svc.ListLeagueStats(t.Context(), "league-2")
	require.NoError(t, err)
	require.Empty(t, rows)

	_, err = svc.ListLeagueStats(t.Context(), "")
	require.ErrorIs(t, err, ErrInvalidInput)
}
