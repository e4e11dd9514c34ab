package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rackside/pool-league/internal/domain/handicap"
	"github.com/rackside/pool-league/internal/domain/match"
	"github.com/rackside/pool-league/internal/infrastructure/repository/memory"
	"github.com/rackside/pool-league/internal/platform/logging"
)

type reconcileFixture struct {
	matches   *memory.MatchRepository
	stats     *memory.StatsRepository
	matchSvc  *MatchService
	statsSvc  *StatsService
	reconcile *StatsReconcileService
}

// newReconcileFixture builds a match service with NO stats sink wired, so
// finalizing a discipline leaves the ledger behind and reconcile has work to
// do.
func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()

	matches := memory.NewMatchRepository()
	stats := memory.NewStatsRepository()
	statsSvc := NewStatsService(stats, logging.NewNop())

	return &reconcileFixture{
		matches:   matches,
		stats:     stats,
		matchSvc:  NewMatchService(matches, handicap.DefaultParams(), &seqIDGenerator{prefix: "id"}, logging.NewNop()),
		statsSvc:  statsSvc,
		reconcile: NewStatsReconcileService(matches, stats, statsSvc, 0, logging.NewNop()),
	}
}

func (f *reconcileFixture) finalizeBoth(t *testing.T, m match.Match, winnerID string) {
	t.Helper()
	for _, d := range match.Disciplines() {
		if _, err := f.matchSvc.Finalize(t.Context(), FinalizeInput{
			MatchID:    m.ID,
			Discipline: d,
			WinnerID:   winnerID,
		}); err != nil {
			t.Fatalf("finalize %s failed: %v", d, err)
		}
	}
}

func TestStatsReconcileService_AppliesMissingStats(t *testing.T) {
	f := newReconcileFixture(t)

	m := createTestMatch(t, f.matchSvc, CreateMatchInput{
		Player1Rating: 60,
		Player2Rating: 60,
	})
	f.finalizeBoth(t, m, "player-1")

	result, err := f.reconcile.Reconcile(t.Context(), ReconcileInput{LeagueID: "league-1"})
	require.NoError(t, err)
	require.Equal(t, 1, result.MatchCount)
	require.Equal(t, 2, result.TaskCount)
	require.Equal(t, 2, result.AppliedCount)
	require.Zero(t, result.SkippedCount)
	require.Zero(t, result.FailedCount)

	winner, err := f.statsSvc.GetPlayerStats(t.Context(), "league-1", "player-1")
	require.NoError(t, err)
	require.Equal(t, 2, winner.MatchesWon)
}

func TestStatsReconcileService_SecondRunSkips(t *testing.T) {
	f := newReconcileFixture(t)

	m := createTestMatch(t, f.matchSvc, CreateMatchInput{
		Player1Rating: 60,
		Player2Rating: 60,
	})
	f.finalizeBoth(t, m, "player-1")

	_, err := f.reconcile.Reconcile(t.Context(), ReconcileInput{LeagueID: "league-1"})
	require.NoError(t, err)

	second, err := f.reconcile.Reconcile(t.Context(), ReconcileInput{LeagueID: "league-1"})
	require.NoError(t, err)
	require.Equal(t, 2, second.TaskCount)
	require.Zero(t, second.AppliedCount)
	require.Equal(t, 2, second.SkippedCount)

	winner, err := f.statsSvc.GetPlayerStats(t.Context(), "league-1", "player-1")
	require.NoError(t, err)
	require.Equal(t, 2, winner.MatchesWon)
}

func TestStatsReconcileService_DryRunWritesNothing(t *testing.T) {
	f := newReconcileFixture(t)

	m := createTestMatch(t, f.matchSvc, CreateMatchInput{
		Player1Rating: 60,
		Player2Rating: 60,
	})
	f.finalizeBoth(t, m, "player-2")

	result, err := f.reconcile.Reconcile(t.Context(), ReconcileInput{LeagueID: "league-1", DryRun: true})
	require.NoError(t, err)
	require.True(t, result.DryRun)
	require.Equal(t, 2, result.TaskCount)
	require.Equal(t, 2, result.AppliedCount)
	for _, task := range result.Tasks {
		require.Equal(t, "pending", task.Status)
	}

	stats, err := f.statsSvc.GetPlayerStats(t.Context(), "league-1", "player-2")
	require.NoError(t, err)
	require.Zero(t, stats.MatchesWon)
}

func TestStatsReconcileService_SkipsAlreadySunkMatches(t *testing.T) {
	matches := memory.NewMatchRepository()
	stats := memory.NewStatsRepository()
	statsSvc := NewStatsService(stats, logging.NewNop())
	// Stats sink wired, so finalize applies stats inline.
	matchSvc := NewMatchService(matches, handicap.DefaultParams(), &seqIDGenerator{prefix: "id"}, logging.NewNop(), statsSvc)
	reconcile := NewStatsReconcileService(matches, stats, statsSvc, 0, logging.NewNop())

	m := createTestMatch(t, matchSvc, CreateMatchInput{
		Player1Rating: 60,
		Player2Rating: 60,
	})
	if _, err := matchSvc.Finalize(t.Context(), FinalizeInput{
		MatchID:    m.ID,
		Discipline: match.DisciplineNineBall,
		WinnerID:   "player-1",
	}); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	result, err := reconcile.Reconcile(t.Context(), ReconcileInput{LeagueID: "league-1"})
	require.NoError(t, err)
	require.Equal(t, 1, result.TaskCount)
	require.Equal(t, 1, result.SkippedCount)
	require.Zero(t, result.AppliedCount)
}

func TestStatsReconcileService_EmptyLeague(t *testing.T) {
	f := newReconcileFixture(t)

	result, err := f.reconcile.Reconcile(t.Context(), ReconcileInput{LeagueID: "league-9"})
	require.NoError(t, err)
	require.Zero(t, result.MatchCount)
	require.Zero(t, result.TaskCount)
	require.Empty(t, result.Tasks)
}

func TestStatsReconcileService_RequiresLeagueID(t *testing.T) {
	f := newReconcileFixture(t)

	_, err := f.reconcile.Reconcile(t.Context(), ReconcileInput{})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestStatsReconcileService_ConfiguredDefaultWorkers(t *testing.T) {
	matches := memory.NewMatchRepository()
	stats := memory.NewStatsRepository()
	statsSvc := NewStatsService(stats, logging.NewNop())
	matchSvc := NewMatchService(matches, handicap.DefaultParams(), &seqIDGenerator{prefix: "id"}, logging.NewNop())
	reconcile := NewStatsReconcileService(matches, stats, statsSvc, 1, logging.NewNop())

	m := createTestMatch(t, matchSvc, CreateMatchInput{
		Player1Rating: 60,
		Player2Rating: 60,
	})
	for _, d := range match.Disciplines() {
		if _, err := matchSvc.Finalize(t.Context(), FinalizeInput{
			MatchID:    m.ID,
			Discipline: d,
			WinnerID:   "player-1",
		}); err != nil {
			t.Fatalf("finalize %s failed: %v", d, err)
		}
	}

	// No per-run worker count, so the configured service default wins.
	result, err := reconcile.Reconcile(t.Context(), ReconcileInput{LeagueID: "league-1"})
	require.NoError(t, err)
	require.Equal(t, 1, result.WorkerCount)

	// An explicit per-run count still overrides it.
	result, err = reconcile.Reconcile(t.Context(), ReconcileInput{LeagueID: "league-1", MaxWorkers: 2})
	require.NoError(t, err)
	require.Equal(t, 2, result.WorkerCount)
}

func TestNormalizeReconcileWorkers(t *testing.T) {
	cases := []struct {
		name      string
		requested int
		tasks     int
		fallback  int
		want      int
	}{
		{name: "builtin default", requested: 0, tasks: 10, fallback: 0, want: 4},
		{name: "configured fallback", requested: 0, tasks: 10, fallback: 6, want: 6},
		{name: "explicit beats fallback", requested: 8, tasks: 10, fallback: 6, want: 8},
		{name: "capped at max", requested: 100, tasks: 200, fallback: 0, want: 32},
		{name: "capped by task count", requested: 8, tasks: 3, fallback: 0, want: 3},
		{name: "zero tasks keeps default", requested: 0, tasks: 0, fallback: 0, want: 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizeReconcileWorkers(tc.requested, tc.tasks, tc.fallback)
			if got != tc.want {
				t.Fatalf("normalizeReconcileWorkers(%d, %d, %d) = %d, want %d", tc.requested, tc.tasks, tc.fallback, got, tc.want)
			}
		})
	}
}
