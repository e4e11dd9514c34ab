package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rackside/pool-league/internal/domain/leaguestats"
	"github.com/rackside/pool-league/internal/domain/match"
	"github.com/rackside/pool-league/internal/platform/logging"
	"github.com/rackside/pool-league/internal/platform/resilience"
)

const (
	reconcileStatusApplied = "applied"
	reconcileStatusSkipped = "skipped"
	reconcileStatusPending = "pending"
	reconcileStatusFailed  = "failed"

	defaultReconcileWorkers = 4
	maxReconcileWorkers     = 32
)

// StatsReconcileService replays finalized disciplines through the idempotent
// aggregator so finalize events that never reached the stats ledger are
// caught up. Already-applied disciplines are skipped via the ledger, which
// makes a reconcile run safe to repeat at any time.
type StatsReconcileService struct {
	matchRepo      match.Repository
	statsRepo      leaguestats.Repository
	stats          *StatsService
	logger         *logging.Logger
	flight         resilience.SingleFlight
	defaultWorkers int
}

// NewStatsReconcileService builds the reconciler. defaultWorkers is the pool
// size used when a run does not request one; values below 1 fall back to the
// built-in default.
func NewStatsReconcileService(
	matchRepo match.Repository,
	statsRepo leaguestats.Repository,
	stats *StatsService,
	defaultWorkers int,
	logger *logging.Logger,
) *StatsReconcileService {
	if logger == nil {
		logger = logging.Default()
	}
	if defaultWorkers < 1 {
		defaultWorkers = defaultReconcileWorkers
	}

	return &StatsReconcileService{
		matchRepo:      matchRepo,
		statsRepo:      statsRepo,
		stats:          stats,
		logger:         logger,
		defaultWorkers: defaultWorkers,
	}
}

type ReconcileInput struct {
	LeagueID   string `validate:"required"`
	MaxWorkers int    `validate:"omitempty,min=1"`
	// DryRun reports what would be applied without writing stats.
	DryRun bool
}

type ReconcileResult struct {
	LeagueID     string                `json:"league_id"`
	MatchCount   int                   `json:"match_count"`
	TaskCount    int                   `json:"task_count"`
	AppliedCount int                   `json:"applied_count"`
	SkippedCount int                   `json:"skipped_count"`
	FailedCount  int                   `json:"failed_count"`
	WorkerCount  int                   `json:"worker_count"`
	DryRun       bool                  `json:"dry_run"`
	Tasks        []ReconcileTaskResult `json:"tasks"`
}

type ReconcileTaskResult struct {
	MatchID    string `json:"match_id"`
	Discipline string `json:"discipline"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Message    string `json:"message,omitempty"`
}

type reconcileTask struct {
	m     match.Match
	d     match.Discipline
	state match.DisciplineState
}

// Reconcile scans every finalized discipline in the league and applies the
// missing ones through the stats aggregator. Concurrent calls for the same
// league collapse into one run.
func (s *StatsReconcileService) Reconcile(ctx context.Context, input ReconcileInput) (ReconcileResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.StatsReconcileService.Reconcile")
	defer span.End()

	if err := validateInput(input); err != nil {
		return ReconcileResult{}, err
	}

	key := "stats:reconcile:" + input.LeagueID
	out, err, shared := s.flight.Do(key, func() (any, error) {
		return s.reconcileOnce(ctx, input)
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	if shared {
		s.logger.InfoContext(ctx, "reconcile run shared with in-flight call", "league_id", input.LeagueID)
	}

	result, ok := out.(ReconcileResult)
	if !ok {
		return ReconcileResult{}, fmt.Errorf("unexpected reconcile result type %T", out)
	}

	return result, nil
}

func (s *StatsReconcileService) reconcileOnce(ctx context.Context, input ReconcileInput) (ReconcileResult, error) {
	matches, err := s.matchRepo.ListFinalizedByLeague(ctx, input.LeagueID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("list finalized matches: %w", err)
	}

	var tasks []reconcileTask
	for _, m := range matches {
		for _, d := range match.Disciplines() {
			state, ok := m.Disciplines[d]
			if !ok || state.Status != match.StatusFinalized {
				continue
			}
			tasks = append(tasks, reconcileTask{m: m, d: d, state: state})
		}
	}

	workers := normalizeReconcileWorkers(input.MaxWorkers, len(tasks), s.defaultWorkers)
	result := ReconcileResult{
		LeagueID:    input.LeagueID,
		MatchCount:  len(matches),
		TaskCount:   len(tasks),
		WorkerCount: workers,
		DryRun:      input.DryRun,
		Tasks:       make([]ReconcileTaskResult, len(tasks)),
	}
	if len(tasks) == 0 {
		return result, nil
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("create reconcile worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, task := range tasks {
		i, task := i, task
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			result.Tasks[i] = s.runReconcileTask(ctx, task, input.DryRun)
		})
		if submitErr != nil {
			wg.Done()
			result.Tasks[i] = ReconcileTaskResult{
				MatchID:    task.m.ID,
				Discipline: string(task.d),
				Status:     reconcileStatusFailed,
				Message:    fmt.Sprintf("submit task: %v", submitErr),
			}
		}
	}
	wg.Wait()

	for _, task := range result.Tasks {
		switch task.Status {
		case reconcileStatusApplied, reconcileStatusPending:
			result.AppliedCount++
		case reconcileStatusSkipped:
			result.SkippedCount++
		default:
			result.FailedCount++
		}
	}

	s.logger.InfoContext(ctx, "stats reconcile finished",
		"league_id", input.LeagueID,
		"tasks", result.TaskCount,
		"applied", result.AppliedCount,
		"skipped", result.SkippedCount,
		"failed", result.FailedCount,
		"dry_run", input.DryRun,
	)

	return result, nil
}

func (s *StatsReconcileService) runReconcileTask(ctx context.Context, task reconcileTask, dryRun bool) ReconcileTaskResult {
	started := time.Now()
	out := ReconcileTaskResult{
		MatchID:    task.m.ID,
		Discipline: string(task.d),
	}
	finish := func(status, message string) ReconcileTaskResult {
		out.Status = status
		out.Message = message
		out.DurationMs = time.Since(started).Milliseconds()
		return out
	}

	key := leaguestats.AppliedKey{MatchID: task.m.ID, Discipline: task.d}
	applied, err := s.statsRepo.Applied(ctx, key)
	if err != nil {
		return finish(reconcileStatusFailed, fmt.Sprintf("check ledger: %v", err))
	}
	if applied {
		return finish(reconcileStatusSkipped, "")
	}
	if dryRun {
		return finish(reconcileStatusPending, "would apply")
	}

	games, err := s.matchRepo.ListGames(ctx, task.m.ID, task.d)
	if err != nil {
		return finish(reconcileStatusFailed, fmt.Sprintf("list games: %v", err))
	}

	event := match.FinalizedEvent{
		MatchID:    task.m.ID,
		LeagueID:   task.m.LeagueID,
		Discipline: task.d,
		WinnerID:   task.state.WinnerID,
		LoserID:    task.m.Opponent(task.state.WinnerID),
		Bounty:     task.m.Bounty,
		Games:      games,
	}
	if err := s.stats.ApplyMatchFinalized(ctx, event); err != nil {
		return finish(reconcileStatusFailed, fmt.Sprintf("apply event: %v", err))
	}

	return finish(reconcileStatusApplied, "")
}

func normalizeReconcileWorkers(requested, taskCount, fallback int) int {
	workers := requested
	if workers < 1 {
		workers = fallback
	}
	if workers < 1 {
		workers = defaultReconcileWorkers
	}
	if workers > maxReconcileWorkers {
		workers = maxReconcileWorkers
	}
	if taskCount > 0 && workers > taskCount {
		workers = taskCount
	}
	return workers
}
