package usecase

import (
	"context"
	"fmt"

	"github.com/rackside/pool-league/internal/domain/leaguestats"
	"github.com/rackside/pool-league/internal/domain/match"
	"github.com/rackside/pool-league/internal/platform/logging"
)

// StatsService folds finalized discipline events into the durable per-player
// league aggregates. It is the sole writer of LeaguePlayerStats; replay safety
// comes from the repository's applied-event ledger, not from callers behaving.
type StatsService struct {
	statsRepo leaguestats.Repository
	logger    *logging.Logger
}

func NewStatsService(statsRepo leaguestats.Repository, logger *logging.Logger) *StatsService {
	if logger == nil {
		logger = logging.Default()
	}

	return &StatsService{
		statsRepo: statsRepo,
		logger:    logger,
	}
}

// ApplyMatchFinalized applies one finalize event exactly once. Re-applying
// the same (matchID, discipline) is a logged no-op.
func (s *StatsService) ApplyMatchFinalized(ctx context.Context, event match.FinalizedEvent) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.StatsService.ApplyMatchFinalized")
	defer span.End()

	if err := validateFinalizedEvent(event); err != nil {
		return err
	}

	key := leaguestats.AppliedKey{MatchID: event.MatchID, Discipline: event.Discipline}
	deltas := buildStatDeltas(event)

	applied, err := s.statsRepo.Apply(ctx, key, deltas)
	if err != nil {
		return fmt.Errorf("apply stats deltas: %w", err)
	}
	if !applied {
		s.logger.DebugContext(ctx, "finalize event already applied",
			"match_id", event.MatchID,
			"discipline", event.Discipline,
		)
		return nil
	}

	s.logger.InfoContext(ctx, "stats applied",
		"match_id", event.MatchID,
		"discipline", event.Discipline,
		"winner_id", event.WinnerID,
		"games", len(event.Games),
	)

	return nil
}

func validateFinalizedEvent(event match.FinalizedEvent) error {
	if event.MatchID == "" || event.LeagueID == "" {
		return fmt.Errorf("%w: finalize event missing match or league id", ErrInvalidInput)
	}
	if !event.Discipline.Valid() {
		return fmt.Errorf("%w: unknown discipline %q", ErrInvalidInput, event.Discipline)
	}
	if event.WinnerID == "" || event.LoserID == "" || event.WinnerID == event.LoserID {
		return fmt.Errorf("%w: finalize event needs distinct winner and loser", ErrInvalidInput)
	}
	for _, g := range event.Games {
		if g.WinnerID != event.WinnerID && g.WinnerID != event.LoserID {
			return fmt.Errorf("%w: game %s won by non-participant %s", ErrInvalidInput, g.ID, g.WinnerID)
		}
	}
	return nil
}

// buildStatDeltas turns one finalize event into the two per-player
// increments. Shutouts require at least one recorded game so an
// administrative finalize with no games never credits one.
func buildStatDeltas(event match.FinalizedEvent) []leaguestats.Delta {
	winner := leaguestats.Delta{
		LeagueID:      event.LeagueID,
		PlayerID:      event.WinnerID,
		MatchesPlayed: 1,
		MatchesWon:    1,
	}
	loser := leaguestats.Delta{
		LeagueID:      event.LeagueID,
		PlayerID:      event.LoserID,
		MatchesPlayed: 1,
	}

	for _, g := range event.Games {
		winner.RacksPlayed++
		loser.RacksPlayed++

		if g.Innings != nil {
			winner.InningsTotal += *g.Innings
			loser.InningsTotal += *g.Innings
		}

		if g.WinnerID == event.WinnerID {
			winner.RacksWon++
			if g.IsBreakAndRun {
				winner.BreakAndRunCount++
			}
		} else {
			loser.RacksWon++
			if g.IsBreakAndRun {
				loser.BreakAndRunCount++
			}
		}
	}

	if len(event.Games) > 0 {
		if loser.RacksWon == 0 {
			winner.Shutouts = 1
		}
		if winner.RacksWon == 0 {
			loser.Shutouts = 1
		}
	}

	if event.Bounty != nil {
		winner.BountyEarned = *event.Bounty
	}

	return []leaguestats.Delta{winner, loser}
}

// GetPlayerStats exposes the aggregate to the statistics-display
// collaborator. Missing rows read as zero totals.
func (s *StatsService) GetPlayerStats(ctx context.Context, leagueID, playerID string) (leaguestats.PlayerStats, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.StatsService.GetPlayerStats")
	defer span.End()

	if leagueID == "" || playerID == "" {
		return leaguestats.PlayerStats{}, fmt.Errorf("%w: league and player ids are required", ErrInvalidInput)
	}

	stats, exists, err := s.statsRepo.GetByLeagueAndPlayer(ctx, leagueID, playerID)
	if err != nil {
		return leaguestats.PlayerStats{}, fmt.Errorf("get player stats: %w", err)
	}
	if !exists {
		return leaguestats.PlayerStats{LeagueID: leagueID, PlayerID: playerID}, nil
	}

	return stats, nil
}

// ListLeagueStats returns every aggregate row for a league.
func (s *StatsService) ListLeagueStats(ctx context.Context, leagueID string) ([]leaguestats.PlayerStats, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.StatsService.ListLeagueStats")
	defer span.End()

	if leagueID == "" {
		return nil, fmt.Errorf("%w: league id is required", ErrInvalidInput)
	}

	stats, err := s.statsRepo.ListByLeague(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("list league stats: %w", err)
	}

	return stats, nil
}
