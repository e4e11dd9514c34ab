package memory

import (
	"context"
	"sync"

	"github.com/rackside/pool-league/internal/domain/leaguestats"
)

type statsKey struct {
	leagueID string
	playerID string
}

// StatsRepository keeps aggregates and the applied-event ledger in memory.
// Apply checks and records the ledger entry under one lock, matching the
// transactional guarantee of the postgres implementation.
type StatsRepository struct {
	mu      sync.RWMutex
	stats   map[statsKey]leaguestats.PlayerStats
	applied map[leaguestats.AppliedKey]struct{}
}

func NewStatsRepository() *StatsRepository {
	return &StatsRepository{
		stats:   make(map[statsKey]leaguestats.PlayerStats),
		applied: make(map[leaguestats.AppliedKey]struct{}),
	}
}

func (r *StatsRepository) GetByLeagueAndPlayer(_ context.Context, leagueID, playerID string) (leaguestats.PlayerStats, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stats[statsKey{leagueID: leagueID, playerID: playerID}]
	if !ok {
		return leaguestats.PlayerStats{}, false, nil
	}

	return s, true, nil
}

func (r *StatsRepository) ListByLeague(_ context.Context, leagueID string) ([]leaguestats.PlayerStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []leaguestats.PlayerStats
	for key, s := range r.stats {
		if key.leagueID == leagueID {
			out = append(out, s)
		}
	}

	return out, nil
}

func (r *StatsRepository) Applied(_ context.Context, key leaguestats.AppliedKey) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.applied[key]
	return ok, nil
}

func (r *StatsRepository) Apply(_ context.Context, key leaguestats.AppliedKey, deltas []leaguestats.Delta) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.applied[key]; ok {
		return false, nil
	}
	r.applied[key] = struct{}{}

	for _, d := range deltas {
		k := statsKey{leagueID: d.LeagueID, playerID: d.PlayerID}
		s, ok := r.stats[k]
		if !ok {
			s = leaguestats.PlayerStats{LeagueID: d.LeagueID, PlayerID: d.PlayerID}
		}
		s.MatchesPlayed += d.MatchesPlayed
		s.MatchesWon += d.MatchesWon
		s.RacksPlayed += d.RacksPlayed
		s.RacksWon += d.RacksWon
		s.Shutouts += d.Shutouts
		s.BreakAndRunCount += d.BreakAndRunCount
		s.InningsTotal += d.InningsTotal
		s.BountyEarned += d.BountyEarned
		r.stats[k] = s
	}

	return true, nil
}
