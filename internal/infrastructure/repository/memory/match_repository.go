package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rackside/pool-league/internal/domain/match"
)

type gameKey struct {
	matchID    string
	discipline match.Discipline
}

// MatchRepository is an in-memory match store used by tests and local runs.
// The single mutex stands in for the per-discipline row transactions the
// postgres implementation gets from the database.
type MatchRepository struct {
	mu    sync.RWMutex
	items map[string]match.Match
	games map[gameKey][]match.Game
}

func NewMatchRepository() *MatchRepository {
	return &MatchRepository{
		items: make(map[string]match.Match),
		games: make(map[gameKey][]match.Game),
	}
}

func (r *MatchRepository) Create(_ context.Context, m match.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[m.ID]; exists {
		return fmt.Errorf("match %s already exists", m.ID)
	}
	r.items[m.ID] = cloneMatch(m)

	return nil
}

func (r *MatchRepository) GetByID(_ context.Context, matchID string) (match.Match, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.items[matchID]
	if !ok {
		return match.Match{}, false, nil
	}

	return cloneMatch(m), true, nil
}

func (r *MatchRepository) ListFinalizedByLeague(_ context.Context, leagueID string) ([]match.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []match.Match
	for _, m := range r.items {
		if m.LeagueID != leagueID {
			continue
		}
		for _, state := range m.Disciplines {
			if state.Status == match.StatusFinalized {
				out = append(out, cloneMatch(m))
				break
			}
		}
	}

	return out, nil
}

func (r *MatchRepository) RecordGame(_ context.Context, matchID string, g match.Game, state match.DisciplineState, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.items[matchID]
	if !ok {
		return fmt.Errorf("match %s not found", matchID)
	}
	current, ok := m.Disciplines[g.Discipline]
	if !ok {
		return fmt.Errorf("match %s has no %s discipline", matchID, g.Discipline)
	}
	if current.Version != expectedVersion {
		return match.ErrVersionConflict
	}

	m = cloneMatch(m)
	m.Disciplines[g.Discipline] = state
	r.items[matchID] = m

	key := gameKey{matchID: matchID, discipline: g.Discipline}
	r.games[key] = append(r.games[key], g)

	return nil
}

func (r *MatchRepository) UpdateDisciplineState(_ context.Context, matchID string, d match.Discipline, state match.DisciplineState, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.items[matchID]
	if !ok {
		return fmt.Errorf("match %s not found", matchID)
	}
	current, ok := m.Disciplines[d]
	if !ok {
		return fmt.Errorf("match %s has no %s discipline", matchID, d)
	}
	if current.Version != expectedVersion {
		return match.ErrVersionConflict
	}

	m = cloneMatch(m)
	m.Disciplines[d] = state
	r.items[matchID] = m

	return nil
}

func (r *MatchRepository) ListGames(_ context.Context, matchID string, d match.Discipline) ([]match.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	games := r.games[gameKey{matchID: matchID, discipline: d}]
	out := make([]match.Game, len(games))
	copy(out, games)

	return out, nil
}

// setScheduledDate is used by the reschedule repository to apply an accepted
// proposal under its own lock ordering.
func (r *MatchRepository) setScheduledDate(matchID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.items[matchID]
	if !ok {
		return fmt.Errorf("match %s not found", matchID)
	}
	m = cloneMatch(m)
	m.ScheduledAt = at
	r.items[matchID] = m

	return nil
}

func cloneMatch(m match.Match) match.Match {
	out := m
	out.Disciplines = make(map[match.Discipline]match.DisciplineState, len(m.Disciplines))
	for d, state := range m.Disciplines {
		out.Disciplines[d] = state
	}
	if m.Bounty != nil {
		bounty := *m.Bounty
		out.Bounty = &bounty
	}
	return out
}
