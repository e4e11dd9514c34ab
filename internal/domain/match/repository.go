package match

import (
	"context"
	"errors"
)

// ErrVersionConflict signals the compare-and-swap on a discipline row lost a
// race with another writer. Callers re-read and retry.
var ErrVersionConflict = errors.New("match discipline was modified concurrently")

// Repository describes match persistence needs from use cases. Mutations of a
// discipline are compare-and-swap on the version read; every committed write
// increments it by one.
type Repository interface {
	Create(ctx context.Context, m Match) error
	GetByID(ctx context.Context, matchID string) (Match, bool, error)
	// ListFinalizedByLeague returns matches in the league with at least one
	// finalized discipline.
	ListFinalizedByLeague(ctx context.Context, leagueID string) ([]Match, error)
	// RecordGame appends a game and applies the new discipline state as one
	// atomic write.
	RecordGame(ctx context.Context, matchID string, g Game, state DisciplineState, expectedVersion int64) error
	UpdateDisciplineState(ctx context.Context, matchID string, d Discipline, state DisciplineState, expectedVersion int64) error
	ListGames(ctx context.Context, matchID string, d Discipline) ([]Game, error)
}
