package leaguestats

import "context"

// Repository describes stats persistence needs from use cases. Apply must
// make the ledger insert and the stat increments one atomic unit so a retried
// or duplicated finalize event can never be partially applied.
type Repository interface {
	GetByLeagueAndPlayer(ctx context.Context, leagueID, playerID string) (PlayerStats, bool, error)
	ListByLeague(ctx context.Context, leagueID string) ([]PlayerStats, error)
	// Applied reports whether the ledger already holds the key.
	Applied(ctx context.Context, key AppliedKey) (bool, error)
	// Apply inserts the ledger key and applies the deltas atomically. Returns
	// false without touching stats when the key was already present.
	Apply(ctx context.Context, key AppliedKey, deltas []Delta) (bool, error)
}
