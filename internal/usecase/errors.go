package usecase

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState marks an operation that is illegal for the discipline's
	// current status. Not retriable.
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrInconsistentScore marks a data integrity violation such as both
	// players crossing their race targets at once. Requires manual
	// reconciliation, never guessed away.
	ErrInconsistentScore = errors.New("inconsistent score state")
	// ErrDuplicateProposal marks a player proposing against their own open
	// reschedule request. User-correctable.
	ErrDuplicateProposal = errors.New("duplicate reschedule proposal")
	// ErrMatchFinalized marks a reschedule attempt on a fully closed match.
	ErrMatchFinalized = errors.New("match already finalized")
	// ErrConcurrentModification marks an optimistic-concurrency conflict that
	// survived the bounded automatic retries. Safe for callers to retry.
	ErrConcurrentModification = errors.New("concurrent modification")
)
