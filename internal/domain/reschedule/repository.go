package reschedule

import (
	"context"
	"errors"
)

var (
	// ErrActiveRequestExists means another proposal already holds the match's
	// negotiation slot; enforced by storage, not application locking.
	ErrActiveRequestExists = errors.New("an active reschedule request already exists for the match")
	// ErrStaleRequest means a compare-and-swap on the request status lost a
	// race with another writer.
	ErrStaleRequest = errors.New("reschedule request was modified concurrently")
)

// Repository describes reschedule persistence needs from use cases. Status
// mutations are compare-and-swap on the status read.
type Repository interface {
	GetByID(ctx context.Context, requestID string) (Request, bool, error)
	GetActiveByMatch(ctx context.Context, matchID string) (Request, bool, error)
	Create(ctx context.Context, r Request) error
	Update(ctx context.Context, r Request, expectedStatus Status) error
	// AcceptAndReschedule flips the request to accepted and moves the match's
	// scheduled date to the proposed one inside the same transaction. The
	// request's status AND responding player are re-verified there: a counter
	// keeps the status active while swapping roles and replacing the date, so
	// status alone cannot prove the responder is accepting what they read.
	AcceptAndReschedule(ctx context.Context, requestID, byPlayerID string, expectedStatus Status) (Request, error)
}
