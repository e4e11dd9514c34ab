package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/rackside/pool-league/internal/domain/reschedule"
)

// RescheduleRepository keeps reschedule requests in memory. It holds the
// match repository so an accepted proposal can move the match date the same
// way the postgres implementation does inside one transaction.
type RescheduleRepository struct {
	mu      sync.RWMutex
	items   map[string]reschedule.Request
	matches *MatchRepository
}

func NewRescheduleRepository(matches *MatchRepository) *RescheduleRepository {
	return &RescheduleRepository{
		items:   make(map[string]reschedule.Request),
		matches: matches,
	}
}

func (r *RescheduleRepository) GetByID(_ context.Context, requestID string) (reschedule.Request, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.items[requestID]
	if !ok {
		return reschedule.Request{}, false, nil
	}

	return req, true, nil
}

func (r *RescheduleRepository) GetActiveByMatch(_ context.Context, matchID string) (reschedule.Request, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.activeByMatchLocked(matchID)
	return req, ok, nil
}

func (r *RescheduleRepository) Create(_ context.Context, req reschedule.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !req.Status.Active() {
		return fmt.Errorf("request %s is not active", req.ID)
	}
	if _, exists := r.activeByMatchLocked(req.MatchID); exists {
		return reschedule.ErrActiveRequestExists
	}
	r.items[req.ID] = req

	return nil
}

func (r *RescheduleRepository) Update(_ context.Context, req reschedule.Request, expectedStatus reschedule.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[req.ID]
	if !ok {
		return fmt.Errorf("request %s not found", req.ID)
	}
	if current.Status != expectedStatus {
		return reschedule.ErrStaleRequest
	}
	r.items[req.ID] = req

	return nil
}

func (r *RescheduleRepository) AcceptAndReschedule(_ context.Context, requestID, byPlayerID string, expectedStatus reschedule.Status) (reschedule.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[requestID]
	if !ok {
		return reschedule.Request{}, fmt.Errorf("request %s not found", requestID)
	}
	if current.Status != expectedStatus {
		return reschedule.Request{}, reschedule.ErrStaleRequest
	}
	// A concurrent counter keeps the status active but swaps the responder.
	if current.RespondingPlayerID != byPlayerID {
		return reschedule.Request{}, reschedule.ErrStaleRequest
	}

	if err := r.matches.setScheduledDate(current.MatchID, current.ProposedDate); err != nil {
		return reschedule.Request{}, err
	}

	current.Status = reschedule.StatusAccepted
	r.items[requestID] = current

	return current, nil
}

func (r *RescheduleRepository) activeByMatchLocked(matchID string) (reschedule.Request, bool) {
	for _, req := range r.items {
		if req.MatchID == matchID && req.Status.Active() {
			return req, true
		}
	}
	return reschedule.Request{}, false
}
