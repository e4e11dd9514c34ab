package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rackside/pool-league/internal/domain/handicap"
	"github.com/rackside/pool-league/internal/domain/match"
	"github.com/rackside/pool-league/internal/domain/reschedule"
	"github.com/rackside/pool-league/internal/infrastructure/repository/memory"
	"github.com/rackside/pool-league/internal/platform/logging"
)

func newRescheduleFixture(t *testing.T) (*RescheduleService, *MatchService, match.Match) {
	t.Helper()

	matches := memory.NewMatchRepository()
	requests := memory.NewRescheduleRepository(matches)
	gen := &seqIDGenerator{prefix: "id"}

	matchSvc := NewMatchService(matches, handicap.DefaultParams(), gen, logging.NewNop())
	svc := NewRescheduleService(matches, requests, gen, logging.NewNop())

	m := createTestMatch(t, matchSvc, CreateMatchInput{
		Player1Rating: 60,
		Player2Rating: 60,
	})

	return svc, matchSvc, m
}

func proposeDate(day int) time.Time {
	return time.Date(2026, 4, day, 20, 0, 0, 0, time.UTC)
}

func TestRescheduleService_Propose(t *testing.T) {
	svc, _, m := newRescheduleFixture(t)

	r, err := svc.Propose(t.Context(), ProposeRescheduleInput{
		MatchID:      m.ID,
		ByPlayerID:   "player-1",
		ProposedDate: proposeDate(2),
	})
	if err != nil {
		t.Fatalf("propose failed: %v", err)
	}
	if r.Status != reschedule.StatusPending {
		t.Fatalf("expected pending request, got %s", r.Status)
	}
	if r.RequestedByPlayerID != "player-1" || r.RespondingPlayerID != "player-2" {
		t.Fatalf("unexpected request roles: %+v", r)
	}
	if !r.ProposedDate.Equal(proposeDate(2)) {
		t.Fatalf("unexpected proposed date: %v", r.ProposedDate)
	}
}

func TestRescheduleService_Propose_Rejections(t *testing.T) {
	svc, matchSvc, m := newRescheduleFixture(t)

	t.Run("unknown match", func(t *testing.T) {
		_, err := svc.Propose(t.Context(), ProposeRescheduleInput{
			MatchID:      "missing",
			ByPlayerID:   "player-1",
			ProposedDate: proposeDate(2),
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("non participant", func(t *testing.T) {
		_, err := svc.Propose(t.Context(), ProposeRescheduleInput{
			MatchID:      m.ID,
			ByPlayerID:   "player-9",
			ProposedDate: proposeDate(2),
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("duplicate proposal by same player", func(t *testing.T) {
		if _, err := svc.Propose(t.Context(), ProposeRescheduleInput{
			MatchID:      m.ID,
			ByPlayerID:   "player-1",
			ProposedDate: proposeDate(2),
		}); err != nil {
			t.Fatalf("propose failed: %v", err)
		}
		_, err := svc.Propose(t.Context(), ProposeRescheduleInput{
			MatchID:      m.ID,
			ByPlayerID:   "player-1",
			ProposedDate: proposeDate(3),
		})
		if !errors.Is(err, ErrDuplicateProposal) {
			t.Fatalf("expected ErrDuplicateProposal, got %v", err)
		}
	})

	t.Run("fully finalized match", func(t *testing.T) {
		for _, d := range match.Disciplines() {
			if _, err := matchSvc.Finalize(t.Context(), FinalizeInput{
				MatchID:    m.ID,
				Discipline: d,
				WinnerID:   "player-1",
			}); err != nil {
				t.Fatalf("finalize %s failed: %v", d, err)
			}
		}
		_, err := svc.Propose(t.Context(), ProposeRescheduleInput{
			MatchID:      m.ID,
			ByPlayerID:   "player-2",
			ProposedDate: proposeDate(4),
		})
		if !errors.Is(err, ErrMatchFinalized) {
			t.Fatalf("expected ErrMatchFinalized, got %v", err)
		}
	})
}

func TestRescheduleService_Propose_CounterSwapsRoles(t *testing.T) {
	svc, _, m := newRescheduleFixture(t)

	original, err := svc.Propose(t.Context(), ProposeRescheduleInput{
		MatchID:      m.ID,
		ByPlayerID:   "player-1",
		ProposedDate: proposeDate(2),
	})
	if err != nil {
		t.Fatalf("propose failed: %v", err)
	}

	countered, err := svc.Propose(t.Context(), ProposeRescheduleInput{
		MatchID:      m.ID,
		ByPlayerID:   "player-2",
		ProposedDate: proposeDate(9),
	})
	if err != nil {
		t.Fatalf("counter failed: %v", err)
	}

	if countered.ID != original.ID {
		t.Fatalf("counter must reuse the open request, got %s vs %s", countered.ID, original.ID)
	}
	if countered.Status != reschedule.StatusCountered {
		t.Fatalf("expected countered status, got %s", countered.Status)
	}
	if countered.RequestedByPlayerID != "player-2" || countered.RespondingPlayerID != "player-1" {
		t.Fatalf("expected swapped roles, got %+v", countered)
	}
	if !countered.ProposedDate.Equal(proposeDate(9)) {
		t.Fatalf("unexpected proposed date: %v", countered.ProposedDate)
	}
}

func TestRescheduleService_Respond_AcceptMovesMatchDate(t *testing.T) {
	svc, matchSvc, m := newRescheduleFixture(t)

	r, err := svc.Propose(t.Context(), ProposeRescheduleInput{
		MatchID:      m.ID,
		ByPlayerID:   "player-1",
		ProposedDate: proposeDate(11),
	})
	if err != nil {
		t.Fatalf("propose failed: %v", err)
	}

	accepted, err := svc.Respond(t.Context(), RespondRescheduleInput{
		RequestID:  r.ID,
		ByPlayerID: "player-2",
		Decision:   DecisionAccept,
	})
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if accepted.Status != reschedule.StatusAccepted {
		t.Fatalf("expected accepted status, got %s", accepted.Status)
	}

	moved, err := matchSvc.GetMatch(t.Context(), m.ID)
	if err != nil {
		t.Fatalf("get match failed: %v", err)
	}
	if !moved.ScheduledAt.Equal(proposeDate(11)) {
		t.Fatalf("match date not moved, got %v", moved.ScheduledAt)
	}

	// Accepting closes the slot, so a fresh proposal opens a new negotiation.
	fresh, err := svc.Propose(t.Context(), ProposeRescheduleInput{
		MatchID:      m.ID,
		ByPlayerID:   "player-2",
		ProposedDate: proposeDate(18),
	})
	if err != nil {
		t.Fatalf("propose after accept failed: %v", err)
	}
	if fresh.ID == r.ID || fresh.Status != reschedule.StatusPending {
		t.Fatalf("expected a new pending request, got %+v", fresh)
	}
}

func TestRescheduleService_Respond_DeclineFreesSlot(t *testing.T) {
	svc, matchSvc, m := newRescheduleFixture(t)

	r, err := svc.Propose(t.Context(), ProposeRescheduleInput{
		MatchID:      m.ID,
		ByPlayerID:   "player-2",
		ProposedDate: proposeDate(11),
	})
	if err != nil {
		t.Fatalf("propose failed: %v", err)
	}

	declined, err := svc.Respond(t.Context(), RespondRescheduleInput{
		RequestID:  r.ID,
		ByPlayerID: "player-1",
		Decision:   DecisionDecline,
	})
	if err != nil {
		t.Fatalf("decline failed: %v", err)
	}
	if declined.Status != reschedule.StatusDeclined {
		t.Fatalf("expected declined status, got %s", declined.Status)
	}

	unchanged, err := matchSvc.GetMatch(t.Context(), m.ID)
	if err != nil {
		t.Fatalf("get match failed: %v", err)
	}
	if !unchanged.ScheduledAt.Equal(m.ScheduledAt) {
		t.Fatalf("declined proposal must not move the match date, got %v", unchanged.ScheduledAt)
	}

	if _, err := svc.Propose(t.Context(), ProposeRescheduleInput{
		MatchID:      m.ID,
		ByPlayerID:   "player-2",
		ProposedDate: proposeDate(12),
	}); err != nil {
		t.Fatalf("propose after decline failed: %v", err)
	}
}

// acceptHookRescheduleRepo runs a hook right before the accept transaction,
// standing in for a writer that slips in between the service's read and the
// commit.
type acceptHookRescheduleRepo struct {
	reschedule.Repository
	beforeAccept func()
}

func (r *acceptHookRescheduleRepo) AcceptAndReschedule(ctx context.Context, requestID, byPlayerID string, expectedStatus reschedule.Status) (reschedule.Request, error) {
	if r.beforeAccept != nil {
		hook := r.beforeAccept
		r.beforeAccept = nil
		hook()
	}
	return r.Repository.AcceptAndReschedule(ctx, requestID, byPlayerID, expectedStatus)
}

func TestRescheduleService_Respond_AcceptLosesToConcurrentCounter(t *testing.T) {
	matches := memory.NewMatchRepository()
	requests := memory.NewRescheduleRepository(matches)
	gen := &seqIDGenerator{prefix: "id"}

	matchSvc := NewMatchService(matches, handicap.DefaultParams(), gen, logging.NewNop())
	wrapped := &acceptHookRescheduleRepo{Repository: requests}
	svc := NewRescheduleService(matches, wrapped, gen, logging.NewNop())

	m := createTestMatch(t, matchSvc, CreateMatchInput{
		Player1Rating: 60,
		Player2Rating: 60,
	})

	if _, err := svc.Propose(t.Context(), ProposeRescheduleInput{
		MatchID:      m.ID,
		ByPlayerID:   "player-1",
		ProposedDate: proposeDate(5),
	}); err != nil {
		t.Fatalf("propose failed: %v", err)
	}
	countered, err := svc.Propose(t.Context(), ProposeRescheduleInput{
		MatchID:      m.ID,
		ByPlayerID:   "player-2",
		ProposedDate: proposeDate(9),
	})
	if err != nil {
		t.Fatalf("counter failed: %v", err)
	}

	// Between player-1's read of the countered request and the committing
	// accept, player-1 counters again: the status stays countered but the
	// roles swap back and the date changes.
	wrapped.beforeAccept = func() {
		racing := countered
		racing.RequestedByPlayerID = "player-1"
		racing.RespondingPlayerID = "player-2"
		racing.ProposedDate = proposeDate(23)
		if err := requests.Update(t.Context(), racing, reschedule.StatusCountered); err != nil {
			t.Fatalf("racing counter failed: %v", err)
		}
	}

	_, err = svc.Respond(t.Context(), RespondRescheduleInput{
		RequestID:  countered.ID,
		ByPlayerID: "player-1",
		Decision:   DecisionAccept,
	})
	if !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}

	unchanged, err := matchSvc.GetMatch(t.Context(), m.ID)
	if err != nil {
		t.Fatalf("get match failed: %v", err)
	}
	if !unchanged.ScheduledAt.Equal(m.ScheduledAt) {
		t.Fatalf("lost accept must not move the match date, got %v", unchanged.ScheduledAt)
	}
}

func TestRescheduleService_Respond_Rejections(t *testing.T) {
	svc, _, m := newRescheduleFixture(t)

	r, err := svc.Propose(t.Context(), ProposeRescheduleInput{
		MatchID:      m.ID,
		ByPlayerID:   "player-1",
		ProposedDate: proposeDate(11),
	})
	if err != nil {
		t.Fatalf("propose failed: %v", err)
	}

	t.Run("unknown request", func(t *testing.T) {
		_, err := svc.Respond(t.Context(), RespondRescheduleInput{
			RequestID:  "missing",
			ByPlayerID: "player-2",
			Decision:   DecisionAccept,
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("proposer may not respond", func(t *testing.T) {
		_, err := svc.Respond(t.Context(), RespondRescheduleInput{
			RequestID:  r.ID,
			ByPlayerID: "player-1",
			Decision:   DecisionAccept,
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("closed request", func(t *testing.T) {
		if _, err := svc.Respond(t.Context(), RespondRescheduleInput{
			RequestID:  r.ID,
			ByPlayerID: "player-2",
			Decision:   DecisionDecline,
		}); err != nil {
			t.Fatalf("decline failed: %v", err)
		}
		_, err := svc.Respond(t.Context(), RespondRescheduleInput{
			RequestID:  r.ID,
			ByPlayerID: "player-2",
			Decision:   DecisionAccept,
		})
		if !errors.Is(err, ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}
	})
}
