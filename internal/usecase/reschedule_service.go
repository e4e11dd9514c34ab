package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rackside/pool-league/internal/domain/match"
	"github.com/rackside/pool-league/internal/domain/reschedule"
	idgen "github.com/rackside/pool-league/internal/platform/id"
	"github.com/rackside/pool-league/internal/platform/logging"
)

// RescheduleService runs the proposal/counter/accept/decline negotiation for
// moving a match's scheduled date. A counter-proposal replaces the open
// request in place, so the "at most one active request per match" invariant
// never requires walking a history chain.
type RescheduleService struct {
	matchRepo      match.Repository
	rescheduleRepo reschedule.Repository
	idGen          idgen.Generator
	logger         *logging.Logger
}

func NewRescheduleService(
	matchRepo match.Repository,
	rescheduleRepo reschedule.Repository,
	generator idgen.Generator,
	logger *logging.Logger,
) *RescheduleService {
	if logger == nil {
		logger = logging.Default()
	}

	return &RescheduleService{
		matchRepo:      matchRepo,
		rescheduleRepo: rescheduleRepo,
		idGen:          generator,
		logger:         logger,
	}
}

type ProposeRescheduleInput struct {
	MatchID      string    `validate:"required"`
	ByPlayerID   string    `validate:"required"`
	ProposedDate time.Time `validate:"required"`
}

// Propose opens a negotiation, or counters the open one when the other
// player already proposed. Proposing again against your own open request is
// rejected as a duplicate.
func (s *RescheduleService) Propose(ctx context.Context, input ProposeRescheduleInput) (reschedule.Request, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RescheduleService.Propose")
	defer span.End()

	if err := validateInput(input); err != nil {
		return reschedule.Request{}, err
	}

	m, exists, err := s.matchRepo.GetByID(ctx, input.MatchID)
	if err != nil {
		return reschedule.Request{}, fmt.Errorf("get match: %w", err)
	}
	if !exists {
		return reschedule.Request{}, fmt.Errorf("%w: match=%s", ErrNotFound, input.MatchID)
	}
	if !m.IsParticipant(input.ByPlayerID) {
		return reschedule.Request{}, fmt.Errorf("%w: player %s is not a match participant", ErrUnauthorized, input.ByPlayerID)
	}
	if m.FullyFinalized() {
		return reschedule.Request{}, fmt.Errorf("%w: match=%s", ErrMatchFinalized, input.MatchID)
	}

	active, found, err := s.rescheduleRepo.GetActiveByMatch(ctx, input.MatchID)
	if err != nil {
		return reschedule.Request{}, fmt.Errorf("get active reschedule request: %w", err)
	}

	if !found {
		requestID, err := s.idGen.NewID()
		if err != nil {
			return reschedule.Request{}, fmt.Errorf("generate request id: %w", err)
		}

		r := reschedule.Request{
			ID:                  requestID,
			MatchID:             input.MatchID,
			RequestedByPlayerID: input.ByPlayerID,
			RespondingPlayerID:  m.Opponent(input.ByPlayerID),
			ProposedDate:        input.ProposedDate,
			Status:              reschedule.StatusPending,
		}
		if err := r.Validate(); err != nil {
			return reschedule.Request{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}

		if err := s.rescheduleRepo.Create(ctx, r); err != nil {
			if errors.Is(err, reschedule.ErrActiveRequestExists) {
				return reschedule.Request{}, fmt.Errorf("%w: propose on match %s", ErrConcurrentModification, input.MatchID)
			}
			return reschedule.Request{}, fmt.Errorf("create reschedule request: %w", err)
		}

		s.logger.InfoContext(ctx, "reschedule proposed", "match_id", input.MatchID, "request_id", r.ID)
		return r, nil
	}

	if active.RequestedByPlayerID == input.ByPlayerID {
		return reschedule.Request{}, fmt.Errorf("%w: request %s is still awaiting a response", ErrDuplicateProposal, active.ID)
	}

	// Counter: replace the open negotiation in place and swap roles so the
	// previous proposer becomes the responder.
	countered := active
	countered.Status = reschedule.StatusCountered
	countered.ProposedDate = input.ProposedDate
	countered.RequestedByPlayerID = input.ByPlayerID
	countered.RespondingPlayerID = active.RequestedByPlayerID

	if err := s.rescheduleRepo.Update(ctx, countered, active.Status); err != nil {
		if errors.Is(err, reschedule.ErrStaleRequest) {
			return reschedule.Request{}, fmt.Errorf("%w: counter on match %s", ErrConcurrentModification, input.MatchID)
		}
		return reschedule.Request{}, fmt.Errorf("counter reschedule request: %w", err)
	}

	s.logger.InfoContext(ctx, "reschedule countered", "match_id", input.MatchID, "request_id", countered.ID)
	return countered, nil
}

// RescheduleDecision is a responder's verdict on the open proposal.
type RescheduleDecision string

const (
	DecisionAccept  RescheduleDecision = "accept"
	DecisionDecline RescheduleDecision = "decline"
)

type RespondRescheduleInput struct {
	RequestID  string             `validate:"required"`
	ByPlayerID string             `validate:"required"`
	Decision   RescheduleDecision `validate:"required,oneof=accept decline"`
}

// Respond closes the negotiation slot. Accepting moves the match's scheduled
// date to the proposed one in the same transaction that records the
// acceptance; either decision frees the slot for a fresh proposal.
func (s *RescheduleService) Respond(ctx context.Context, input RespondRescheduleInput) (reschedule.Request, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RescheduleService.Respond")
	defer span.End()

	if err := validateInput(input); err != nil {
		return reschedule.Request{}, err
	}

	r, exists, err := s.rescheduleRepo.GetByID(ctx, input.RequestID)
	if err != nil {
		return reschedule.Request{}, fmt.Errorf("get reschedule request: %w", err)
	}
	if !exists {
		return reschedule.Request{}, fmt.Errorf("%w: request=%s", ErrNotFound, input.RequestID)
	}
	if !r.Status.Active() {
		return reschedule.Request{}, fmt.Errorf("%w: request %s is already %s", ErrInvalidState, r.ID, r.Status)
	}
	if r.RespondingPlayerID != input.ByPlayerID {
		return reschedule.Request{}, fmt.Errorf("%w: player %s may not respond to request %s", ErrUnauthorized, input.ByPlayerID, r.ID)
	}

	switch input.Decision {
	case DecisionAccept:
		accepted, err := s.rescheduleRepo.AcceptAndReschedule(ctx, r.ID, input.ByPlayerID, r.Status)
		if err != nil {
			if errors.Is(err, reschedule.ErrStaleRequest) {
				return reschedule.Request{}, fmt.Errorf("%w: accept request %s", ErrConcurrentModification, r.ID)
			}
			return reschedule.Request{}, fmt.Errorf("accept reschedule request: %w", err)
		}
		s.logger.InfoContext(ctx, "reschedule accepted", "match_id", r.MatchID, "request_id", r.ID)
		return accepted, nil

	case DecisionDecline:
		declined := r
		declined.Status = reschedule.StatusDeclined
		if err := s.rescheduleRepo.Update(ctx, declined, r.Status); err != nil {
			if errors.Is(err, reschedule.ErrStaleRequest) {
				return reschedule.Request{}, fmt.Errorf("%w: decline request %s", ErrConcurrentModification, r.ID)
			}
			return reschedule.Request{}, fmt.Errorf("decline reschedule request: %w", err)
		}
		s.logger.InfoContext(ctx, "reschedule declined", "match_id", r.MatchID, "request_id", r.ID)
		return declined, nil
	}

	return reschedule.Request{}, fmt.Errorf("%w: unknown decision %q", ErrInvalidInput, input.Decision)
}
