package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rackside/pool-league/internal/domain/handicap"
	"github.com/rackside/pool-league/internal/domain/match"
	idgen "github.com/rackside/pool-league/internal/platform/id"
	"github.com/rackside/pool-league/internal/platform/logging"
)

// FinalizedSink consumes MatchFinalized events. Implementations must be
// idempotent per (matchID, discipline): a discipline can be finalized once
// but its event may be delivered more than once.
type FinalizedSink interface {
	ApplyMatchFinalized(ctx context.Context, event match.FinalizedEvent) error
}

// RaceLength selects which half of the computed race format seeds a match's
// targets.
type RaceLength string

const (
	RaceLengthShort RaceLength = "short"
	RaceLengthLong  RaceLength = "long"
)

const defaultWriteRetries = 3

// MatchService owns the per-discipline match lifecycle: creation with
// handicap-derived race targets, game reporting, disputes, and finalization.
type MatchService struct {
	matchRepo    match.Repository
	handicap     handicap.Params
	idGen        idgen.Generator
	logger       *logging.Logger
	sinks        []FinalizedSink
	writeRetries int
}

func NewMatchService(
	matchRepo match.Repository,
	params handicap.Params,
	generator idgen.Generator,
	logger *logging.Logger,
	sinks ...FinalizedSink,
) *MatchService {
	if logger == nil {
		logger = logging.Default()
	}

	return &MatchService{
		matchRepo:    matchRepo,
		handicap:     params.Normalize(),
		idGen:        generator,
		logger:       logger,
		sinks:        sinks,
		writeRetries: defaultWriteRetries,
	}
}

type CreateMatchInput struct {
	LeagueID      string     `validate:"required"`
	Player1ID     string     `validate:"required"`
	Player2ID     string     `validate:"required,nefield=Player1ID"`
	Player1Rating int        `validate:"min=0"`
	Player2Rating int        `validate:"min=0"`
	ScheduledAt   time.Time  `validate:"required"`
	RaceLength    RaceLength `validate:"omitempty,oneof=short long"`
	Bounty        *int64     `validate:"omitempty,min=0"`
}

// CreateMatch seeds a match in the scheduled status for every discipline,
// with race targets derived from the players' current ratings. The format is
// computed once here and never recomputed for the match.
func (s *MatchService) CreateMatch(ctx context.Context, input CreateMatchInput) (match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.CreateMatch")
	defer span.End()

	if err := validateInput(input); err != nil {
		return match.Match{}, err
	}

	format := s.handicap.ComputeRaceFormat(input.Player1Rating, input.Player2Rating)
	race := format.Short
	if input.RaceLength == RaceLengthLong {
		race = format.Long
	}

	matchID, err := s.idGen.NewID()
	if err != nil {
		return match.Match{}, fmt.Errorf("generate match id: %w", err)
	}

	disciplines := make(map[match.Discipline]match.DisciplineState, len(match.Disciplines()))
	for _, d := range match.Disciplines() {
		disciplines[d] = match.DisciplineState{
			Status:       match.StatusScheduled,
			RaceTargetP1: race.P1,
			RaceTargetP2: race.P2,
		}
	}

	m := match.Match{
		ID:          matchID,
		LeagueID:    input.LeagueID,
		Player1ID:   input.Player1ID,
		Player2ID:   input.Player2ID,
		ScheduledAt: input.ScheduledAt,
		Bounty:      input.Bounty,
		Disciplines: disciplines,
	}
	if err := m.Validate(); err != nil {
		return match.Match{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.matchRepo.Create(ctx, m); err != nil {
		return match.Match{}, fmt.Errorf("create match: %w", err)
	}

	s.logger.InfoContext(ctx, "match created",
		"match_id", m.ID,
		"league_id", m.LeagueID,
		"race_p1", race.P1,
		"race_p2", race.P2,
	)

	return m, nil
}

type ReportGameInput struct {
	MatchID       string           `validate:"required"`
	Discipline    match.Discipline `validate:"required"`
	WinnerID      string           `validate:"required"`
	IsBreakAndRun bool
	Innings       *int `validate:"omitempty,min=0"`
}

// ReportGame records one rack for a discipline. The first report moves the
// discipline from scheduled to in_progress; the report that brings the
// winner's points to their race target finalizes the discipline and emits the
// MatchFinalized event, all within a single atomic write.
func (s *MatchService) ReportGame(ctx context.Context, input ReportGameInput) (match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.ReportGame")
	defer span.End()

	if err := validateInput(input); err != nil {
		return match.Match{}, err
	}
	if !input.Discipline.Valid() {
		return match.Match{}, fmt.Errorf("%w: unknown discipline %q", ErrInvalidInput, input.Discipline)
	}

	var lastErr error
	for attempt := 0; attempt <= s.writeRetries; attempt++ {
		m, state, err := s.loadDiscipline(ctx, input.MatchID, input.Discipline)
		if err != nil {
			return match.Match{}, err
		}

		switch state.Status {
		case match.StatusFinalized:
			return match.Match{}, fmt.Errorf("%w: %s discipline is finalized", ErrInvalidState, input.Discipline)
		case match.StatusDisputed:
			return match.Match{}, fmt.Errorf("%w: %s discipline is disputed", ErrInvalidState, input.Discipline)
		}
		if !m.IsParticipant(input.WinnerID) {
			return match.Match{}, fmt.Errorf("%w: winner %s is not a match participant", ErrInvalidInput, input.WinnerID)
		}

		expectedVersion := state.Version
		next := state
		next.Status = match.StatusInProgress
		reporterIsP1 := input.WinnerID == m.Player1ID
		if reporterIsP1 {
			next.PointsP1++
		} else {
			next.PointsP2++
		}

		winnerPoints, winnerTarget := next.PointsP1, next.RaceTargetP1
		opponentPoints, opponentTarget := next.PointsP2, next.RaceTargetP2
		if !reporterIsP1 {
			winnerPoints, winnerTarget = next.PointsP2, next.RaceTargetP2
			opponentPoints, opponentTarget = next.PointsP1, next.RaceTargetP1
		}

		// Every normal path finalizes the moment a player crosses, so the
		// opponent already sitting at or past their target means the stored
		// score is corrupt. Reject instead of guessing a winner.
		if opponentPoints >= opponentTarget {
			return match.Match{}, fmt.Errorf("%w: opponent of %s already at race target in %s of match %s",
				ErrInconsistentScore, input.WinnerID, input.Discipline, input.MatchID)
		}
		if winnerPoints >= winnerTarget {
			next.Status = match.StatusFinalized
			next.WinnerID = input.WinnerID
		}
		next.Version = expectedVersion + 1

		gameID, err := s.idGen.NewID()
		if err != nil {
			return match.Match{}, fmt.Errorf("generate game id: %w", err)
		}
		game := match.Game{
			ID:             gameID,
			MatchID:        m.ID,
			Discipline:     input.Discipline,
			SequenceNumber: next.PointsP1 + next.PointsP2,
			WinnerID:       input.WinnerID,
			IsBreakAndRun:  input.IsBreakAndRun,
			Innings:        input.Innings,
		}

		err = s.matchRepo.RecordGame(ctx, m.ID, game, next, expectedVersion)
		if errors.Is(err, match.ErrVersionConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return match.Match{}, fmt.Errorf("record game: %w", err)
		}

		m.Disciplines[input.Discipline] = next
		if next.Status == match.StatusFinalized {
			s.emitFinalized(ctx, m, input.Discipline, next.WinnerID)
		}

		return m, nil
	}

	return match.Match{}, fmt.Errorf("%w: report game on %s of match %s: %v",
		ErrConcurrentModification, input.Discipline, input.MatchID, lastErr)
}

type MarkDisputedInput struct {
	MatchID    string           `validate:"required"`
	Discipline match.Discipline `validate:"required"`
	Reason     string           `validate:"required"`
}

// MarkDisputed halts game reporting for the discipline until the dispute is
// resolved. Allowed only while the discipline is in progress.
func (s *MatchService) MarkDisputed(ctx context.Context, input MarkDisputedInput) (match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.MarkDisputed")
	defer span.End()

	if err := validateInput(input); err != nil {
		return match.Match{}, err
	}

	return s.mutateDiscipline(ctx, input.MatchID, input.Discipline, func(m match.Match, state match.DisciplineState) (match.DisciplineState, error) {
		if state.Status != match.StatusInProgress {
			return state, fmt.Errorf("%w: cannot dispute %s discipline in status %s", ErrInvalidState, input.Discipline, state.Status)
		}
		state.Status = match.StatusDisputed
		state.DisputeReason = input.Reason
		return state, nil
	})
}

// DisputeResolution is the administrative decision that ends a dispute.
type DisputeResolution string

const (
	ResolutionResume        DisputeResolution = "resume"
	ResolutionForceFinalize DisputeResolution = "force_finalize"
)

type ResolveDisputeInput struct {
	MatchID    string            `validate:"required"`
	Discipline match.Discipline  `validate:"required"`
	Resolution DisputeResolution `validate:"required,oneof=resume force_finalize"`
	WinnerID   string            `validate:"required_if=Resolution force_finalize"`
}

// ResolveDispute either resumes play or force-finalizes with the given
// winner. Only legal from the disputed status.
func (s *MatchService) ResolveDispute(ctx context.Context, input ResolveDisputeInput) (match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.ResolveDispute")
	defer span.End()

	if err := validateInput(input); err != nil {
		return match.Match{}, err
	}

	var finalized bool
	m, err := s.mutateDiscipline(ctx, input.MatchID, input.Discipline, func(m match.Match, state match.DisciplineState) (match.DisciplineState, error) {
		if state.Status != match.StatusDisputed {
			return state, fmt.Errorf("%w: %s discipline is not disputed", ErrInvalidState, input.Discipline)
		}

		switch input.Resolution {
		case ResolutionResume:
			state.Status = match.StatusInProgress
			state.DisputeReason = ""
			finalized = false
		case ResolutionForceFinalize:
			if !m.IsParticipant(input.WinnerID) {
				return state, fmt.Errorf("%w: winner %s is not a match participant", ErrInvalidInput, input.WinnerID)
			}
			state.Status = match.StatusFinalized
			state.WinnerID = input.WinnerID
			finalized = true
		}
		return state, nil
	})
	if err != nil {
		return match.Match{}, err
	}

	if finalized {
		s.emitFinalized(ctx, m, input.Discipline, input.WinnerID)
	}

	return m, nil
}

type FinalizeInput struct {
	MatchID    string           `validate:"required"`
	Discipline match.Discipline `validate:"required"`
	WinnerID   string           `validate:"required"`
}

// Finalize is the administrative override: it closes the discipline with the
// given winner from any non-finalized status and always emits the
// MatchFinalized event.
func (s *MatchService) Finalize(ctx context.Context, input FinalizeInput) (match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.Finalize")
	defer span.End()

	if err := validateInput(input); err != nil {
		return match.Match{}, err
	}

	m, err := s.mutateDiscipline(ctx, input.MatchID, input.Discipline, func(m match.Match, state match.DisciplineState) (match.DisciplineState, error) {
		if state.Status == match.StatusFinalized {
			return state, fmt.Errorf("%w: %s discipline is already finalized", ErrInvalidState, input.Discipline)
		}
		if !m.IsParticipant(input.WinnerID) {
			return state, fmt.Errorf("%w: winner %s is not a match participant", ErrInvalidInput, input.WinnerID)
		}
		state.Status = match.StatusFinalized
		state.WinnerID = input.WinnerID
		state.DisputeReason = ""
		return state, nil
	})
	if err != nil {
		return match.Match{}, err
	}

	s.emitFinalized(ctx, m, input.Discipline, input.WinnerID)

	return m, nil
}

// GetMatch exposes match state to the scheduling and display collaborators.
func (s *MatchService) GetMatch(ctx context.Context, matchID string) (match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.GetMatch")
	defer span.End()

	if matchID == "" {
		return match.Match{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}

	m, exists, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return match.Match{}, fmt.Errorf("get match: %w", err)
	}
	if !exists {
		return match.Match{}, fmt.Errorf("%w: match=%s", ErrNotFound, matchID)
	}

	return m, nil
}

func (s *MatchService) loadDiscipline(ctx context.Context, matchID string, d match.Discipline) (match.Match, match.DisciplineState, error) {
	m, exists, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return match.Match{}, match.DisciplineState{}, fmt.Errorf("get match: %w", err)
	}
	if !exists {
		return match.Match{}, match.DisciplineState{}, fmt.Errorf("%w: match=%s", ErrNotFound, matchID)
	}
	state, ok := m.Disciplines[d]
	if !ok {
		return match.Match{}, match.DisciplineState{}, fmt.Errorf("%w: match %s has no %s discipline", ErrInvalidInput, matchID, d)
	}
	return m, state, nil
}

// mutateDiscipline runs a read-modify-write on one discipline under the
// bounded optimistic-concurrency retry loop shared by every transition that
// does not append a game.
func (s *MatchService) mutateDiscipline(
	ctx context.Context,
	matchID string,
	d match.Discipline,
	mutate func(m match.Match, state match.DisciplineState) (match.DisciplineState, error),
) (match.Match, error) {
	if !d.Valid() {
		return match.Match{}, fmt.Errorf("%w: unknown discipline %q", ErrInvalidInput, d)
	}

	var lastErr error
	for attempt := 0; attempt <= s.writeRetries; attempt++ {
		m, state, err := s.loadDiscipline(ctx, matchID, d)
		if err != nil {
			return match.Match{}, err
		}

		expectedVersion := state.Version
		next, err := mutate(m, state)
		if err != nil {
			return match.Match{}, err
		}
		next.Version = expectedVersion + 1

		err = s.matchRepo.UpdateDisciplineState(ctx, matchID, d, next, expectedVersion)
		if errors.Is(err, match.ErrVersionConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return match.Match{}, fmt.Errorf("update discipline state: %w", err)
		}

		m.Disciplines[d] = next
		return m, nil
	}

	return match.Match{}, fmt.Errorf("%w: update %s of match %s: %v", ErrConcurrentModification, d, matchID, lastErr)
}

// emitFinalized delivers the finalize event to every registered sink. The
// discipline is already durably finalized at this point, so a sink failure is
// logged and left for reconciliation rather than failing the call; the stats
// aggregator's ledger makes redelivery safe.
func (s *MatchService) emitFinalized(ctx context.Context, m match.Match, d match.Discipline, winnerID string) {
	games, err := s.matchRepo.ListGames(ctx, m.ID, d)
	if err != nil {
		s.logger.ErrorContext(ctx, "list games for finalize event", "match_id", m.ID, "discipline", d, "error", err)
		games = nil
	}

	event := match.FinalizedEvent{
		MatchID:    m.ID,
		LeagueID:   m.LeagueID,
		Discipline: d,
		WinnerID:   winnerID,
		LoserID:    m.Opponent(winnerID),
		Bounty:     m.Bounty,
		Games:      games,
	}

	for _, sink := range s.sinks {
		if err := sink.ApplyMatchFinalized(ctx, event); err != nil {
			s.logger.ErrorContext(ctx, "finalize event sink failed",
				"match_id", m.ID,
				"discipline", d,
				"error", err,
			)
		}
	}
}
