package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rackside/pool-league/internal/domain/reschedule"
	qb "github.com/rackside/pool-league/internal/platform/querybuilder"
)

type RescheduleRepository struct {
	db *sqlx.DB
}

func NewRescheduleRepository(db *sqlx.DB) *RescheduleRepository {
	return &RescheduleRepository{db: db}
}

func (r *RescheduleRepository) GetByID(ctx context.Context, requestID string) (reschedule.Request, bool, error) {
	query, args, err := qb.Select("*").From("reschedule_requests").
		Where(qb.Eq("id", requestID)).
		ToSQL()
	if err != nil {
		return reschedule.Request{}, false, fmt.Errorf("build get reschedule request query: %w", err)
	}

	var row rescheduleTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return reschedule.Request{}, false, nil
		}
		return reschedule.Request{}, false, fmt.Errorf("get reschedule request: %w", err)
	}

	return row.toRequest(), true, nil
}

func (r *RescheduleRepository) GetActiveByMatch(ctx context.Context, matchID string) (reschedule.Request, bool, error) {
	query, args, err := qb.Select("*").From("reschedule_requests").
		Where(
			qb.Eq("match_id", matchID),
			qb.In("status", []any{string(reschedule.StatusPending), string(reschedule.StatusCountered)}),
		).
		Limit(1).
		ToSQL()
	if err != nil {
		return reschedule.Request{}, false, fmt.Errorf("build get active reschedule request query: %w", err)
	}

	var row rescheduleTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return reschedule.Request{}, false, nil
		}
		return reschedule.Request{}, false, fmt.Errorf("get active reschedule request match_id=%s: %w", matchID, err)
	}

	return row.toRequest(), true, nil
}

func (r *RescheduleRepository) Create(ctx context.Context, req reschedule.Request) error {
	now := time.Now().UTC()
	model := rescheduleTableModel{
		ID:                  req.ID,
		MatchID:             req.MatchID,
		RequestedByPlayerID: req.RequestedByPlayerID,
		RespondingPlayerID:  req.RespondingPlayerID,
		ProposedDate:        req.ProposedDate.UTC(),
		Status:              string(req.Status),
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	query, args, err := qb.InsertModel("reschedule_requests", model, "")
	if err != nil {
		return fmt.Errorf("build insert reschedule request query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		// The partial unique index on active requests enforces the one
		// negotiation slot per match.
		if isUniqueViolation(err) {
			return reschedule.ErrActiveRequestExists
		}
		return fmt.Errorf("insert reschedule request id=%s: %w", req.ID, err)
	}

	return nil
}

func (r *RescheduleRepository) Update(ctx context.Context, req reschedule.Request, expectedStatus reschedule.Status) error {
	query, args, err := qb.Update("reschedule_requests").
		Set("requested_by_player_id", req.RequestedByPlayerID).
		Set("responding_player_id", req.RespondingPlayerID).
		Set("proposed_date", req.ProposedDate.UTC()).
		Set("status", string(req.Status)).
		Set("updated_at", time.Now().UTC()).
		Where(
			qb.Eq("id", req.ID),
			qb.Eq("status", string(expectedStatus)),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update reschedule request query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update reschedule request id=%s: %w", req.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reschedule request rows affected: %w", err)
	}
	if affected == 0 {
		return reschedule.ErrStaleRequest
	}

	return nil
}

func (r *RescheduleRepository) AcceptAndReschedule(ctx context.Context, requestID, byPlayerID string, expectedStatus reschedule.Status) (reschedule.Request, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return reschedule.Request{}, fmt.Errorf("begin accept reschedule tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := qb.Select("*").From("reschedule_requests").
		Where(qb.Eq("id", requestID)).
		ToSQL()
	if err != nil {
		return reschedule.Request{}, fmt.Errorf("build get reschedule request query: %w", err)
	}
	query += " FOR UPDATE"

	var row rescheduleTableModel
	if err := tx.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return reschedule.Request{}, reschedule.ErrStaleRequest
		}
		return reschedule.Request{}, fmt.Errorf("get reschedule request for accept: %w", err)
	}
	if reschedule.Status(row.Status) != expectedStatus {
		return reschedule.Request{}, reschedule.ErrStaleRequest
	}
	// A counter that landed between the caller's read and this lock keeps the
	// status active but swaps the responder, so the row must still name the
	// accepting player as responder.
	if row.RespondingPlayerID != byPlayerID {
		return reschedule.Request{}, reschedule.ErrStaleRequest
	}

	now := time.Now().UTC()
	updateReq, args, err := qb.Update("reschedule_requests").
		Set("status", string(reschedule.StatusAccepted)).
		Set("updated_at", now).
		Where(qb.Eq("id", requestID)).
		ToSQL()
	if err != nil {
		return reschedule.Request{}, fmt.Errorf("build accept reschedule request query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, updateReq, args...); err != nil {
		return reschedule.Request{}, fmt.Errorf("accept reschedule request id=%s: %w", requestID, err)
	}

	updateMatch, args, err := qb.Update("matches").
		Set("scheduled_at", row.ProposedDate.UTC()).
		Set("updated_at", now).
		Where(qb.Eq("id", row.MatchID)).
		ToSQL()
	if err != nil {
		return reschedule.Request{}, fmt.Errorf("build reschedule match query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, updateMatch, args...); err != nil {
		return reschedule.Request{}, fmt.Errorf("reschedule match id=%s: %w", row.MatchID, err)
	}

	if err := tx.Commit(); err != nil {
		return reschedule.Request{}, fmt.Errorf("commit accept reschedule tx: %w", err)
	}

	accepted := row.toRequest()
	accepted.Status = reschedule.StatusAccepted

	return accepted, nil
}
