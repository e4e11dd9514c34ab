package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rackside/pool-league/internal/domain/match"
	qb "github.com/rackside/pool-league/internal/platform/querybuilder"
)

type MatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) Create(ctx context.Context, m match.Match) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create match tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	model := matchTableModel{
		ID:          m.ID,
		LeagueID:    m.LeagueID,
		Player1ID:   m.Player1ID,
		Player2ID:   m.Player2ID,
		ScheduledAt: m.ScheduledAt.UTC(),
		Bounty:      optionalInt64(m.Bounty),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query, args, err := qb.InsertModel("matches", model, "")
	if err != nil {
		return fmt.Errorf("build insert match query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert match id=%s: %w", m.ID, err)
	}

	for _, d := range match.Disciplines() {
		state, ok := m.Disciplines[d]
		if !ok {
			continue
		}
		query, args, err := qb.InsertModel("match_disciplines", disciplineModel(m.ID, d, state), "")
		if err != nil {
			return fmt.Errorf("build insert match discipline query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert match discipline match_id=%s discipline=%s: %w", m.ID, d, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create match tx: %w", err)
	}

	return nil
}

func (r *MatchRepository) GetByID(ctx context.Context, matchID string) (match.Match, bool, error) {
	query, args, err := qb.Select("*").From("matches").
		Where(qb.Eq("id", matchID)).
		ToSQL()
	if err != nil {
		return match.Match{}, false, fmt.Errorf("build get match by id query: %w", err)
	}

	var row matchTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return match.Match{}, false, nil
		}
		return match.Match{}, false, fmt.Errorf("get match by id: %w", err)
	}

	disciplines, err := r.disciplinesByMatch(ctx, []string{matchID})
	if err != nil {
		return match.Match{}, false, err
	}

	return assembleMatch(row, disciplines[matchID]), true, nil
}

func (r *MatchRepository) ListFinalizedByLeague(ctx context.Context, leagueID string) ([]match.Match, error) {
	query, args, err := qb.Select("*").From("matches").
		Where(
			qb.Eq("league_id", leagueID),
			qb.Expr("id IN (SELECT match_id FROM match_disciplines WHERE status = ?)", string(match.StatusFinalized)),
		).
		OrderBy("scheduled_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list finalized matches query: %w", err)
	}

	var rows []matchTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list finalized matches league_id=%s: %w", leagueID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	disciplines, err := r.disciplinesByMatch(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]match.Match, 0, len(rows))
	for _, row := range rows {
		out = append(out, assembleMatch(row, disciplines[row.ID]))
	}

	return out, nil
}

func (r *MatchRepository) RecordGame(ctx context.Context, matchID string, g match.Game, state match.DisciplineState, expectedVersion int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record game tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	model := gameTableModel{
		ID:             g.ID,
		MatchID:        g.MatchID,
		Discipline:     string(g.Discipline),
		SequenceNumber: g.SequenceNumber,
		WinnerID:       g.WinnerID,
		IsBreakAndRun:  g.IsBreakAndRun,
		Innings:        optionalInt(g.Innings),
	}
	query, args, err := qb.InsertModel("games", model, "")
	if err != nil {
		return fmt.Errorf("build insert game query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		// A duplicate sequence number means another writer committed the
		// same rack first; surface it as the version conflict it is.
		if isUniqueViolation(err) {
			return match.ErrVersionConflict
		}
		return fmt.Errorf("insert game match_id=%s discipline=%s seq=%d: %w", g.MatchID, g.Discipline, g.SequenceNumber, err)
	}

	if err := updateDisciplineTx(ctx, tx, matchID, g.Discipline, state, expectedVersion); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record game tx: %w", err)
	}

	return nil
}

func (r *MatchRepository) UpdateDisciplineState(ctx context.Context, matchID string, d match.Discipline, state match.DisciplineState, expectedVersion int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update discipline tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := updateDisciplineTx(ctx, tx, matchID, d, state, expectedVersion); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update discipline tx: %w", err)
	}

	return nil
}

func (r *MatchRepository) ListGames(ctx context.Context, matchID string, d match.Discipline) ([]match.Game, error) {
	query, args, err := qb.Select("*").From("games").
		Where(
			qb.Eq("match_id", matchID),
			qb.Eq("discipline", string(d)),
		).
		OrderBy("sequence_number").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list games query: %w", err)
	}

	var rows []gameTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list games match_id=%s discipline=%s: %w", matchID, d, err)
	}

	out := make([]match.Game, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toGame())
	}

	return out, nil
}

func updateDisciplineTx(ctx context.Context, tx *sqlx.Tx, matchID string, d match.Discipline, state match.DisciplineState, expectedVersion int64) error {
	query, args, err := qb.Update("match_disciplines").
		Set("status", string(state.Status)).
		Set("points_p1", state.PointsP1).
		Set("points_p2", state.PointsP2).
		Set("winner_id", state.WinnerID).
		Set("dispute_reason", state.DisputeReason).
		SetExpr("version", "version + 1").
		Where(
			qb.Eq("match_id", matchID),
			qb.Eq("discipline", string(d)),
			qb.Eq("version", expectedVersion),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update match discipline query: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update match discipline match_id=%s discipline=%s: %w", matchID, d, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update match discipline rows affected: %w", err)
	}
	if affected == 0 {
		return match.ErrVersionConflict
	}

	return nil
}

func (r *MatchRepository) disciplinesByMatch(ctx context.Context, matchIDs []string) (map[string]map[match.Discipline]match.DisciplineState, error) {
	ids := make([]any, 0, len(matchIDs))
	for _, id := range matchIDs {
		ids = append(ids, id)
	}

	query, args, err := qb.Select("*").From("match_disciplines").
		Where(qb.In("match_id", ids)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list match disciplines query: %w", err)
	}

	var rows []matchDisciplineTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list match disciplines: %w", err)
	}

	out := make(map[string]map[match.Discipline]match.DisciplineState, len(matchIDs))
	for _, row := range rows {
		states, ok := out[row.MatchID]
		if !ok {
			states = make(map[match.Discipline]match.DisciplineState)
			out[row.MatchID] = states
		}
		states[match.Discipline(row.Discipline)] = row.toState()
	}

	return out, nil
}

func assembleMatch(row matchTableModel, states map[match.Discipline]match.DisciplineState) match.Match {
	if states == nil {
		states = make(map[match.Discipline]match.DisciplineState)
	}
	return match.Match{
		ID:          row.ID,
		LeagueID:    row.LeagueID,
		Player1ID:   row.Player1ID,
		Player2ID:   row.Player2ID,
		ScheduledAt: row.ScheduledAt,
		Bounty:      nullInt64ToPtr(row.Bounty),
		Disciplines: states,
	}
}

func disciplineModel(matchID string, d match.Discipline, state match.DisciplineState) matchDisciplineTableModel {
	return matchDisciplineTableModel{
		MatchID:       matchID,
		Discipline:    string(d),
		Status:        string(state.Status),
		PointsP1:      state.PointsP1,
		PointsP2:      state.PointsP2,
		RaceTargetP1:  state.RaceTargetP1,
		RaceTargetP2:  state.RaceTargetP2,
		WinnerID:      state.WinnerID,
		DisputeReason: state.DisputeReason,
		Version:       state.Version,
	}
}
