package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"

	"github.com/rackside/pool-league/internal/domain/leaguestats"
	qb "github.com/rackside/pool-league/internal/platform/querybuilder"
)

const statsUpsertSuffix = `ON CONFLICT (league_id, player_id)
DO UPDATE SET
    matches_played = league_player_stats.matches_played + EXCLUDED.matches_played,
    matches_won = league_player_stats.matches_won + EXCLUDED.matches_won,
    racks_played = league_player_stats.racks_played + EXCLUDED.racks_played,
    racks_won = league_player_stats.racks_won + EXCLUDED.racks_won,
    shutouts = league_player_stats.shutouts + EXCLUDED.shutouts,
    break_and_run_count = league_player_stats.break_and_run_count + EXCLUDED.break_and_run_count,
    innings_total = league_player_stats.innings_total + EXCLUDED.innings_total,
    bounty_earned = league_player_stats.bounty_earned + EXCLUDED.bounty_earned,
    updated_at = EXCLUDED.updated_at`

type StatsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) GetByLeagueAndPlayer(ctx context.Context, leagueID, playerID string) (leaguestats.PlayerStats, bool, error) {
	query, args, err := qb.Select("*").From("league_player_stats").
		Where(
			qb.Eq("league_id", leagueID),
			qb.Eq("player_id", playerID),
		).
		ToSQL()
	if err != nil {
		return leaguestats.PlayerStats{}, false, fmt.Errorf("build get player stats query: %w", err)
	}

	var row playerStatsTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return leaguestats.PlayerStats{}, false, nil
		}
		return leaguestats.PlayerStats{}, false, fmt.Errorf("get player stats: %w", err)
	}

	return row.toStats(), true, nil
}

func (r *StatsRepository) ListByLeague(ctx context.Context, leagueID string) ([]leaguestats.PlayerStats, error) {
	query, args, err := qb.Select("*").From("league_player_stats").
		Where(qb.Eq("league_id", leagueID)).
		OrderBy("player_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list league stats query: %w", err)
	}

	var rows []playerStatsTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list league stats league_id=%s: %w", leagueID, err)
	}

	out := make([]leaguestats.PlayerStats, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toStats())
	}

	return out, nil
}

func (r *StatsRepository) Applied(ctx context.Context, key leaguestats.AppliedKey) (bool, error) {
	query, args, err := qb.Select("1").From("stats_applied_events").
		Where(
			qb.Eq("match_id", key.MatchID),
			qb.Eq("discipline", string(key.Discipline)),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build applied event query: %w", err)
	}

	var marker int
	if err := r.db.GetContext(ctx, &marker, query, args...); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("get applied event: %w", err)
	}

	return true, nil
}

func (r *StatsRepository) Apply(ctx context.Context, key leaguestats.AppliedKey, deltas []leaguestats.Delta) (bool, error) {
	payload, err := sonic.MarshalString(deltas)
	if err != nil {
		return false, fmt.Errorf("marshal applied event payload: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin apply stats tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	ledger := appliedEventInsertModel{
		MatchID:    key.MatchID,
		Discipline: string(key.Discipline),
		Payload:    payload,
		AppliedAt:  now,
	}
	query, args, err := qb.InsertModel("stats_applied_events", ledger, "ON CONFLICT (match_id, discipline) DO NOTHING")
	if err != nil {
		return false, fmt.Errorf("build insert applied event query: %w", err)
	}
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert applied event match_id=%s discipline=%s: %w", key.MatchID, key.Discipline, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert applied event rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	for _, d := range deltas {
		model := playerStatsTableModel{
			LeagueID:         d.LeagueID,
			PlayerID:         d.PlayerID,
			MatchesPlayed:    d.MatchesPlayed,
			MatchesWon:       d.MatchesWon,
			RacksPlayed:      d.RacksPlayed,
			RacksWon:         d.RacksWon,
			Shutouts:         d.Shutouts,
			BreakAndRunCount: d.BreakAndRunCount,
			InningsTotal:     d.InningsTotal,
			BountyEarned:     d.BountyEarned,
			UpdatedAt:        now,
		}
		query, args, err := qb.InsertModel("league_player_stats", model, statsUpsertSuffix)
		if err != nil {
			return false, fmt.Errorf("build upsert player stats query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return false, fmt.Errorf("upsert player stats league_id=%s player_id=%s: %w", d.LeagueID, d.PlayerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit apply stats tx: %w", err)
	}

	return true, nil
}
