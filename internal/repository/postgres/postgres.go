package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sportai/fincast/internal/domain"
)

// Schema creates the result tables when they do not exist
const Schema = `
CREATE TABLE IF NOT EXISTS forecast_48h (
	run_id   UUID             NOT NULL,
	ts       TIMESTAMP        NOT NULL,
	zone_id  TEXT             NOT NULL,
	forecast DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, zone_id, ts)
);
CREATE TABLE IF NOT EXISTS forecast_metrics (
	run_id  UUID             NOT NULL,
	zone_id TEXT             NOT NULL,
	val_mae DOUBLE PRECISION,
	PRIMARY KEY (run_id, zone_id)
);
CREATE TABLE IF NOT EXISTS actions_log (
	run_id      UUID      NOT NULL,
	seq         INTEGER   NOT NULL,
	ts          TIMESTAMP NOT NULL,
	zone_id     TEXT      NOT NULL,
	action_type TEXT      NOT NULL,
	before      TEXT      NOT NULL,
	after       TEXT      NOT NULL,
	rationale   TEXT      NOT NULL,
	PRIMARY KEY (run_id, seq)
);`

// PostgresRepository implements domain.ResultRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the result tables
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: failed to create schema: %w", err)
	}
	return nil
}

// SaveForecast bulk-loads forecast rows for a run
func (r *PostgresRepository) SaveForecast(ctx context.Context, runID uuid.UUID, rows []domain.Forecast) error {
	src := make([][]any, 0, len(rows))
	for _, f := range rows {
		src = append(src, []any{runID, f.TS.UTC(), f.ZoneID, f.Forecast})
	}
	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"forecast_48h"},
		[]string{"run_id", "ts", "zone_id", "forecast"},
		pgx.CopyFromRows(src),
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save forecast: %w", err)
	}
	return nil
}

// SaveMetrics persists per-zone validation errors for a run
func (r *PostgresRepository) SaveMetrics(ctx context.Context, runID uuid.UUID, rows []domain.ForecastMetric) error {
	query := `
		INSERT INTO forecast_metrics (run_id, zone_id, val_mae)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id, zone_id) DO UPDATE SET val_mae = EXCLUDED.val_mae
	`

	batch := &pgx.Batch{}
	for _, m := range rows {
		batch.Queue(query, runID, m.ZoneID, m.ValMAE)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: failed to save metrics: %w", err)
	}
	return nil
}

// SaveActions bulk-loads suggested actions for a run, keeping their order
func (r *PostgresRepository) SaveActions(ctx context.Context, runID uuid.UUID, rows []domain.SuggestedAction) error {
	src := make([][]any, 0, len(rows))
	for i, a := range rows {
		src = append(src, []any{runID, i, a.TS.UTC(), a.ZoneID, string(a.ActionType), a.Before, a.After, a.Rationale})
	}
	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"actions_log"},
		[]string{"run_id", "seq", "ts", "zone_id", "action_type", "before", "after", "rationale"},
		pgx.CopyFromRows(src),
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save actions: %w", err)
	}
	return nil
}

// ActionsForRun reads back the actions saved for a run in their original order
func (r *PostgresRepository) ActionsForRun(ctx context.Context, runID uuid.UUID) ([]domain.SuggestedAction, error) {
	query := `
		SELECT ts, zone_id, action_type, before, after, rationale
		FROM actions_log
		WHERE run_id = $1
		ORDER BY seq
	`

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query actions: %w", err)
	}
	defer rows.Close()

	var results []domain.SuggestedAction
	for rows.Next() {
		var a domain.SuggestedAction
		var actionType string
		if err := rows.Scan(&a.TS, &a.ZoneID, &actionType, &a.Before, &a.After, &a.Rationale); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan action row: %w", err)
		}
		a.ActionType = domain.ActionType(actionType)
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read actions: %w", err)
	}
	return results, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
