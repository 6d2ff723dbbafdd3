package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExecutionLogRepository records daily run outcomes per campaign.
type ExecutionLogRepository struct {
	pool *pgxpool.Pool
}

// NewExecutionLogRepository creates a new execution log repository.
func NewExecutionLogRepository(pool *pgxpool.Pool) *ExecutionLogRepository {
	return &ExecutionLogRepository{pool: pool}
}

// Record appends one run outcome.
func (r *ExecutionLogRepository) Record(ctx context.Context, entry *ExecutionLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO campaign_execution_log (id, campaign_id, run_date, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.CampaignID, entry.RunDate, entry.Status, entry.Error, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record execution log: %w", err)
	}
	return nil
}

// ListByCampaign returns the campaign's run history, newest first.
func (r *ExecutionLogRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit int) ([]ExecutionLogEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}

	query := `SELECT id, campaign_id, run_date, status, error, created_at
		FROM campaign_execution_log
		WHERE campaign_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution log: %w", err)
	}
	defer rows.Close()

	var entries []ExecutionLogEntry
	for rows.Next() {
		var e ExecutionLogEntry
		if err := rows.Scan(&e.ID, &e.CampaignID, &e.RunDate, &e.Status, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
