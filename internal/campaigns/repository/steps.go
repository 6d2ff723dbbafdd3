package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StepRepository provides database operations for workflow steps.
type StepRepository struct {
	pool *pgxpool.Pool
}

// NewStepRepository creates a new step repository.
func NewStepRepository(pool *pgxpool.Pool) *StepRepository {
	return &StepRepository{pool: pool}
}

const stepColumns = `id, campaign_id, step_order, step_type, title, config, created_at`

// ListByCampaign returns the campaign's steps in workflow order.
func (r *StepRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]Step, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaign_steps
		WHERE campaign_id = $1 ORDER BY step_order ASC`, stepColumns)

	rows, err := r.pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	return scanSteps(rows)
}

// Replace swaps the campaign's workflow atomically: the old steps go away
// and the new ordered set takes their place in one transaction.
func (r *StepRepository) Replace(ctx context.Context, campaignID uuid.UUID, steps []Step) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin step replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM campaign_steps WHERE campaign_id = $1`, campaignID); err != nil {
		return fmt.Errorf("failed to clear steps: %w", err)
	}

	now := time.Now().UTC()
	for i := range steps {
		step := &steps[i]
		if step.ID == uuid.Nil {
			step.ID = uuid.New()
		}
		step.CampaignID = campaignID
		step.CreatedAt = now
		if step.Config == nil {
			step.Config = map[string]any{}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO campaign_steps (id, campaign_id, step_order, step_type, title, config, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			step.ID, step.CampaignID, step.Order, step.Type, step.Title, step.Config, step.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert step %d: %w", step.Order, err)
		}
	}

	return tx.Commit(ctx)
}

// HasStepType reports whether the campaign contains a step of the type.
func (r *StepRepository) HasStepType(ctx context.Context, campaignID uuid.UUID, stepType string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (
		SELECT 1 FROM campaign_steps WHERE campaign_id = $1 AND step_type = $2)`

	if err := r.pool.QueryRow(ctx, query, campaignID, stepType).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check step type: %w", err)
	}
	return exists, nil
}

func scanSteps(rows pgx.Rows) ([]Step, error) {
	var steps []Step
	for rows.Next() {
		var s Step
		if err := rows.Scan(&s.ID, &s.CampaignID, &s.Order, &s.Type, &s.Title, &s.Config, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}
