package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outreach_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides database operations for the activity ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new ledger repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const activityColumns = `id, tenant_id, campaign_id, campaign_lead_id, step_id, step_type,
	action_type, channel, status, message_content, error_message, metadata, created_at`

// Record appends one row to the ledger and returns its id. A second
// terminal-success row for the same (lead, step) violates the partial unique
// index and is reported as a conflict; the write is never silently dropped.
func (r *Repository) Record(ctx context.Context, a *Activity) (uuid.UUID, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Metadata == nil {
		a.Metadata = map[string]any{}
	}

	query := `
		INSERT INTO campaign_lead_activities (
			id, tenant_id, campaign_id, campaign_lead_id, step_id, step_type,
			action_type, channel, status, message_content, error_message, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.TenantID, a.CampaignID, a.CampaignLeadID, a.StepID, a.StepType,
		a.ActionType, a.Channel, a.Status, a.MessageContent, a.ErrorMessage, a.Metadata, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, apperr.Conflict("step already completed for this lead")
		}
		return uuid.Nil, fmt.Errorf("failed to record activity: %w", err)
	}

	return a.ID, nil
}

// UpdateStatus transitions an existing row (typically sent → delivered or
// sent → error) and merges the extra metadata into the stored document.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}

	query := `
		UPDATE campaign_lead_activities
		SET status = $2, error_message = $3, metadata = metadata || $4
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, status, errorMessage, metadata)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("step already completed for this lead")
		}
		return fmt.Errorf("failed to update activity status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("activity not found")
	}

	return nil
}

// LatestSuccess returns the newest terminal-success row for (lead, step),
// or nil when the pair has never succeeded.
func (r *Repository) LatestSuccess(ctx context.Context, leadID, stepID uuid.UUID) (*Activity, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaign_lead_activities
		WHERE campaign_lead_id = $1 AND step_id = $2 AND status = ANY($3)
		ORDER BY created_at DESC LIMIT 1`, activityColumns)

	return r.queryOne(ctx, query, leadID, stepID, TerminalSuccessStatuses)
}

// LatestSuccessForLead returns the lead's newest terminal-success row across
// all steps, or nil when the lead has no successes yet.
func (r *Repository) LatestSuccessForLead(ctx context.Context, leadID uuid.UUID) (*Activity, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaign_lead_activities
		WHERE campaign_lead_id = $1 AND status = ANY($2)
		ORDER BY created_at DESC LIMIT 1`, activityColumns)

	return r.queryOne(ctx, query, leadID, TerminalSuccessStatuses)
}

// HasTerminalSuccess reports whether (lead, step) already has a
// terminal-success row. Used by the workflow driver's skip rule.
func (r *Repository) HasTerminalSuccess(ctx context.Context, leadID, stepID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (
		SELECT 1 FROM campaign_lead_activities
		WHERE campaign_lead_id = $1 AND step_id = $2 AND status = ANY($3))`

	if err := r.pool.QueryRow(ctx, query, leadID, stepID, TerminalSuccessStatuses).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check terminal success: %w", err)
	}
	return exists, nil
}

// HasStatusForLead reports whether the lead has any row with the given
// status. Condition steps evaluate on this.
func (r *Repository) HasStatusForLead(ctx context.Context, leadID uuid.UUID, status string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (
		SELECT 1 FROM campaign_lead_activities
		WHERE campaign_lead_id = $1 AND status = $2)`

	if err := r.pool.QueryRow(ctx, query, leadID, status).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check lead status: %w", err)
	}
	return exists, nil
}

// CountByTenantAndStatus counts ledger rows for a tenant, step type, and
// status set inside [since, until). The quota gate's capacity queries.
func (r *Repository) CountByTenantAndStatus(ctx context.Context, tenantID uuid.UUID, stepType string, statuses []string, since, until time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM campaign_lead_activities
		WHERE tenant_id = $1 AND step_type = $2 AND status = ANY($3)
		AND created_at >= $4 AND created_at < $5`

	if err := r.pool.QueryRow(ctx, query, tenantID, stepType, statuses, since, until).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return count, nil
}

// CountForStep counts rows with the given status for one campaign step.
func (r *Repository) CountForStep(ctx context.Context, campaignID, stepID uuid.UUID, status string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM campaign_lead_activities
		WHERE campaign_id = $1 AND step_id = $2 AND status = $3`

	if err := r.pool.QueryRow(ctx, query, campaignID, stepID, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count step activities: %w", err)
	}
	return count, nil
}

// PromoteDelivered transitions the lead's delivered row for the given step
// type to a new status (connected on invitation acceptance, error on
// decline). Returns the promoted row id, or uuid.Nil when nothing matched.
func (r *Repository) PromoteDelivered(ctx context.Context, leadID uuid.UUID, stepType, newStatus string, errorMessage *string) (uuid.UUID, error) {
	var id uuid.UUID
	query := `
		UPDATE campaign_lead_activities
		SET status = $3, error_message = $4
		WHERE id = (
			SELECT id FROM campaign_lead_activities
			WHERE campaign_lead_id = $1 AND step_type = $2 AND status = 'delivered'
			ORDER BY created_at DESC LIMIT 1)
		RETURNING id`

	err := r.pool.QueryRow(ctx, query, leadID, stepType, newStatus, errorMessage).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, nil
		}
		return uuid.Nil, fmt.Errorf("failed to promote activity: %w", err)
	}
	return id, nil
}

// ListByCampaign returns the campaign's activity feed, newest first.
func (r *Repository) ListByCampaign(ctx context.Context, campaignID, tenantID uuid.UUID, limit, offset int) ([]Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM campaign_lead_activities
		WHERE campaign_id = $1 AND tenant_id = $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`, activityColumns)

	rows, err := r.pool.Query(ctx, query, campaignID, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	return scanActivities(rows)
}

// ListForLead returns all of one lead's activities, oldest first.
func (r *Repository) ListForLead(ctx context.Context, leadID uuid.UUID) ([]Activity, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaign_lead_activities
		WHERE campaign_lead_id = $1 ORDER BY created_at ASC`, activityColumns)

	rows, err := r.pool.Query(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lead activities: %w", err)
	}
	defer rows.Close()

	return scanActivities(rows)
}

func (r *Repository) queryOne(ctx context.Context, query string, args ...any) (*Activity, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	activities, err := scanActivities(rows)
	if err != nil {
		return nil, err
	}
	if len(activities) == 0 {
		return nil, nil
	}
	return &activities[0], nil
}

func scanActivities(rows pgx.Rows) ([]Activity, error) {
	var activities []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(
			&a.ID, &a.TenantID, &a.CampaignID, &a.CampaignLeadID, &a.StepID, &a.StepType,
			&a.ActionType, &a.Channel, &a.Status, &a.MessageContent, &a.ErrorMessage, &a.Metadata, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
