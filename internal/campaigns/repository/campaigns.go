package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"outreach_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const campaignNotFoundMsg = "campaign not found"

// CampaignRepository provides database operations for campaigns.
type CampaignRepository struct {
	pool *pgxpool.Pool
}

// NewCampaignRepository creates a new campaign repository.
func NewCampaignRepository(pool *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{pool: pool}
}

const campaignColumns = `id, tenant_id, name, status, config, execution_state,
	last_run_date, created_by_user_id, is_deleted, created_at, updated_at`

// Create inserts a new campaign.
func (r *CampaignRepository) Create(ctx context.Context, c *Campaign) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = StatusDraft
	}
	if c.ExecutionState == nil {
		c.ExecutionState = map[string]any{}
	}

	configJSON, err := json.Marshal(c.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal campaign config: %w", err)
	}

	query := `
		INSERT INTO campaigns (
			id, tenant_id, name, status, config, execution_state,
			last_run_date, created_by_user_id, is_deleted, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.pool.Exec(ctx, query,
		c.ID, c.TenantID, c.Name, c.Status, configJSON, c.ExecutionState,
		c.LastRunDate, c.CreatedByUserID, c.IsDeleted, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

// GetByID retrieves a campaign, tenant-scoped, excluding soft-deleted rows.
func (r *CampaignRepository) GetByID(ctx context.Context, id, tenantID uuid.UUID) (*Campaign, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaigns
		WHERE id = $1 AND tenant_id = $2 AND is_deleted = false`, campaignColumns)

	return r.queryOne(ctx, r.pool, query, id, tenantID)
}

// GetAny retrieves a campaign without tenant scoping. Internal workers
// (scheduler, sourcer) load by id alone; HTTP paths always use GetByID.
func (r *CampaignRepository) GetAny(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaigns
		WHERE id = $1 AND is_deleted = false`, campaignColumns)

	return r.queryOne(ctx, r.pool, query, id)
}

// ListParams filter the campaign list.
type ListParams struct {
	Status *string
	Search string
	Page   int
	Limit  int
}

// List returns the tenant's campaigns plus a total count for pagination.
func (r *CampaignRepository) List(ctx context.Context, tenantID uuid.UUID, params ListParams) ([]Campaign, int, error) {
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 20
	}
	if params.Page <= 0 {
		params.Page = 1
	}

	baseQuery := ` FROM campaigns WHERE tenant_id = $1 AND is_deleted = false`
	args := []interface{}{tenantID}
	argIndex := 2

	addFilter(&baseQuery, &args, &argIndex, params.Status != nil, " AND status = $%d", derefString(params.Status))
	addFilter(&baseQuery, &args, &argIndex, params.Search != "", " AND name ILIKE $%d", "%"+params.Search+"%")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*)"+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	listQuery := "SELECT " + campaignColumns + baseQuery +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, params.Limit, (params.Page-1)*params.Limit)

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns, err := scanCampaigns(rows)
	if err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

// Update persists name and config changes.
func (r *CampaignRepository) Update(ctx context.Context, c *Campaign) error {
	configJSON, err := json.Marshal(c.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal campaign config: %w", err)
	}

	query := `UPDATE campaigns SET name = $3, config = $4, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND is_deleted = false`

	result, err := r.pool.Exec(ctx, query, c.ID, c.TenantID, c.Name, configJSON)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(campaignNotFoundMsg)
	}
	return nil
}

// UpdateStatus transitions the campaign's status.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id, tenantID uuid.UUID, status string) error {
	query := `UPDATE campaigns SET status = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND is_deleted = false`

	result, err := r.pool.Exec(ctx, query, id, tenantID, status)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(campaignNotFoundMsg)
	}
	return nil
}

// SoftDelete marks the campaign deleted. Running campaigns are stopped
// first to preserve the running ⟹ not-deleted invariant.
func (r *CampaignRepository) SoftDelete(ctx context.Context, id, tenantID uuid.UUID) error {
	query := `UPDATE campaigns
		SET is_deleted = true,
			status = CASE WHEN status IN ('running', 'active') THEN 'stopped' ELSE status END,
			updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND is_deleted = false`

	result, err := r.pool.Exec(ctx, query, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(campaignNotFoundMsg)
	}
	return nil
}

// LockForRun loads the campaign inside the caller's transaction with
// FOR UPDATE SKIP LOCKED. Returns nil (no error) when another worker holds
// the row or when the campaign does not exist.
func (r *CampaignRepository) LockForRun(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Campaign, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaigns
		WHERE id = $1 FOR UPDATE SKIP LOCKED`, campaignColumns)

	campaign, err := r.queryOne(ctx, tx, query, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return campaign, nil
}

// SetLastRunDate stamps the campaign's last run inside the run transaction.
func (r *CampaignRepository) SetLastRunDate(ctx context.Context, tx pgx.Tx, id uuid.UUID, runAt time.Time) error {
	query := `UPDATE campaigns SET last_run_date = $2, updated_at = NOW() WHERE id = $1`
	if _, err := tx.Exec(ctx, query, id, runAt); err != nil {
		return fmt.Errorf("failed to set last run date: %w", err)
	}
	return nil
}

// UpdateConfig persists the config bag (lead-gen bookkeeping included).
func (r *CampaignRepository) UpdateConfig(ctx context.Context, id uuid.UUID, config CampaignConfig) error {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal campaign config: %w", err)
	}

	query := `UPDATE campaigns SET config = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, configJSON)
	if err != nil {
		return fmt.Errorf("failed to update campaign config: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(campaignNotFoundMsg)
	}
	return nil
}

// SetExecutionState stores the run snapshot displayed in the campaign detail.
func (r *CampaignRepository) SetExecutionState(ctx context.Context, id uuid.UUID, state map[string]any) error {
	query := `UPDATE campaigns SET execution_state = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id, state); err != nil {
		return fmt.Errorf("failed to set execution state: %w", err)
	}
	return nil
}

// ListExecutableByTenant returns the tenant's campaigns eligible for daily
// execution (running, or legacy active).
func (r *CampaignRepository) ListExecutableByTenant(ctx context.Context, tenantID uuid.UUID) ([]Campaign, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaigns
		WHERE tenant_id = $1 AND status IN ('running', 'active') AND is_deleted = false
		ORDER BY created_at`, campaignColumns)

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executable campaigns: %w", err)
	}
	defer rows.Close()

	return scanCampaigns(rows)
}

// TenantsWithOpenCampaigns returns tenants having at least one campaign in
// running/active/paused status. The polling worker scopes its sweep to these.
func (r *CampaignRepository) TenantsWithOpenCampaigns(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT DISTINCT tenant_id FROM campaigns
		WHERE status IN ('running', 'active', 'paused') AND is_deleted = false`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants with campaigns: %w", err)
	}
	defer rows.Close()

	var tenants []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tenant id: %w", err)
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *CampaignRepository) queryOne(ctx context.Context, q queryer, query string, args ...any) (*Campaign, error) {
	var c Campaign
	var configJSON []byte

	err := q.QueryRow(ctx, query, args...).Scan(
		&c.ID, &c.TenantID, &c.Name, &c.Status, &configJSON, &c.ExecutionState,
		&c.LastRunDate, &c.CreatedByUserID, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(campaignNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &c.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal campaign config: %w", err)
		}
	}
	return &c, nil
}

func scanCampaigns(rows pgx.Rows) ([]Campaign, error) {
	var campaigns []Campaign
	for rows.Next() {
		var c Campaign
		var configJSON []byte
		if err := rows.Scan(
			&c.ID, &c.TenantID, &c.Name, &c.Status, &configJSON, &c.ExecutionState,
			&c.LastRunDate, &c.CreatedByUserID, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		if len(configJSON) > 0 {
			if err := json.Unmarshal(configJSON, &c.Config); err != nil {
				return nil, fmt.Errorf("failed to unmarshal campaign config: %w", err)
			}
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func addFilter(baseQuery *string, args *[]interface{}, argIndex *int, apply bool, clause string, value interface{}) {
	if !apply {
		return
	}
	*baseQuery += fmt.Sprintf(clause, *argIndex)
	*args = append(*args, value)
	*argIndex++
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
