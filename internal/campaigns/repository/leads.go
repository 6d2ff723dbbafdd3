package repository

import (
	"context"
	"fmt"
	"time"

	"outreach_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LeadRepository provides database operations for campaign leads.
type LeadRepository struct {
	pool *pgxpool.Pool
}

// NewLeadRepository creates a new lead repository.
func NewLeadRepository(pool *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{pool: pool}
}

const leadColumns = `id, campaign_id, tenant_id, external_person_id, first_name, last_name,
	title, company_name, industry, email, phone, linkedin_url, instagram_username,
	status, current_step_order, enriched_email, enriched_linkedin_url, enriched_at,
	enrichment_credits, snapshot, created_at, updated_at`

// Insert adds a lead to the campaign. Returns false without error when the
// person is already in this campaign (the per-campaign uniqueness rule).
func (r *LeadRepository) Insert(ctx context.Context, l *Lead) (bool, error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	if l.Status == "" {
		l.Status = LeadActive
	}
	if l.Snapshot == nil {
		l.Snapshot = map[string]any{}
	}

	query := `
		INSERT INTO campaign_leads (
			id, campaign_id, tenant_id, external_person_id, first_name, last_name,
			title, company_name, industry, email, phone, linkedin_url, instagram_username,
			status, current_step_order, enriched_email, enriched_linkedin_url, enriched_at,
			enrichment_credits, snapshot, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22
		)
		ON CONFLICT (campaign_id, external_person_id) DO NOTHING`

	result, err := r.pool.Exec(ctx, query,
		l.ID, l.CampaignID, l.TenantID, l.ExternalPersonID, l.FirstName, l.LastName,
		l.Title, l.CompanyName, l.Industry, l.Email, l.Phone, l.LinkedInURL, l.InstagramUsername,
		l.Status, l.CurrentStepOrder, l.EnrichedEmail, l.EnrichedLinkedInURL, l.EnrichedAt,
		l.EnrichmentCredits, l.Snapshot, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert lead: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// GetByID retrieves one lead.
func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaign_leads WHERE id = $1`, leadColumns)

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	defer rows.Close()

	leads, err := scanLeads(rows)
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return nil, apperr.NotFound("lead not found")
	}
	return &leads[0], nil
}

// ListByCampaign returns the campaign's leads, paged, newest first.
func (r *LeadRepository) ListByCampaign(ctx context.Context, campaignID, tenantID uuid.UUID, limit, offset int) ([]Lead, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM campaign_leads WHERE campaign_id = $1 AND tenant_id = $2`
	if err := r.pool.QueryRow(ctx, countQuery, campaignID, tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count leads: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM campaign_leads
		WHERE campaign_id = $1 AND tenant_id = $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`, leadColumns)

	rows, err := r.pool.Query(ctx, query, campaignID, tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads, err := scanLeads(rows)
	if err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

// ListActive returns the campaign's active leads in creation order. The
// daily run iterates exactly this set.
func (r *LeadRepository) ListActive(ctx context.Context, campaignID uuid.UUID) ([]Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaign_leads
		WHERE campaign_id = $1 AND status = $2
		ORDER BY created_at ASC`, leadColumns)

	rows, err := r.pool.Query(ctx, query, campaignID, LeadActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active leads: %w", err)
	}
	defer rows.Close()

	return scanLeads(rows)
}

// UpdateStatus transitions the lead's lifecycle status. Terminal statuses
// (completed, stopped) are absorbing: a transition away from them is refused.
func (r *LeadRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE campaign_leads SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'stopped')`

	result, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict("lead is in a terminal status")
	}
	return nil
}

// SetCurrentStepOrder records the cursor position for display purposes.
// The authoritative cursor is always derived from the activity ledger.
func (r *LeadRepository) SetCurrentStepOrder(ctx context.Context, id uuid.UUID, order int) error {
	query := `UPDATE campaign_leads SET current_step_order = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id, order); err != nil {
		return fmt.Errorf("failed to set lead cursor: %w", err)
	}
	return nil
}

// HarvestProfile persists contact details gathered during a profile visit
// into both the columns and the snapshot document.
func (r *LeadRepository) HarvestProfile(ctx context.Context, id uuid.UUID, phone, email, headline, summary string) error {
	query := `
		UPDATE campaign_leads SET
			phone = COALESCE(NULLIF($2, ''), phone),
			email = COALESCE(NULLIF($3, ''), email),
			snapshot = snapshot || jsonb_build_object(
				'headline', $4::text,
				'profile_summary', $5::text),
			updated_at = NOW()
		WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id, phone, email, headline, summary); err != nil {
		return fmt.Errorf("failed to harvest profile: %w", err)
	}
	return nil
}

// StatusCounts aggregates lead counts per status for campaign stats.
func (r *LeadRepository) StatusCounts(ctx context.Context, campaignID uuid.UUID) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM campaign_leads WHERE campaign_id = $1 GROUP BY status`

	rows, err := r.pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to count lead statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan lead counts: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func scanLeads(rows pgx.Rows) ([]Lead, error) {
	var leads []Lead
	for rows.Next() {
		var l Lead
		if err := rows.Scan(
			&l.ID, &l.CampaignID, &l.TenantID, &l.ExternalPersonID, &l.FirstName, &l.LastName,
			&l.Title, &l.CompanyName, &l.Industry, &l.Email, &l.Phone, &l.LinkedInURL, &l.InstagramUsername,
			&l.Status, &l.CurrentStepOrder, &l.EnrichedEmail, &l.EnrichedLinkedInURL, &l.EnrichedAt,
			&l.EnrichmentCredits, &l.Snapshot, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}
