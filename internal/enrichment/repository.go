// Package enrichment resolves missing lead contact details, preferring
// previously enriched rows (across all tenants) over paid provider calls.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outreach_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LeadView is the slice of a campaign lead the enrichment service works on.
type LeadView struct {
	ID                  uuid.UUID  `db:"id"`
	CampaignID          uuid.UUID  `db:"campaign_id"`
	TenantID            uuid.UUID  `db:"tenant_id"`
	ExternalPersonID    string     `db:"external_person_id"`
	FirstName           string     `db:"first_name"`
	LastName            string     `db:"last_name"`
	CompanyName         string     `db:"company_name"`
	Email               *string    `db:"email"`
	LinkedInURL         *string    `db:"linkedin_url"`
	EnrichedEmail       *string    `db:"enriched_email"`
	EnrichedLinkedInURL *string    `db:"enriched_linkedin_url"`
	EnrichedAt          *time.Time `db:"enriched_at"`
}

// CacheHit is an earlier enrichment of the same person, possibly from
// another tenant's campaign.
type CacheHit struct {
	Email       *string
	LinkedInURL *string
	FirstName   string
	LastName    string
	EnrichedAt  time.Time
}

// Repository reads and writes enrichment state on campaign lead rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates the enrichment repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadViewColumns = `id, campaign_id, tenant_id, external_person_id, first_name, last_name,
	company_name, email, linkedin_url, enriched_email, enriched_linkedin_url, enriched_at`

// GetLead loads the enrichment view of one lead.
func (r *Repository) GetLead(ctx context.Context, leadID uuid.UUID) (*LeadView, error) {
	var v LeadView
	query := fmt.Sprintf(`SELECT %s FROM campaign_leads WHERE id = $1`, leadViewColumns)

	err := r.pool.QueryRow(ctx, query, leadID).Scan(
		&v.ID, &v.CampaignID, &v.TenantID, &v.ExternalPersonID, &v.FirstName, &v.LastName,
		&v.CompanyName, &v.Email, &v.LinkedInURL, &v.EnrichedEmail, &v.EnrichedLinkedInURL, &v.EnrichedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("lead not found")
		}
		return nil, fmt.Errorf("failed to get lead for enrichment: %w", err)
	}
	return &v, nil
}

// FindCachedByPerson returns the newest enriched row for the same external
// person id, across all tenants, excluding the lead being enriched.
func (r *Repository) FindCachedByPerson(ctx context.Context, externalPersonID string, excludeLeadID uuid.UUID) (*CacheHit, error) {
	query := `SELECT enriched_email, enriched_linkedin_url, first_name, last_name, enriched_at
		FROM campaign_leads
		WHERE external_person_id = $1 AND id != $2 AND enriched_at IS NOT NULL
		ORDER BY enriched_at DESC LIMIT 1`

	return r.queryHit(ctx, query, externalPersonID, excludeLeadID)
}

// FindCachedByIdentity matches on the (email, name, company) tuple when no
// person-id match exists.
func (r *Repository) FindCachedByIdentity(ctx context.Context, email *string, firstName, lastName, company string, excludeLeadID uuid.UUID) (*CacheHit, error) {
	if email == nil || *email == "" {
		return nil, nil
	}

	query := `SELECT enriched_email, enriched_linkedin_url, first_name, last_name, enriched_at
		FROM campaign_leads
		WHERE email = $1 AND first_name = $2 AND last_name = $3 AND company_name = $4
		AND id != $5 AND enriched_at IS NOT NULL
		ORDER BY enriched_at DESC LIMIT 1`

	return r.queryHit(ctx, query, *email, firstName, lastName, company, excludeLeadID)
}

// SaveEnrichment writes the resolved fields onto the lead row. A row never
// carries enriched_at without at least one resolved field; callers enforce
// that before persisting. creditsUsed accumulates per (lead, campaign).
func (r *Repository) SaveEnrichment(ctx context.Context, leadID uuid.UUID, email, linkedinURL *string, firstName, lastName string, creditsUsed int) error {
	query := `
		UPDATE campaign_leads SET
			enriched_email = COALESCE($2, enriched_email),
			enriched_linkedin_url = COALESCE($3, enriched_linkedin_url),
			first_name = CASE WHEN $4 != '' THEN $4 ELSE first_name END,
			last_name = CASE WHEN $5 != '' THEN $5 ELSE last_name END,
			enrichment_credits = enrichment_credits + $6,
			enriched_at = NOW(),
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, leadID, email, linkedinURL, firstName, lastName, creditsUsed)
	if err != nil {
		return fmt.Errorf("failed to save enrichment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("lead not found")
	}
	return nil
}

func (r *Repository) queryHit(ctx context.Context, query string, args ...any) (*CacheHit, error) {
	var hit CacheHit
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&hit.Email, &hit.LinkedInURL, &hit.FirstName, &hit.LastName, &hit.EnrichedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query enrichment cache: %w", err)
	}
	return &hit, nil
}
