package invitations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides database operations for invitation tracks.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new invitation track repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const trackColumns = `id, tenant_id, campaign_id, campaign_lead_id, account_id,
	external_invitation_id, provider_id, public_id, last_seen_status, sent_at,
	created_at, updated_at`

// Upsert records a dispatched invitation. A lead has at most one track; a
// re-dispatch after fallback replaces the account and timestamps but keeps
// the row.
func (r *Repository) Upsert(ctx context.Context, t *Track) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	if t.SentAt.IsZero() {
		t.SentAt = now
	}
	if t.LastSeenStatus == "" {
		t.LastSeenStatus = StatusPending
	}
	t.CreatedAt = now
	t.UpdatedAt = now

	query := `
		INSERT INTO invitation_tracks (
			id, tenant_id, campaign_id, campaign_lead_id, account_id,
			external_invitation_id, provider_id, public_id, last_seen_status, sent_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (campaign_lead_id) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			external_invitation_id = EXCLUDED.external_invitation_id,
			provider_id = EXCLUDED.provider_id,
			public_id = EXCLUDED.public_id,
			last_seen_status = EXCLUDED.last_seen_status,
			sent_at = EXCLUDED.sent_at,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.TenantID, t.CampaignID, t.CampaignLeadID, t.AccountID,
		t.ExternalInvitationID, t.ProviderID, t.PublicID, t.LastSeenStatus, t.SentAt,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert invitation track: %w", err)
	}
	return nil
}

// UpdateStatus sets the last observed provider-side status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE invitation_tracks SET last_seen_status = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id, status); err != nil {
		return fmt.Errorf("failed to update invitation track: %w", err)
	}
	return nil
}

// ListPendingByTenant returns tracks still awaiting a provider-side outcome.
func (r *Repository) ListPendingByTenant(ctx context.Context, tenantID uuid.UUID) ([]Track, error) {
	query := fmt.Sprintf(`SELECT %s FROM invitation_tracks
		WHERE tenant_id = $1 AND last_seen_status = $2
		ORDER BY sent_at ASC`, trackColumns)

	rows, err := r.pool.Query(ctx, query, tenantID, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending invitation tracks: %w", err)
	}
	defer rows.Close()

	return scanTracks(rows)
}

// Accepted reports whether the lead's connection invitation has been
// observed as accepted.
func (r *Repository) Accepted(ctx context.Context, leadID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (
		SELECT 1 FROM invitation_tracks
		WHERE campaign_lead_id = $1 AND last_seen_status = $2)`

	if err := r.pool.QueryRow(ctx, query, leadID, StatusAccepted).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check invitation acceptance: %w", err)
	}
	return exists, nil
}

func scanTracks(rows pgx.Rows) ([]Track, error) {
	var tracks []Track
	for rows.Next() {
		var t Track
		if err := rows.Scan(
			&t.ID, &t.TenantID, &t.CampaignID, &t.CampaignLeadID, &t.AccountID,
			&t.ExternalInvitationID, &t.ProviderID, &t.PublicID, &t.LastSeenStatus, &t.SentAt,
			&t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invitation track: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}
