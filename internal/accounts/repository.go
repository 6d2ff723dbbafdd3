package accounts

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

// Repository provides database operations for provider accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new accounts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `id, tenant_id, provider, external_account_id, status,
	needs_reconnect, daily_cap, weekly_cap, metadata, created_at, updated_at`

const accountNotFoundMsg = "account not found"

// ListByTenant returns the tenant's accounts for a provider, most recently
// created first. The pool's pick order depends on this ordering.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, provider string) ([]Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM linkedin_accounts
		WHERE tenant_id = $1 AND provider = $2
		ORDER BY created_at DESC`, accountColumns)

	rows, err := r.pool.Query(ctx, query, tenantID, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// GetByID retrieves one account, tenant-scoped.
func (r *Repository) GetByID(ctx context.Context, id, tenantID uuid.UUID) (*Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM linkedin_accounts
		WHERE id = $1 AND tenant_id = $2`, accountColumns)

	return r.queryOne(ctx, query, id, tenantID)
}

// GetByExternalID retrieves an account by its gateway identifier. Used by
// the webhook receive path, which carries no tenant context.
func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (*Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM linkedin_accounts
		WHERE external_account_id = $1`, accountColumns)

	return r.queryOne(ctx, query, externalID)
}

// UpdateStatus sets the account's status and reconnect flag.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, needsReconnect bool) error {
	query := `UPDATE linkedin_accounts
		SET status = $2, needs_reconnect = $3, updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, status, needsReconnect)
	if err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(accountNotFoundMsg)
	}
	return nil
}

// Upsert inserts or refreshes an account keyed by its gateway identifier.
// The sync endpoint reconciles the local fleet against the gateway with this.
func (r *Repository) Upsert(ctx context.Context, a *Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Metadata == nil {
		a.Metadata = map[string]any{}
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO linkedin_accounts (
			id, tenant_id, provider, external_account_id, status,
			needs_reconnect, daily_cap, weekly_cap, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (tenant_id, provider, external_account_id) DO UPDATE SET
			status = EXCLUDED.status,
			needs_reconnect = EXCLUDED.needs_reconnect,
			metadata = linkedin_accounts.metadata || EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.TenantID, a.Provider, a.ExternalAccountID, a.Status,
		a.NeedsReconnect, a.DailyCap, a.WeeklyCap, a.Metadata, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

// SumConnectionCaps sums the daily and weekly caps over the tenant's
// active LinkedIn accounts. NULL weekly caps contribute zero.
func (r *Repository) SumConnectionCaps(ctx context.Context, tenantID uuid.UUID) (int, int, error) {
	var daily, weekly int
	query := `SELECT COALESCE(SUM(daily_cap), 0), COALESCE(SUM(weekly_cap), 0)
		FROM linkedin_accounts
		WHERE tenant_id = $1 AND provider = $2 AND status = $3`

	err := r.pool.QueryRow(ctx, query, tenantID, ProviderLinkedIn, StatusActive).Scan(&daily, &weekly)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum connection caps: %w", err)
	}
	return daily, weekly, nil
}

// TenantsWithActiveAccounts returns the tenants that have at least one
// active LinkedIn account. The polling worker iterates over this set.
func (r *Repository) TenantsWithActiveAccounts(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT DISTINCT tenant_id FROM linkedin_accounts
		WHERE provider = $1 AND status = $2
		ORDER BY tenant_id`

	rows, err := r.pool.Query(ctx, query, ProviderLinkedIn, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants with accounts: %w", err)
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

func (r *Repository) queryOne(ctx context.Context, query string, args ...any) (*Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&a.ID, &a.TenantID, &a.Provider, &a.ExternalAccountID, &a.Status,
		&a.NeedsReconnect, &a.DailyCap, &a.WeeklyCap, &a.Metadata, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(accountNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

func scanAccounts(rows pgx.Rows) ([]Account, error) {
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(
			&a.ID, &a.TenantID, &a.Provider, &a.ExternalAccountID, &a.Status,
			&a.NeedsReconnect, &a.DailyCap, &a.WeeklyCap, &a.Metadata, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
