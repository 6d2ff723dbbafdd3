// Package accounts manages the tenant's fleet of external messaging
// accounts: selection order, health probing, and 401 recovery.
package accounts

import (
	"time"

	"github.com/google/uuid"
)

// Providers.
const (
	ProviderLinkedIn = "linkedin"
)

// Internal account statuses.
const (
	StatusActive             = "active"
	StatusConnecting         = "connecting"
	StatusCredentialsExpired = "credentials_expired"
	StatusError              = "error"
	StatusStopped            = "stopped"
	StatusInactive           = "inactive"
)

// Account is one connected provider account.
type Account struct {
	ID                uuid.UUID      `db:"id"`
	TenantID          uuid.UUID      `db:"tenant_id"`
	Provider          string         `db:"provider"`
	ExternalAccountID string         `db:"external_account_id"`
	Status            string         `db:"status"`
	NeedsReconnect    bool           `db:"needs_reconnect"`
	DailyCap          int            `db:"daily_cap"`
	WeeklyCap         *int           `db:"weekly_cap"`
	Metadata          map[string]any `db:"metadata"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

// Healthy reports whether the account can be used for dispatch.
func (a *Account) Healthy() bool {
	return a.Status == StatusActive && !a.NeedsReconnect
}
