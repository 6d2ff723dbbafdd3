// Package invitations maintains the reconciled view of LinkedIn connection
// invitations: one track per lead, written when an invite is dispatched and
// updated by the polling worker as the provider-side outcome becomes known.
package invitations

import (
	"time"

	"github.com/google/uuid"
)

// Invitation statuses as observed at the provider.
const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusDeclined  = "declined"
	StatusWithdrawn = "withdrawn"
	StatusUnknown   = "unknown"
)

// Track is the local record of one sent connection invitation.
type Track struct {
	ID                   uuid.UUID  `db:"id"`
	TenantID             uuid.UUID  `db:"tenant_id"`
	CampaignID           uuid.UUID  `db:"campaign_id"`
	CampaignLeadID       uuid.UUID  `db:"campaign_lead_id"`
	AccountID            uuid.UUID  `db:"account_id"`
	ExternalInvitationID *string    `db:"external_invitation_id"`
	ProviderID           string     `db:"provider_id"`
	PublicID             string     `db:"public_id"`
	LastSeenStatus       string     `db:"last_seen_status"`
	SentAt               time.Time  `db:"sent_at"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
}
