// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"outreach_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Campaign Domain Events
// =============================================================================

// CampaignStatsUpdated is published whenever a campaign's aggregate counters
// change (activity recorded, lead status transition, run completed).
type CampaignStatsUpdated struct {
	BaseEvent
	CampaignID     uuid.UUID `json:"campaignId"`
	TenantID       uuid.UUID `json:"tenantId"`
	TotalLeads     int       `json:"totalLeads"`
	ActiveLeads    int       `json:"activeLeads"`
	CompletedLeads int       `json:"completedLeads"`
	FailedLeads    int       `json:"failedLeads"`
}

func (e CampaignStatsUpdated) EventName() string { return "campaigns.stats.updated" }

// CampaignsListUpdated is published when the set of campaigns visible to a
// tenant changes (create, status transition, delete).
type CampaignsListUpdated struct {
	BaseEvent
	TenantID   uuid.UUID `json:"tenantId"`
	CampaignID uuid.UUID `json:"campaignId"`
	Status     string    `json:"status"`
}

func (e CampaignsListUpdated) EventName() string { return "campaigns.list.updated" }

// CampaignCompleted is published when a campaign run reaches its end date
// and the campaign transitions to the completed status.
type CampaignCompleted struct {
	BaseEvent
	CampaignID uuid.UUID `json:"campaignId"`
	TenantID   uuid.UUID `json:"tenantId"`
}

func (e CampaignCompleted) EventName() string { return "campaigns.campaign.completed" }

// =============================================================================
// Provider Account Events
// =============================================================================

// ProviderAccountStatusChanged is published when a messaging account's
// connection status changes (webhook, poll, or 401 disconnect detection).
type ProviderAccountStatusChanged struct {
	BaseEvent
	TenantID    uuid.UUID `json:"tenantId"`
	AccountID   uuid.UUID `json:"accountId"`
	AccountType string    `json:"accountType"`
	Status      string    `json:"status"`
}

func (e ProviderAccountStatusChanged) EventName() string { return "accounts.status.changed" }

// =============================================================================
// Invitation Events
// =============================================================================

// InvitationAccepted is published when the polling worker observes that a
// previously delivered connection invitation is no longer pending.
type InvitationAccepted struct {
	BaseEvent
	TenantID   uuid.UUID `json:"tenantId"`
	CampaignID uuid.UUID `json:"campaignId"`
	LeadID     uuid.UUID `json:"leadId"`
}

func (e InvitationAccepted) EventName() string { return "invitations.invitation.accepted" }
