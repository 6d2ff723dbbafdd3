// Package repository provides database models and operations for campaigns,
// their workflow steps, leads, and execution log.
package repository

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Campaign statuses. "active" is accepted as a legacy synonym of "running"
// on reads; new writes always use "running".
const (
	StatusDraft     = "draft"
	StatusRunning   = "running"
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusStopped   = "stopped"
	StatusCompleted = "completed"
)

// IsExecutable reports whether a campaign in this status is eligible for
// daily execution.
func IsExecutable(status string) bool {
	return status == StatusRunning || status == StatusActive
}

// Step types.
const (
	StepLeadGeneration  = "lead_generation"
	StepLinkedInVisit   = "linkedin_visit"
	StepLinkedInConnect = "linkedin_connect"
	StepLinkedInMessage = "linkedin_message"
	StepLinkedInFollow  = "linkedin_follow"
	StepEmailSend       = "email_send"
	StepEmailFollowup   = "email_followup"
	StepWhatsAppSend    = "whatsapp_send"
	StepInstagramDM     = "instagram_dm"
	StepVoiceAgentCall  = "voice_agent_call"
	StepDelay           = "delay"
	StepCondition       = "condition"
	StepStart           = "start"
	StepEnd             = "end"
)

// IsSynthetic reports whether the step type is a structural no-op.
func IsSynthetic(stepType string) bool {
	return stepType == StepStart || stepType == StepEnd
}

// IsLinkedIn reports whether the step dispatches through a LinkedIn account.
func IsLinkedIn(stepType string) bool {
	return strings.HasPrefix(stepType, "linkedin_")
}

// Lead statuses. completed and stopped are absorbing.
const (
	LeadActive    = "active"
	LeadCompleted = "completed"
	LeadStopped   = "stopped"
	LeadError     = "error"
)

// CampaignConfig is the structured config bag on a campaign. Dates are
// stored as YYYY-MM-DD strings in the campaign's timezone.
type CampaignConfig struct {
	LeadsPerDay       *int   `json:"leads_per_day,omitempty"`
	LeadGenOffset     int    `json:"lead_gen_offset,omitempty"`
	LastLeadGenDate   string `json:"last_lead_gen_date,omitempty"`
	ConnectionMessage string `json:"connection_message,omitempty"`
	StartDate         string `json:"start_date,omitempty"`
	EndDate           string `json:"end_date,omitempty"`
	Timezone          string `json:"timezone,omitempty"`
}

// Campaign is the campaign database model.
type Campaign struct {
	ID              uuid.UUID      `db:"id"`
	TenantID        uuid.UUID      `db:"tenant_id"`
	Name            string         `db:"name"`
	Status          string         `db:"status"`
	Config          CampaignConfig `db:"config"`
	ExecutionState  map[string]any `db:"execution_state"`
	LastRunDate     *time.Time     `db:"last_run_date"`
	CreatedByUserID uuid.UUID      `db:"created_by_user_id"`
	IsDeleted       bool           `db:"is_deleted"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// Location resolves the campaign's timezone: campaign config first, then
// the provided default, then UTC.
func (c *Campaign) Location(fallback string) *time.Location {
	for _, name := range []string{c.Config.Timezone, fallback} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

// EndDate parses the configured end date in the campaign's timezone.
// Returns nil when no end date is set or it does not parse.
func (c *Campaign) EndDate(loc *time.Location) *time.Time {
	if c.Config.EndDate == "" {
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", c.Config.EndDate, loc)
	if err != nil {
		return nil
	}
	return &t
}

// Step is one workflow step of a campaign.
type Step struct {
	ID         uuid.UUID      `db:"id"`
	CampaignID uuid.UUID      `db:"campaign_id"`
	Order      int            `db:"step_order"`
	Type       string         `db:"step_type"`
	Title      string         `db:"title"`
	Config     map[string]any `db:"config"`
	CreatedAt  time.Time      `db:"created_at"`
}

// Lead is the campaign lead database model. Contact fields harvested from
// providers live both as columns (for cross-tenant enrichment queries) and
// in the snapshot document.
type Lead struct {
	ID                  uuid.UUID      `db:"id"`
	CampaignID          uuid.UUID      `db:"campaign_id"`
	TenantID            uuid.UUID      `db:"tenant_id"`
	ExternalPersonID    string         `db:"external_person_id"`
	FirstName           string         `db:"first_name"`
	LastName            string         `db:"last_name"`
	Title               string         `db:"title"`
	CompanyName         string         `db:"company_name"`
	Industry            string         `db:"industry"`
	Email               *string        `db:"email"`
	Phone               *string        `db:"phone"`
	LinkedInURL         *string        `db:"linkedin_url"`
	InstagramUsername   *string        `db:"instagram_username"`
	Status              string         `db:"status"`
	CurrentStepOrder    int            `db:"current_step_order"`
	EnrichedEmail       *string        `db:"enriched_email"`
	EnrichedLinkedInURL *string        `db:"enriched_linkedin_url"`
	EnrichedAt          *time.Time     `db:"enriched_at"`
	EnrichmentCredits   int            `db:"enrichment_credits"`
	Snapshot            map[string]any `db:"snapshot"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

// BestLinkedInURL prefers the enriched URL over the sourced one.
func (l *Lead) BestLinkedInURL() string {
	if l.EnrichedLinkedInURL != nil && *l.EnrichedLinkedInURL != "" {
		return *l.EnrichedLinkedInURL
	}
	if l.LinkedInURL != nil && *l.LinkedInURL != "" {
		return *l.LinkedInURL
	}
	return ""
}

// BestEmail prefers the enriched address over the sourced one.
func (l *Lead) BestEmail() string {
	if l.EnrichedEmail != nil && *l.EnrichedEmail != "" {
		return *l.EnrichedEmail
	}
	if l.Email != nil && *l.Email != "" {
		return *l.Email
	}
	return ""
}

// ExecutionLogEntry records one scheduler run outcome for a campaign.
type ExecutionLogEntry struct {
	ID         uuid.UUID `db:"id"`
	CampaignID uuid.UUID `db:"campaign_id"`
	RunDate    time.Time `db:"run_date"`
	Status     string    `db:"status"`
	Error      *string   `db:"error"`
	CreatedAt  time.Time `db:"created_at"`
}

// Execution log statuses.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
	RunSkipped   = "skipped"
)
