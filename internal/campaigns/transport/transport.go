// Package transport defines the request and response DTOs for the
// campaigns HTTP API.
package transport

import (
	"time"

	"outreach_backend/internal/campaigns/repository"

	"github.com/google/uuid"
)

// CampaignResponse is the API representation of a campaign.
type CampaignResponse struct {
	ID             uuid.UUID                 `json:"id"`
	Name           string                    `json:"name"`
	Status         string                    `json:"status"`
	Config         repository.CampaignConfig `json:"config"`
	ExecutionState map[string]any            `json:"executionState,omitempty"`
	LastRunDate    *time.Time                `json:"lastRunDate,omitempty"`
	CreatedAt      time.Time                 `json:"createdAt"`
	UpdatedAt      time.Time                 `json:"updatedAt"`
}

// CreateCampaignRequest creates a campaign, optionally with its workflow.
type CreateCampaignRequest struct {
	Name   string                    `json:"name" binding:"required,min=1,max=200"`
	Config repository.CampaignConfig `json:"config"`
	Steps  []StepRequest             `json:"steps"`
}

// UpdateCampaignRequest updates name and config.
type UpdateCampaignRequest struct {
	Name   string                    `json:"name" binding:"required,min=1,max=200"`
	Config repository.CampaignConfig `json:"config"`
}

// StepRequest is one workflow step in a create/replace call.
type StepRequest struct {
	Order  int            `json:"order" binding:"min=0"`
	Type   string         `json:"type" binding:"required"`
	Title  string         `json:"title"`
	Config map[string]any `json:"config"`
}

// StepResponse is the API representation of a step.
type StepResponse struct {
	ID     uuid.UUID      `json:"id"`
	Order  int            `json:"order"`
	Type   string         `json:"type"`
	Title  string         `json:"title"`
	Config map[string]any `json:"config"`
}

// ReplaceStepsRequest swaps the campaign's workflow.
type ReplaceStepsRequest struct {
	Steps []StepRequest `json:"steps" binding:"required"`
}

// LeadResponse is the API representation of a campaign lead.
type LeadResponse struct {
	ID                  uuid.UUID  `json:"id"`
	ExternalPersonID    string     `json:"externalPersonId"`
	FirstName           string     `json:"firstName"`
	LastName            string     `json:"lastName"`
	Title               string     `json:"title"`
	CompanyName         string     `json:"companyName"`
	Email               *string    `json:"email,omitempty"`
	LinkedInURL         *string    `json:"linkedinUrl,omitempty"`
	Status              string     `json:"status"`
	CurrentStepOrder    int        `json:"currentStepOrder"`
	EnrichedEmail       *string    `json:"enrichedEmail,omitempty"`
	EnrichedLinkedInURL *string    `json:"enrichedLinkedinUrl,omitempty"`
	EnrichedAt          *time.Time `json:"enrichedAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
}

// ActivityResponse is one activity feed entry.
type ActivityResponse struct {
	ID             uuid.UUID      `json:"id"`
	CampaignLeadID uuid.UUID      `json:"campaignLeadId"`
	StepID         uuid.UUID      `json:"stepId"`
	StepType       string         `json:"stepType"`
	ActionType     string         `json:"actionType"`
	Channel        string         `json:"channel"`
	Status         string         `json:"status"`
	MessageContent *string        `json:"messageContent,omitempty"`
	ErrorMessage   *string        `json:"errorMessage,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// StatsResponse aggregates campaign counters.
type StatsResponse struct {
	TotalLeads     int `json:"totalLeads"`
	ActiveLeads    int `json:"activeLeads"`
	CompletedLeads int `json:"completedLeads"`
	StoppedLeads   int `json:"stoppedLeads"`
	ErrorLeads     int `json:"errorLeads"`
}

// ExecutionLogResponse is one run history entry.
type ExecutionLogResponse struct {
	ID        uuid.UUID `json:"id"`
	RunDate   time.Time `json:"runDate"`
	Status    string    `json:"status"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Pagination carries list metadata.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// CampaignListResponse is the paged campaign list.
type CampaignListResponse struct {
	Campaigns  []CampaignResponse `json:"campaigns"`
	Pagination Pagination         `json:"pagination"`
}

// LeadListResponse is the paged lead list.
type LeadListResponse struct {
	Leads      []LeadResponse `json:"leads"`
	Pagination Pagination     `json:"pagination"`
}
