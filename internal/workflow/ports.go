// Package workflow advances campaign leads through their workflow: the
// per-lead state machine, the step executor, and the LinkedIn connection
// dispatcher with account fallback.
package workflow

import (
	"context"

	"outreach_backend/internal/accounts"
	"outreach_backend/internal/activity"
	"outreach_backend/internal/campaigns/repository"
	"outreach_backend/internal/enrichment"
	"outreach_backend/internal/invitations"
	"outreach_backend/internal/provider/unipile"
	"outreach_backend/internal/provider/vapi"
	"outreach_backend/internal/quota"
	"outreach_backend/internal/summarizer"

	"github.com/google/uuid"
)

// Ledger is the slice of the activity repository the workflow needs.
type Ledger interface {
	Record(ctx context.Context, a *activity.Activity) (uuid.UUID, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string, metadata map[string]any) error
	LatestSuccessForLead(ctx context.Context, leadID uuid.UUID) (*activity.Activity, error)
	HasTerminalSuccess(ctx context.Context, leadID, stepID uuid.UUID) (bool, error)
	HasStatusForLead(ctx context.Context, leadID uuid.UUID, status string) (bool, error)
}

// LeadStore is the slice of the lead repository the workflow needs.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Lead, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	SetCurrentStepOrder(ctx context.Context, id uuid.UUID, order int) error
	HarvestProfile(ctx context.Context, id uuid.UUID, phone, email, headline, summary string) error
}

// QuotaGate pre-checks connection capacity before any invite dispatch.
type QuotaGate interface {
	CheckBoth(ctx context.Context, tenantID uuid.UUID) (quota.Decision, quota.Scope, error)
}

// AccountPool selects and maintains the tenant's provider accounts.
type AccountPool interface {
	Pick(ctx context.Context, tenantID uuid.UUID, providerName string) (*accounts.Account, error)
	FallbackOrder(ctx context.Context, tenantID uuid.UUID, providerName string, primary *accounts.Account) ([]accounts.Account, error)
	OnUnauthorized(ctx context.Context, account *accounts.Account, retry func() error) error
}

// LinkedInClient is the gateway surface the workflow dispatches through.
type LinkedInClient interface {
	Lookup(ctx context.Context, accountID, publicID string) (string, error)
	Invite(ctx context.Context, accountID, providerID, message string) (string, error)
	SendMessage(ctx context.Context, accountID, providerID, text string) error
	Follow(ctx context.Context, accountID, providerID string) error
	GetProfile(ctx context.Context, accountID, publicID string) (*unipile.Profile, error)
}

// EmailSender delivers one outreach email.
type EmailSender interface {
	Send(ctx context.Context, toEmail, subject, body string) error
}

// WhatsAppSender delivers one WhatsApp message.
type WhatsAppSender interface {
	SendMessage(ctx context.Context, phoneNumber, message string) error
}

// InstagramSender delivers one Instagram DM.
type InstagramSender interface {
	SendDM(ctx context.Context, username, message string) error
}

// VoiceCaller starts one outbound agent call.
type VoiceCaller interface {
	StartCall(ctx context.Context, req vapi.CallRequest) (*vapi.Call, error)
}

// Enricher resolves missing contact data before LinkedIn dispatch.
type Enricher interface {
	Enrich(ctx context.Context, leadID uuid.UUID) (*enrichment.Result, error)
}

// ProfileSummarizer condenses a visited profile into a short note.
type ProfileSummarizer interface {
	Summarize(ctx context.Context, in summarizer.ProfileInput) string
}

// InvitationChecker reports whether a lead's connection invitation has been
// accepted, per the polling worker's reconciled view.
type InvitationChecker interface {
	Accepted(ctx context.Context, leadID uuid.UUID) (bool, error)
}

// InvitationRecorder persists a dispatched invitation for later polling.
type InvitationRecorder interface {
	Upsert(ctx context.Context, t *invitations.Track) error
}

// Sourcer runs the campaign's daily lead generation. Same-day re-invocation
// is a no-op inside the sourcer itself.
type Sourcer interface {
	Run(ctx context.Context, campaignID uuid.UUID) error
}

// StepLister reads the campaign's ordered workflow.
type StepLister interface {
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]repository.Step, error)
}
