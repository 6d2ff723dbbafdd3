package workflow

import (
	"context"
	"fmt"
	"strings"

	"outreach_backend/internal/accounts"
	"outreach_backend/internal/activity"
	"outreach_backend/internal/campaigns/repository"
	"outreach_backend/internal/provider"
	"outreach_backend/internal/provider/vapi"
	"outreach_backend/internal/quota"
	"outreach_backend/internal/summarizer"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// Executor dispatches one (step, lead) pair to the owning provider and
// records the attempt in the activity ledger.
type Executor struct {
	ledger      Ledger
	leads       LeadStore
	quota       QuotaGate
	pool        AccountPool
	linkedin    LinkedInClient
	email       EmailSender
	whatsapp    WhatsAppSender
	instagram   InstagramSender
	voice       VoiceCaller
	enricher    Enricher
	summaries   ProfileSummarizer
	invitations InvitationChecker
	sourcer     Sourcer
	dispatcher  *ConnectDispatcher
	validator   *Validator
	log         *logger.Logger
}

// ExecutorDeps bundles the executor's collaborators.
type ExecutorDeps struct {
	Ledger      Ledger
	Leads       LeadStore
	Quota       QuotaGate
	Pool        AccountPool
	LinkedIn    LinkedInClient
	Email       EmailSender
	WhatsApp    WhatsAppSender
	Instagram   InstagramSender
	Voice       VoiceCaller
	Enricher    Enricher
	Summarizer  ProfileSummarizer
	Invitations InvitationChecker
	Sourcer     Sourcer
	Dispatcher  *ConnectDispatcher
	Validator   *Validator
	Logger      *logger.Logger
}

// NewExecutor creates the step executor.
func NewExecutor(deps ExecutorDeps) *Executor {
	return &Executor{
		ledger:      deps.Ledger,
		leads:       deps.Leads,
		quota:       deps.Quota,
		pool:        deps.Pool,
		linkedin:    deps.LinkedIn,
		email:       deps.Email,
		whatsapp:    deps.WhatsApp,
		instagram:   deps.Instagram,
		voice:       deps.Voice,
		enricher:    deps.Enricher,
		summaries:   deps.Summarizer,
		invitations: deps.Invitations,
		sourcer:     deps.Sourcer,
		dispatcher:  deps.Dispatcher,
		validator:   deps.Validator,
		log:         deps.Logger,
	}
}

// Execute runs one step for one lead. The caller (the workflow driver) has
// already skipped steps that carry a terminal success.
func (e *Executor) Execute(ctx context.Context, campaign *repository.Campaign, step *repository.Step, lead *repository.Lead) Outcome {
	if result := e.validator.Validate(step); !result.Valid {
		e.recordError(ctx, step, lead, result.Error)
		return Outcome{Validation: true, Reason: result.Error}
	}

	switch {
	case repository.IsSynthetic(step.Type),
		step.Type == repository.StepDelay,
		step.Type == repository.StepCondition:
		// Structural steps never reach a provider; the driver owns their
		// semantics and only calls here defensively.
		return success("")

	case step.Type == repository.StepLeadGeneration:
		if e.sourcer == nil {
			return success("")
		}
		if err := e.sourcer.Run(ctx, campaign.ID); err != nil {
			return failure("sourcing_failed", provider.CategoryTransient, err)
		}
		return success("")
	}

	if repository.IsLinkedIn(step.Type) {
		if outcome, ok := e.ensureLinkedInURL(ctx, step, lead); !ok {
			return outcome
		}
	}

	activityID, err := e.ledger.Record(ctx, &activity.Activity{
		TenantID:       lead.TenantID,
		CampaignID:     campaign.ID,
		CampaignLeadID: lead.ID,
		StepID:         step.ID,
		StepType:       step.Type,
		ActionType:     step.Type,
		Channel:        channelFor(step.Type),
		Status:         activity.StatusSent,
	})
	if err != nil {
		return failure("ledger_write_failed", provider.CategoryTransient, err)
	}

	switch step.Type {
	case repository.StepLinkedInConnect:
		return e.executeConnect(ctx, campaign, step, lead, activityID)
	case repository.StepLinkedInMessage:
		return e.executeLinkedInMessage(ctx, step, lead, activityID)
	case repository.StepLinkedInVisit:
		return e.executeVisit(ctx, lead, activityID)
	case repository.StepLinkedInFollow:
		return e.executeFollow(ctx, lead, activityID)
	case repository.StepEmailSend, repository.StepEmailFollowup:
		return e.executeEmail(ctx, step, lead, activityID)
	case repository.StepWhatsAppSend:
		return e.executeWhatsApp(ctx, step, lead, activityID)
	case repository.StepInstagramDM:
		return e.executeInstagram(ctx, step, lead, activityID)
	case repository.StepVoiceAgentCall:
		return e.executeVoiceCall(ctx, step, lead, activityID)
	default:
		msg := fmt.Sprintf("unsupported step type %q", step.Type)
		e.failActivity(ctx, activityID, msg, nil)
		return Outcome{Validation: true, Reason: msg}
	}
}

// ensureLinkedInURL runs the enrichment fallback when the lead carries no
// profile URL. Returns ok=false with the outcome to surface when the URL is
// still missing afterwards.
func (e *Executor) ensureLinkedInURL(ctx context.Context, step *repository.Step, lead *repository.Lead) (Outcome, bool) {
	if lead.BestLinkedInURL() != "" {
		return Outcome{}, true
	}

	if e.enricher != nil {
		if _, err := e.enricher.Enrich(ctx, lead.ID); err != nil {
			e.log.Warn("enrichment before LinkedIn dispatch failed", "lead_id", lead.ID, "error", err)
		}
		if fresh, err := e.leads.GetByID(ctx, lead.ID); err == nil {
			*lead = *fresh
		}
	}

	if lead.BestLinkedInURL() != "" {
		return Outcome{}, true
	}

	e.recordError(ctx, step, lead, "lead has no LinkedIn URL and enrichment found none")
	return failure(ReasonLinkedInURLMissing, provider.CategoryValidation, nil), false
}

func (e *Executor) executeConnect(ctx context.Context, campaign *repository.Campaign, step *repository.Step, lead *repository.Lead, activityID uuid.UUID) Outcome {
	decision, scope, err := e.quota.CheckBoth(ctx, lead.TenantID)
	if err != nil {
		e.failActivity(ctx, activityID, "quota check failed", nil)
		return failure("quota_check_failed", provider.CategoryTransient, err)
	}
	if !decision.Allowed {
		reason := ReasonQuotaDaily
		if scope == quota.ScopeWeekly {
			reason = ReasonQuotaWeekly
		}
		msg := fmt.Sprintf("%s connection quota exhausted (%d/%d)", scope, decision.Used, decision.Cap)
		e.failActivity(ctx, activityID, msg, nil)
		return Outcome{Reason: reason, Category: provider.CategoryRateLimit}
	}

	message := configString(step.Config, "message")
	if message == "" {
		message = campaign.Config.ConnectionMessage
	}
	rendered := Render(message, lead)

	result := e.dispatcher.Invite(ctx, lead, rendered, rendered != "")
	if !result.OK {
		e.failActivity(ctx, activityID, result.Message, result.Err)
		return Outcome{Reason: result.Reason, Category: result.Category, Err: result.Err}
	}

	metadata := map[string]any{
		"strategy":            result.Strategy,
		"messageSkipped":      result.MessageSkipped,
		"provider_account_id": result.AccountID.String(),
	}
	e.deliverActivity(ctx, activityID, metadata)
	return Outcome{OK: true, Strategy: result.Strategy}
}

func (e *Executor) executeLinkedInMessage(ctx context.Context, step *repository.Step, lead *repository.Lead, activityID uuid.UUID) Outcome {
	accepted, err := e.connectionAccepted(ctx, lead.ID)
	if err != nil {
		e.failActivity(ctx, activityID, "invitation state unavailable", err)
		return failure("invitation_check_failed", provider.CategoryTransient, err)
	}
	if !accepted {
		reason := "connection not yet accepted"
		if err := e.ledger.UpdateStatus(ctx, activityID, activity.StatusSkipped, &reason, nil); err != nil {
			e.log.Warn("failed to mark activity skipped", "activity_id", activityID, "error", err)
		}
		return Outcome{Skipped: true, Reason: ReasonWaitingAcceptance}
	}

	text := Render(configString(step.Config, "message"), lead)
	return e.dispatchViaAccount(ctx, lead, activityID, map[string]any{"message_length": len(text)},
		func(accountID, providerID string) error {
			return e.linkedin.SendMessage(ctx, accountID, providerID, text)
		})
}

func (e *Executor) executeVisit(ctx context.Context, lead *repository.Lead, activityID uuid.UUID) Outcome {
	primary, err := e.pool.Pick(ctx, lead.TenantID, accounts.ProviderLinkedIn)
	if err != nil || primary == nil {
		e.failActivity(ctx, activityID, "no connected LinkedIn account is available", err)
		return failure(ReasonNoValidAccounts, provider.CategoryCredentials, err)
	}

	profile, err := e.linkedin.GetProfile(ctx, primary.ExternalAccountID, lead.BestLinkedInURL())
	if provider.IsCredentials(err) {
		// One alternate account gets a chance before the visit fails.
		if alt := e.alternateAccount(ctx, lead.TenantID, primary); alt != nil {
			profile, err = e.linkedin.GetProfile(ctx, alt.ExternalAccountID, lead.BestLinkedInURL())
		}
	}
	if err != nil {
		e.failActivity(ctx, activityID, "profile visit failed", err)
		return failure("visit_failed", provider.CategoryOf(err), err)
	}

	summary := ""
	if e.summaries != nil {
		summary = e.summaries.Summarize(ctx, summarizer.ProfileInput{
			FirstName: profile.FirstName,
			LastName:  profile.LastName,
			Headline:  profile.Headline,
			Summary:   profile.Summary,
			Location:  profile.Location,
			Company:   lead.CompanyName,
			Title:     lead.Title,
		})
	}
	if summary == "" {
		summary = profile.Summary
	}

	if err := e.leads.HarvestProfile(ctx, lead.ID, profile.FirstPhone(), profile.FirstEmail(), profile.Headline, summary); err != nil {
		e.log.Warn("failed to harvest visited profile", "lead_id", lead.ID, "error", err)
	}

	e.deliverActivity(ctx, activityID, map[string]any{"headline": profile.Headline})
	return success("")
}

func (e *Executor) executeFollow(ctx context.Context, lead *repository.Lead, activityID uuid.UUID) Outcome {
	return e.dispatchViaAccount(ctx, lead, activityID, nil,
		func(accountID, providerID string) error {
			return e.linkedin.Follow(ctx, accountID, providerID)
		})
}

func (e *Executor) executeEmail(ctx context.Context, step *repository.Step, lead *repository.Lead, activityID uuid.UUID) Outcome {
	to := lead.BestEmail()
	if to == "" {
		e.failActivity(ctx, activityID, "lead has no email address", nil)
		return failure(ReasonEmailMissing, provider.CategoryValidation, nil)
	}

	subject := Render(configString(step.Config, "subject"), lead)
	body := Render(configString(step.Config, "body"), lead)
	return e.finish(ctx, activityID, e.email.Send(ctx, to, subject, body), nil)
}

func (e *Executor) executeWhatsApp(ctx context.Context, step *repository.Step, lead *repository.Lead, activityID uuid.UUID) Outcome {
	if lead.Phone == nil || *lead.Phone == "" {
		e.failActivity(ctx, activityID, "lead has no phone number", nil)
		return failure(ReasonPhoneMissing, provider.CategoryValidation, nil)
	}

	message := Render(configString(step.Config, "whatsappMessage"), lead)
	return e.finish(ctx, activityID, e.whatsapp.SendMessage(ctx, *lead.Phone, message), nil)
}

func (e *Executor) executeInstagram(ctx context.Context, step *repository.Step, lead *repository.Lead, activityID uuid.UUID) Outcome {
	username := configString(step.Config, "instagramUsername")
	if username == "" && lead.InstagramUsername != nil {
		username = *lead.InstagramUsername
	}

	message := Render(configString(step.Config, "instagramDmMessage"), lead)
	return e.finish(ctx, activityID, e.instagram.SendDM(ctx, username, message), nil)
}

func (e *Executor) executeVoiceCall(ctx context.Context, step *repository.Step, lead *repository.Lead, activityID uuid.UUID) Outcome {
	if lead.Phone == nil || *lead.Phone == "" {
		e.failActivity(ctx, activityID, "lead has no phone number", nil)
		return failure(ReasonPhoneMissing, provider.CategoryValidation, nil)
	}

	callContext := configString(step.Config, "voiceContext")
	if callContext == "" {
		callContext = configString(step.Config, "added_context")
	}

	call, err := e.voice.StartCall(ctx, vapi.CallRequest{
		AssistantID:   configString(step.Config, "voiceAgentId"),
		PhoneNumberID: configString(step.Config, "voicePhoneNumberId"),
		ToNumber:      *lead.Phone,
		CustomerName:  strings.TrimSpace(lead.FirstName + " " + lead.LastName),
		Context:       Render(callContext, lead),
	})
	var metadata map[string]any
	if call != nil {
		metadata = map[string]any{"call_id": call.ID}
	}
	return e.finish(ctx, activityID, err, metadata)
}

// dispatchViaAccount picks the primary LinkedIn account, resolves the
// lead's provider id, and runs the send. A 401 goes through the pool's
// reconnect budget once.
func (e *Executor) dispatchViaAccount(ctx context.Context, lead *repository.Lead, activityID uuid.UUID, metadata map[string]any, send func(accountID, providerID string) error) Outcome {
	account, err := e.pool.Pick(ctx, lead.TenantID, accounts.ProviderLinkedIn)
	if err != nil || account == nil {
		e.failActivity(ctx, activityID, "no connected LinkedIn account is available", err)
		return failure(ReasonNoValidAccounts, provider.CategoryCredentials, err)
	}

	providerID, err := e.linkedin.Lookup(ctx, account.ExternalAccountID, lead.BestLinkedInURL())
	if err != nil {
		e.failActivity(ctx, activityID, "profile lookup failed", err)
		return failure("lookup_failed", provider.CategoryOf(err), err)
	}

	err = send(account.ExternalAccountID, providerID)
	if provider.IsCredentials(err) {
		err = e.pool.OnUnauthorized(ctx, account, func() error {
			return send(account.ExternalAccountID, providerID)
		})
	}
	return e.finish(ctx, activityID, err, metadata)
}

func (e *Executor) connectionAccepted(ctx context.Context, leadID uuid.UUID) (bool, error) {
	connected, err := e.ledger.HasStatusForLead(ctx, leadID, activity.StatusConnected)
	if err != nil {
		return false, err
	}
	if connected {
		return true, nil
	}
	if e.invitations == nil {
		return false, nil
	}
	return e.invitations.Accepted(ctx, leadID)
}

func (e *Executor) alternateAccount(ctx context.Context, tenantID uuid.UUID, primary *accounts.Account) *accounts.Account {
	order, err := e.pool.FallbackOrder(ctx, tenantID, accounts.ProviderLinkedIn, primary)
	if err != nil {
		return nil
	}
	for i := range order {
		if order[i].ID != primary.ID {
			return &order[i]
		}
	}
	return nil
}

// finish resolves the pending sent activity to delivered or error and
// wraps the provider result.
func (e *Executor) finish(ctx context.Context, activityID uuid.UUID, err error, metadata map[string]any) Outcome {
	if err == nil {
		e.deliverActivity(ctx, activityID, metadata)
		return success("")
	}
	e.failActivity(ctx, activityID, err.Error(), err)
	return failure("dispatch_failed", provider.CategoryOf(err), err)
}

func (e *Executor) deliverActivity(ctx context.Context, activityID uuid.UUID, metadata map[string]any) {
	if err := e.ledger.UpdateStatus(ctx, activityID, activity.StatusDelivered, nil, metadata); err != nil {
		e.log.Warn("failed to mark activity delivered", "activity_id", activityID, "error", err)
	}
}

func (e *Executor) failActivity(ctx context.Context, activityID uuid.UUID, message string, cause error) {
	if cause != nil {
		message = fmt.Sprintf("%s: %v", message, cause)
	}
	if err := e.ledger.UpdateStatus(ctx, activityID, activity.StatusError, &message, nil); err != nil {
		e.log.Warn("failed to mark activity errored", "activity_id", activityID, "error", err)
	}
}

// recordError appends an error activity for failures detected before the
// sent row exists (validation, missing URL).
func (e *Executor) recordError(ctx context.Context, step *repository.Step, lead *repository.Lead, message string) {
	_, err := e.ledger.Record(ctx, &activity.Activity{
		TenantID:       lead.TenantID,
		CampaignID:     lead.CampaignID,
		CampaignLeadID: lead.ID,
		StepID:         step.ID,
		StepType:       step.Type,
		ActionType:     step.Type,
		Channel:        channelFor(step.Type),
		Status:         activity.StatusError,
		ErrorMessage:   &message,
	})
	if err != nil {
		e.log.Warn("failed to record error activity", "lead_id", lead.ID, "error", err)
	}
}

func channelFor(stepType string) string {
	switch {
	case repository.IsLinkedIn(stepType):
		return "linkedin"
	case strings.HasPrefix(stepType, "email_"):
		return "email"
	case stepType == repository.StepWhatsAppSend:
		return "whatsapp"
	case stepType == repository.StepInstagramDM:
		return "instagram"
	case stepType == repository.StepVoiceAgentCall:
		return "voice"
	default:
		return "system"
	}
}

func configString(cfg map[string]any, key string) string {
	if v, ok := cfg[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
