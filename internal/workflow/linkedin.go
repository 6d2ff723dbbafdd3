package workflow

import (
	"context"
	"time"

	"outreach_backend/internal/accounts"
	"outreach_backend/internal/campaigns/repository"
	"outreach_backend/internal/invitations"
	"outreach_backend/internal/provider"
	"outreach_backend/internal/provider/unipile"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// ConnectResult is the outcome of a connection dispatch across the
// tenant's account pool.
type ConnectResult struct {
	OK             bool
	Strategy       string
	MessageSkipped bool
	Reason         string
	Category       provider.Category
	Message        string
	AccountID      uuid.UUID
	ProviderID     string
	Err            error
}

// ConnectDispatcher sends connection invitations with account fallback:
// every account is tried with the message first (when one is wanted), then
// without, before moving to the next account.
type ConnectDispatcher struct {
	linkedin   LinkedInClient
	pool       AccountPool
	tracks     InvitationRecorder
	quiescence time.Duration
	sleep      func(ctx context.Context, d time.Duration)
	log        *logger.Logger
}

// NewConnectDispatcher creates the dispatcher. quiescence is the fixed
// pause inserted after every invite attempt.
func NewConnectDispatcher(linkedin LinkedInClient, pool AccountPool, tracks InvitationRecorder, quiescence time.Duration, log *logger.Logger) *ConnectDispatcher {
	if quiescence <= 0 {
		quiescence = 10 * time.Second
	}
	return &ConnectDispatcher{
		linkedin:   linkedin,
		pool:       pool,
		tracks:     tracks,
		quiescence: quiescence,
		sleep:      sleepContext,
		log:        log,
	}
}

type attemptKey struct {
	account  uuid.UUID
	strategy string
}

// Invite attempts the connection for the lead across the tenant's accounts.
// The caller has already passed the quota gate.
func (d *ConnectDispatcher) Invite(ctx context.Context, lead *repository.Lead, message string, wantsMessage bool) ConnectResult {
	publicID := lead.BestLinkedInURL()
	if publicID == "" {
		return ConnectResult{Reason: ReasonLinkedInURLMissing, Category: provider.CategoryValidation, Message: "lead has no LinkedIn URL"}
	}

	primary, err := d.pool.Pick(ctx, lead.TenantID, accounts.ProviderLinkedIn)
	if err != nil {
		return ConnectResult{Reason: ReasonNoValidAccounts, Category: provider.CategoryTransient, Message: "account lookup failed", Err: err}
	}
	if primary == nil {
		return ConnectResult{Reason: ReasonNoValidAccounts, Category: provider.CategoryCredentials, Message: "no connected LinkedIn account is available"}
	}

	order, err := d.pool.FallbackOrder(ctx, lead.TenantID, accounts.ProviderLinkedIn, primary)
	if err != nil {
		order = []accounts.Account{*primary}
	}

	tried := make(map[attemptKey]bool)
	var credentialErrs, rateLimitErrs, otherErrs int

	for i := range order {
		account := &order[i]

		providerID, err := d.linkedin.Lookup(ctx, account.ExternalAccountID, publicID)
		if err != nil {
			category := provider.CategoryOf(err)
			switch category {
			case provider.CategoryCredentials, provider.CategoryCheckpoint:
				credentialErrs++
			case provider.CategoryRateLimit:
				rateLimitErrs++
			default:
				otherErrs++
			}
			d.log.ProviderError("linkedin", "lookup", string(category), err)
			continue
		}

		if wantsMessage && message != "" && !tried[attemptKey{account.ID, StrategyWithMessage}] {
			tried[attemptKey{account.ID, StrategyWithMessage}] = true
			invitationID, err := d.invite(ctx, account, providerID, message)
			if err == nil {
				d.recordTrack(ctx, lead, account, providerID, publicID, invitationID)
				return ConnectResult{OK: true, Strategy: StrategyWithMessage, AccountID: account.ID, ProviderID: providerID}
			}
			switch provider.CategoryOf(err) {
			case provider.CategoryRateLimit:
				rateLimitErrs++
				// Message allowance exhausted; fall through to a bare
				// invite on the same account.
			case provider.CategoryCredentials:
				credentialErrs++
				if id, ok := d.retryUnauthorized(ctx, account, providerID, message); ok {
					d.recordTrack(ctx, lead, account, providerID, publicID, id)
					return ConnectResult{OK: true, Strategy: StrategyWithMessage, AccountID: account.ID, ProviderID: providerID}
				}
				continue
			default:
				otherErrs++
				continue
			}
		}

		if !tried[attemptKey{account.ID, StrategyWithoutMessage}] {
			tried[attemptKey{account.ID, StrategyWithoutMessage}] = true
			invitationID, err := d.invite(ctx, account, providerID, "")
			if err == nil {
				strategy := StrategyWithoutMessage
				skipped := false
				if wantsMessage && message != "" {
					strategy = StrategyFallback
					skipped = true
				}
				d.recordTrack(ctx, lead, account, providerID, publicID, invitationID)
				return ConnectResult{OK: true, Strategy: strategy, MessageSkipped: skipped, AccountID: account.ID, ProviderID: providerID}
			}
			switch provider.CategoryOf(err) {
			case provider.CategoryRateLimit:
				rateLimitErrs++
			case provider.CategoryCredentials:
				credentialErrs++
				if id, ok := d.retryUnauthorized(ctx, account, providerID, ""); ok {
					d.recordTrack(ctx, lead, account, providerID, publicID, id)
					return ConnectResult{OK: true, Strategy: StrategyWithoutMessage, MessageSkipped: wantsMessage && message != "", AccountID: account.ID, ProviderID: providerID}
				}
			default:
				otherErrs++
			}
		}
	}

	return terminalResult(credentialErrs, rateLimitErrs, otherErrs)
}

// invite performs one attempt and always applies the post-invite quiescence,
// success or failure.
func (d *ConnectDispatcher) invite(ctx context.Context, account *accounts.Account, providerID, message string) (string, error) {
	invitationID, err := d.linkedin.Invite(ctx, account.ExternalAccountID, providerID, message)
	d.sleep(ctx, d.quiescence)
	return invitationID, err
}

// retryUnauthorized hands the 401 to the pool's reconnect budget. Returns
// the invitation id and true when the re-verified account delivered the
// invite.
func (d *ConnectDispatcher) retryUnauthorized(ctx context.Context, account *accounts.Account, providerID, message string) (string, bool) {
	var invitationID string
	err := d.pool.OnUnauthorized(ctx, account, func() error {
		id, err := d.invite(ctx, account, providerID, message)
		invitationID = id
		return err
	})
	return invitationID, err == nil
}

func (d *ConnectDispatcher) recordTrack(ctx context.Context, lead *repository.Lead, account *accounts.Account, providerID, publicID, invitationID string) {
	if d.tracks == nil {
		return
	}
	track := &invitations.Track{
		TenantID:       lead.TenantID,
		CampaignID:     lead.CampaignID,
		CampaignLeadID: lead.ID,
		AccountID:      account.ID,
		ProviderID:     providerID,
		PublicID:       unipile.PublicID(publicID),
		LastSeenStatus: invitations.StatusPending,
	}
	if invitationID != "" {
		track.ExternalInvitationID = &invitationID
	}
	if err := d.tracks.Upsert(ctx, track); err != nil {
		d.log.Warn("failed to record invitation track", "lead_id", lead.ID, "error", err)
	}
}

// terminalResult classifies the exhausted dispatch by its dominant error
// tally and produces the user-visible message.
func terminalResult(credentialErrs, rateLimitErrs, otherErrs int) ConnectResult {
	switch {
	case rateLimitErrs >= credentialErrs && rateLimitErrs > 0 && rateLimitErrs >= otherErrs:
		return ConnectResult{
			Reason:   ReasonWeeklyLimit,
			Category: provider.CategoryRateLimit,
			Message:  "connection limit reached on all accounts; try again later",
		}
	case credentialErrs > 0 && credentialErrs >= otherErrs:
		return ConnectResult{
			Reason:   ReasonNoValidAccounts,
			Category: provider.CategoryCredentials,
			Message:  "no valid LinkedIn accounts; reconnect an account to continue",
		}
	default:
		return ConnectResult{
			Reason:   "dispatch_failed",
			Category: provider.CategoryUnknown,
			Message:  "could not send the connection invitation",
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
