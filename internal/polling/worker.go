// Package polling reconciles dispatched LinkedIn invitations with the
// provider: invitations that left the provider's pending list are promoted
// to connected, declined ones to error.
package polling

import (
	"context"
	"sync"
	"time"

	"outreach_backend/internal/accounts"
	"outreach_backend/internal/activity"
	"outreach_backend/internal/campaigns/repository"
	"outreach_backend/internal/events"
	"outreach_backend/internal/invitations"
	"outreach_backend/internal/provider"
	"outreach_backend/internal/provider/unipile"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// AccountSource lists the accounts to poll.
type AccountSource interface {
	TenantsWithActiveAccounts(ctx context.Context) ([]uuid.UUID, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, provider string) ([]accounts.Account, error)
}

// CampaignSource scopes the sweep to tenants with open campaigns.
type CampaignSource interface {
	TenantsWithOpenCampaigns(ctx context.Context) ([]uuid.UUID, error)
}

// TrackStore reads and resolves pending invitation tracks.
type TrackStore interface {
	ListPendingByTenant(ctx context.Context, tenantID uuid.UUID) ([]invitations.Track, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// InvitationLister fetches an account's sent invitations from the gateway.
type InvitationLister interface {
	ListSentInvitations(ctx context.Context, accountID string) ([]unipile.Invitation, error)
}

// Ledger promotes the lead's connect activity once the outcome is known.
type Ledger interface {
	PromoteDelivered(ctx context.Context, leadID uuid.UUID, stepType, newStatus string, errorMessage *string) (uuid.UUID, error)
}

// LeadCounter aggregates lead counts for the stats event.
type LeadCounter interface {
	StatusCounts(ctx context.Context, campaignID uuid.UUID) (map[string]int, error)
}

// Worker is the invitation polling worker. It sweeps on a fixed cron
// schedule, one tenant at a time with a fixed delay in between.
type Worker struct {
	accounts    AccountSource
	campaigns   CampaignSource
	tracks      TrackStore
	linkedin    InvitationLister
	ledger      Ledger
	leads       LeadCounter
	bus         events.Bus
	schedule    string
	tenantDelay time.Duration
	log         *logger.Logger
	cron        *cron.Cron
	sleep       func(ctx context.Context, d time.Duration)
}

// WorkerDeps bundles the worker's collaborators.
type WorkerDeps struct {
	Accounts  AccountSource
	Campaigns CampaignSource
	Tracks    TrackStore
	LinkedIn  InvitationLister
	Ledger    Ledger
	Leads     LeadCounter
	Bus       events.Bus
	Logger    *logger.Logger
}

// NewWorker creates the polling worker.
func NewWorker(cfg config.PollingConfig, deps WorkerDeps) *Worker {
	schedule := cfg.GetPollSchedule()
	if schedule == "" {
		schedule = "0 8,13,18 * * *"
	}
	delay := cfg.GetPollTenantDelay()
	if delay <= 0 {
		delay = 2 * time.Second
	}

	return &Worker{
		accounts:    deps.Accounts,
		campaigns:   deps.Campaigns,
		tracks:      deps.Tracks,
		linkedin:    deps.LinkedIn,
		ledger:      deps.Ledger,
		leads:       deps.Leads,
		bus:         deps.Bus,
		schedule:    schedule,
		tenantDelay: delay,
		log:         deps.Logger,
		sleep:       sleepContext,
	}
}

// Start registers the cron schedule and begins sweeping.
func (w *Worker) Start(ctx context.Context) error {
	w.cron = cron.New()
	_, err := w.cron.AddFunc(w.schedule, func() {
		if err := w.Sweep(ctx); err != nil {
			w.log.Error("invitation sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	w.cron.Start()
	w.log.Info("invitation polling started", "schedule", w.schedule)
	return nil
}

// Stop halts the cron scheduler, waiting for a running sweep to finish.
func (w *Worker) Stop() {
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
}

// Sweep polls every eligible tenant once. A tenant is eligible when it has
// at least one active LinkedIn account and at least one open campaign.
func (w *Worker) Sweep(ctx context.Context) error {
	withAccounts, err := w.accounts.TenantsWithActiveAccounts(ctx)
	if err != nil {
		return err
	}
	withCampaigns, err := w.campaigns.TenantsWithOpenCampaigns(ctx)
	if err != nil {
		return err
	}

	open := make(map[uuid.UUID]bool, len(withCampaigns))
	for _, id := range withCampaigns {
		open[id] = true
	}

	first := true
	for _, tenantID := range withAccounts {
		if !open[tenantID] {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !first {
			w.sleep(ctx, w.tenantDelay)
		}
		first = false

		if err := w.sweepTenant(ctx, tenantID); err != nil {
			w.log.WithTenantID(tenantID.String()).Error("tenant invitation sweep failed", "error", err)
		}
	}
	return nil
}

func (w *Worker) sweepTenant(ctx context.Context, tenantID uuid.UUID) error {
	tracks, err := w.tracks.ListPendingByTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		return nil
	}

	accts, err := w.accounts.ListByTenant(ctx, tenantID, accounts.ProviderLinkedIn)
	if err != nil {
		return err
	}

	// stillPending collects the provider-side view across all accounts.
	// polled remembers which internal accounts answered: a track whose
	// account failed to answer must not be resolved by absence.
	stillPending := make(map[string]unipile.Invitation)
	polled := make(map[uuid.UUID]bool)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for _, acct := range accts {
		if !acct.Healthy() {
			continue
		}
		g.Go(func() error {
			invs, err := w.linkedin.ListSentInvitations(gctx, acct.ExternalAccountID)
			if err != nil {
				w.log.ProviderError("linkedin", "list_invitations", string(provider.CategoryOf(err)), err)
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			polled[acct.ID] = true
			for _, inv := range invs {
				if inv.ID != "" {
					stillPending[inv.ID] = inv
				}
				if inv.ProviderID != "" {
					stillPending[inv.ProviderID] = inv
				}
				if inv.PublicID != "" {
					stillPending[inv.PublicID] = inv
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range tracks {
		track := &tracks[i]
		inv, present := w.lookup(stillPending, track)

		switch {
		case present && (inv.Status == invitations.StatusDeclined || inv.Status == invitations.StatusWithdrawn):
			w.resolve(ctx, track, inv.Status)
		case present:
			// Still pending on the provider side.
		case polled[track.AccountID]:
			// The sending account answered and no longer lists the
			// invitation: the lead accepted.
			w.resolve(ctx, track, invitations.StatusAccepted)
		}
	}
	return nil
}

func (w *Worker) lookup(stillPending map[string]unipile.Invitation, track *invitations.Track) (unipile.Invitation, bool) {
	if track.ExternalInvitationID != nil && *track.ExternalInvitationID != "" {
		if inv, ok := stillPending[*track.ExternalInvitationID]; ok {
			return inv, true
		}
	}
	if track.ProviderID != "" {
		if inv, ok := stillPending[track.ProviderID]; ok {
			return inv, true
		}
	}
	if track.PublicID != "" {
		if inv, ok := stillPending[track.PublicID]; ok {
			return inv, true
		}
	}
	return unipile.Invitation{}, false
}

// resolve records the observed outcome and promotes the lead's connect
// activity accordingly.
func (w *Worker) resolve(ctx context.Context, track *invitations.Track, status string) {
	log := w.log.WithTenantID(track.TenantID.String()).WithCampaignID(track.CampaignID.String())

	if err := w.tracks.UpdateStatus(ctx, track.ID, status); err != nil {
		log.Error("failed to update invitation track", "track_id", track.ID, "error", err)
		return
	}

	if status == invitations.StatusAccepted {
		_, err := w.ledger.PromoteDelivered(ctx, track.CampaignLeadID,
			repository.StepLinkedInConnect, activity.StatusConnected, nil)
		if err != nil {
			log.Error("failed to promote connect activity", "lead_id", track.CampaignLeadID, "error", err)
			return
		}
		log.Info("invitation accepted", "lead_id", track.CampaignLeadID)
		w.publishAccepted(ctx, track)
		return
	}

	reason := "invitation " + status
	_, err := w.ledger.PromoteDelivered(ctx, track.CampaignLeadID,
		repository.StepLinkedInConnect, activity.StatusError, &reason)
	if err != nil {
		log.Error("failed to promote connect activity", "lead_id", track.CampaignLeadID, "error", err)
		return
	}
	log.Info("invitation rejected", "lead_id", track.CampaignLeadID, "status", status)
}

func (w *Worker) publishAccepted(ctx context.Context, track *invitations.Track) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(ctx, events.InvitationAccepted{
		BaseEvent:  events.NewBaseEvent(),
		TenantID:   track.TenantID,
		CampaignID: track.CampaignID,
		LeadID:     track.CampaignLeadID,
	})

	counts, err := w.leads.StatusCounts(ctx, track.CampaignID)
	if err != nil {
		w.log.Warn("failed to count leads for stats", "campaign_id", track.CampaignID, "error", err)
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	w.bus.Publish(ctx, events.CampaignStatsUpdated{
		BaseEvent:      events.NewBaseEvent(),
		CampaignID:     track.CampaignID,
		TenantID:       track.TenantID,
		TotalLeads:     total,
		ActiveLeads:    counts[repository.LeadActive],
		CompletedLeads: counts[repository.LeadCompleted],
		FailedLeads:    counts[repository.LeadError],
	})
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
