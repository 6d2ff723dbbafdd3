package polling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"outreach_backend/internal/accounts"
	"outreach_backend/internal/activity"
	"outreach_backend/internal/campaigns/repository"
	"outreach_backend/internal/events"
	"outreach_backend/internal/invitations"
	"outreach_backend/internal/provider"
	"outreach_backend/internal/provider/unipile"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeAccounts struct {
	tenants  []uuid.UUID
	accounts map[uuid.UUID][]accounts.Account
}

func (f *fakeAccounts) TenantsWithActiveAccounts(ctx context.Context) ([]uuid.UUID, error) {
	return f.tenants, nil
}

func (f *fakeAccounts) ListByTenant(ctx context.Context, tenantID uuid.UUID, prov string) ([]accounts.Account, error) {
	return f.accounts[tenantID], nil
}

type fakeCampaigns struct {
	tenants []uuid.UUID
}

func (f *fakeCampaigns) TenantsWithOpenCampaigns(ctx context.Context) ([]uuid.UUID, error) {
	return f.tenants, nil
}

type fakeTracks struct {
	pending  map[uuid.UUID][]invitations.Track
	resolved map[uuid.UUID]string
}

func (f *fakeTracks) ListPendingByTenant(ctx context.Context, tenantID uuid.UUID) ([]invitations.Track, error) {
	return f.pending[tenantID], nil
}

func (f *fakeTracks) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if f.resolved == nil {
		f.resolved = make(map[uuid.UUID]string)
	}
	f.resolved[id] = status
	return nil
}

type fakeLister struct {
	mu          sync.Mutex
	invitations map[string][]unipile.Invitation
	errs        map[string]error
	calls       []string
}

func (f *fakeLister) ListSentInvitations(ctx context.Context, accountID string) ([]unipile.Invitation, error) {
	f.mu.Lock()
	f.calls = append(f.calls, accountID)
	f.mu.Unlock()
	if err := f.errs[accountID]; err != nil {
		return nil, err
	}
	return f.invitations[accountID], nil
}

type promotion struct {
	leadID   uuid.UUID
	stepType string
	status   string
	reason   *string
}

type fakeLedger struct {
	promotions []promotion
}

func (f *fakeLedger) PromoteDelivered(ctx context.Context, leadID uuid.UUID, stepType, newStatus string, errorMessage *string) (uuid.UUID, error) {
	f.promotions = append(f.promotions, promotion{leadID, stepType, newStatus, errorMessage})
	return uuid.New(), nil
}

type fakeCounter struct{}

func (fakeCounter) StatusCounts(ctx context.Context, campaignID uuid.UUID) (map[string]int, error) {
	return map[string]int{repository.LeadActive: 1}, nil
}

type fakeBus struct {
	published []events.Event
}

func (b *fakeBus) Publish(ctx context.Context, event events.Event) {
	b.published = append(b.published, event)
}

func (b *fakeBus) PublishSync(ctx context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}

func (b *fakeBus) Subscribe(eventName string, handler events.Handler) {}

type pollingConfig struct{}

func (pollingConfig) GetPollSchedule() string           { return "0 8,13,18 * * *" }
func (pollingConfig) GetPollTenantDelay() time.Duration { return 2 * time.Second }

type workerFixture struct {
	worker   *Worker
	accounts *fakeAccounts
	tracks   *fakeTracks
	lister   *fakeLister
	ledger   *fakeLedger
	bus      *fakeBus
	slept    []time.Duration
}

func newWorkerFixture(tenants []uuid.UUID) *workerFixture {
	f := &workerFixture{
		accounts: &fakeAccounts{tenants: tenants, accounts: map[uuid.UUID][]accounts.Account{}},
		tracks:   &fakeTracks{pending: map[uuid.UUID][]invitations.Track{}},
		lister:   &fakeLister{invitations: map[string][]unipile.Invitation{}, errs: map[string]error{}},
		ledger:   &fakeLedger{},
		bus:      &fakeBus{},
	}
	f.worker = NewWorker(pollingConfig{}, WorkerDeps{
		Accounts:  f.accounts,
		Campaigns: &fakeCampaigns{tenants: tenants},
		Tracks:    f.tracks,
		LinkedIn:  f.lister,
		Ledger:    f.ledger,
		Leads:     fakeCounter{},
		Bus:       f.bus,
		Logger:    logger.New("test"),
	})
	f.worker.sleep = func(ctx context.Context, d time.Duration) {
		f.slept = append(f.slept, d)
	}
	return f
}

func activeAccount(tenantID uuid.UUID, external string) accounts.Account {
	return accounts.Account{
		ID:                uuid.New(),
		TenantID:          tenantID,
		Provider:          accounts.ProviderLinkedIn,
		ExternalAccountID: external,
		Status:            accounts.StatusActive,
	}
}

func pendingTrack(tenantID uuid.UUID, accountID uuid.UUID, providerID string) invitations.Track {
	return invitations.Track{
		ID:             uuid.New(),
		TenantID:       tenantID,
		CampaignID:     uuid.New(),
		CampaignLeadID: uuid.New(),
		AccountID:      accountID,
		ProviderID:     providerID,
		LastSeenStatus: invitations.StatusPending,
	}
}

func TestSweepPromotesAcceptedInvitation(t *testing.T) {
	tenantID := uuid.New()
	f := newWorkerFixture([]uuid.UUID{tenantID})

	acct := activeAccount(tenantID, "unipile-1")
	f.accounts.accounts[tenantID] = []accounts.Account{acct}

	track := pendingTrack(tenantID, acct.ID, "prov-alice")
	f.tracks.pending[tenantID] = []invitations.Track{track}
	// The provider no longer lists the invitation: accepted.
	f.lister.invitations["unipile-1"] = []unipile.Invitation{
		{ProviderID: "prov-bob"},
	}

	if err := f.worker.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if f.tracks.resolved[track.ID] != invitations.StatusAccepted {
		t.Fatalf("track status = %q, want accepted", f.tracks.resolved[track.ID])
	}
	if len(f.ledger.promotions) != 1 {
		t.Fatalf("promotions = %d, want 1", len(f.ledger.promotions))
	}
	p := f.ledger.promotions[0]
	if p.leadID != track.CampaignLeadID || p.stepType != repository.StepLinkedInConnect || p.status != activity.StatusConnected {
		t.Fatalf("promotion = %+v", p)
	}

	var accepted, stats bool
	for _, e := range f.bus.published {
		switch e.(type) {
		case events.InvitationAccepted:
			accepted = true
		case events.CampaignStatsUpdated:
			stats = true
		}
	}
	if !accepted || !stats {
		t.Fatalf("published = %v, want acceptance and stats events", f.bus.published)
	}
}

func TestSweepLeavesListedInvitationPending(t *testing.T) {
	tenantID := uuid.New()
	f := newWorkerFixture([]uuid.UUID{tenantID})

	acct := activeAccount(tenantID, "unipile-1")
	f.accounts.accounts[tenantID] = []accounts.Account{acct}

	track := pendingTrack(tenantID, acct.ID, "prov-alice")
	f.tracks.pending[tenantID] = []invitations.Track{track}
	f.lister.invitations["unipile-1"] = []unipile.Invitation{
		{ProviderID: "prov-alice"},
	}

	if err := f.worker.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(f.tracks.resolved) != 0 || len(f.ledger.promotions) != 0 {
		t.Fatal("a still-listed invitation must stay pending")
	}
}

func TestSweepMatchesTrackByStoredInvitationID(t *testing.T) {
	tenantID := uuid.New()
	f := newWorkerFixture([]uuid.UUID{tenantID})

	acct := activeAccount(tenantID, "unipile-1")
	f.accounts.accounts[tenantID] = []accounts.Account{acct}

	track := pendingTrack(tenantID, acct.ID, "")
	invID := "inv-42"
	track.ExternalInvitationID = &invID
	f.tracks.pending[tenantID] = []invitations.Track{track}
	// Listed under its invitation id only; the invited-user ids are absent.
	f.lister.invitations["unipile-1"] = []unipile.Invitation{
		{ID: "inv-42"},
	}

	if err := f.worker.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(f.tracks.resolved) != 0 || len(f.ledger.promotions) != 0 {
		t.Fatal("a track listed under its invitation id must stay pending")
	}
}

func TestSweepPromotesDeclinedInvitationToError(t *testing.T) {
	tenantID := uuid.New()
	f := newWorkerFixture([]uuid.UUID{tenantID})

	acct := activeAccount(tenantID, "unipile-1")
	f.accounts.accounts[tenantID] = []accounts.Account{acct}

	track := pendingTrack(tenantID, acct.ID, "prov-alice")
	f.tracks.pending[tenantID] = []invitations.Track{track}
	f.lister.invitations["unipile-1"] = []unipile.Invitation{
		{ProviderID: "prov-alice", Status: invitations.StatusDeclined},
	}

	if err := f.worker.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if f.tracks.resolved[track.ID] != invitations.StatusDeclined {
		t.Fatalf("track status = %q, want declined", f.tracks.resolved[track.ID])
	}
	if len(f.ledger.promotions) != 1 {
		t.Fatalf("promotions = %d, want 1", len(f.ledger.promotions))
	}
	p := f.ledger.promotions[0]
	if p.status != activity.StatusError || p.reason == nil {
		t.Fatalf("promotion = %+v, want error with a reason", p)
	}
}

func TestSweepDoesNotResolveWhenAccountUnreachable(t *testing.T) {
	tenantID := uuid.New()
	f := newWorkerFixture([]uuid.UUID{tenantID})

	acct := activeAccount(tenantID, "unipile-1")
	f.accounts.accounts[tenantID] = []accounts.Account{acct}

	track := pendingTrack(tenantID, acct.ID, "prov-alice")
	f.tracks.pending[tenantID] = []invitations.Track{track}
	f.lister.errs["unipile-1"] = provider.NewError("linkedin", provider.CategoryTransient, 503, "gateway down", errors.New("503"))

	if err := f.worker.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(f.tracks.resolved) != 0 {
		t.Fatal("absence from a failed poll must not count as acceptance")
	}
}

func TestSweepSkipsTenantsWithoutOpenCampaigns(t *testing.T) {
	withCampaigns := uuid.New()
	withoutCampaigns := uuid.New()

	f := newWorkerFixture([]uuid.UUID{withCampaigns})
	f.accounts.tenants = []uuid.UUID{withCampaigns, withoutCampaigns}
	for _, tenantID := range f.accounts.tenants {
		acct := activeAccount(tenantID, "unipile-"+tenantID.String())
		f.accounts.accounts[tenantID] = []accounts.Account{acct}
		f.tracks.pending[tenantID] = []invitations.Track{pendingTrack(tenantID, acct.ID, "prov-x")}
	}

	if err := f.worker.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(f.lister.calls) != 1 {
		t.Fatalf("polled accounts = %v, want only the tenant with open campaigns", f.lister.calls)
	}
}

func TestSweepDelaysBetweenTenants(t *testing.T) {
	tenantA, tenantB := uuid.New(), uuid.New()
	f := newWorkerFixture([]uuid.UUID{tenantA, tenantB})

	if err := f.worker.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(f.slept) != 1 || f.slept[0] != 2*time.Second {
		t.Fatalf("slept = %v, want one 2s inter-tenant delay", f.slept)
	}
}
