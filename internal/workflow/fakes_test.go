package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"outreach_backend/internal/accounts"
	"outreach_backend/internal/activity"
	"outreach_backend/internal/campaigns/repository"
	"outreach_backend/internal/enrichment"
	"outreach_backend/internal/invitations"
	"outreach_backend/internal/provider"
	"outreach_backend/internal/provider/unipile"
	"outreach_backend/internal/provider/vapi"
	"outreach_backend/internal/quota"
	"outreach_backend/internal/summarizer"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

func testLogger() *logger.Logger {
	return logger.New("test")
}

type fakeLedger struct {
	mu   sync.Mutex
	rows []*activity.Activity
}

func (f *fakeLedger) Record(ctx context.Context, a *activity.Activity) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *a
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	f.rows = append(f.rows, &stored)
	return stored.ID, nil
}

func (f *fakeLedger) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string, metadata map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id {
			row.Status = status
			row.ErrorMessage = errorMessage
			if metadata != nil {
				row.Metadata = metadata
			}
			return nil
		}
	}
	return fmt.Errorf("activity %s not found", id)
}

func (f *fakeLedger) LatestSuccessForLead(ctx context.Context, leadID uuid.UUID) (*activity.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.rows) - 1; i >= 0; i-- {
		row := f.rows[i]
		if row.CampaignLeadID == leadID && activity.IsTerminalSuccess(row.Status) {
			copied := *row
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) HasTerminalSuccess(ctx context.Context, leadID, stepID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.CampaignLeadID == leadID && row.StepID == stepID && activity.IsTerminalSuccess(row.Status) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) HasStatusForLead(ctx context.Context, leadID uuid.UUID, status string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.CampaignLeadID == leadID && row.Status == status {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) countStatus(leadID, stepID uuid.UUID, status string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, row := range f.rows {
		if row.CampaignLeadID == leadID && row.StepID == stepID && row.Status == status {
			n++
		}
	}
	return n
}

func (f *fakeLedger) last() *activity.Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.rows) == 0 {
		return nil
	}
	return f.rows[len(f.rows)-1]
}

type fakeLeadStore struct {
	mu        sync.Mutex
	leads     map[uuid.UUID]*repository.Lead
	harvested []string
}

func newFakeLeadStore(leads ...*repository.Lead) *fakeLeadStore {
	s := &fakeLeadStore{leads: make(map[uuid.UUID]*repository.Lead)}
	for _, l := range leads {
		s.leads[l.ID] = l
	}
	return s
}

func (f *fakeLeadStore) GetByID(ctx context.Context, id uuid.UUID) (*repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok {
		return nil, fmt.Errorf("lead %s not found", id)
	}
	copied := *l
	return &copied, nil
}

func (f *fakeLeadStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.leads[id]; ok {
		l.Status = status
	}
	return nil
}

func (f *fakeLeadStore) SetCurrentStepOrder(ctx context.Context, id uuid.UUID, order int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.leads[id]; ok {
		l.CurrentStepOrder = order
	}
	return nil
}

func (f *fakeLeadStore) HarvestProfile(ctx context.Context, id uuid.UUID, phone, email, headline, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.harvested = append(f.harvested, fmt.Sprintf("%s|%s|%s", phone, email, headline))
	return nil
}

type fakeQuota struct {
	decision quota.Decision
	scope    quota.Scope
	err      error
	calls    int
}

func (f *fakeQuota) CheckBoth(ctx context.Context, tenantID uuid.UUID) (quota.Decision, quota.Scope, error) {
	f.calls++
	return f.decision, f.scope, f.err
}

type fakePool struct {
	accounts      []accounts.Account
	unauthorized  int
	retrySucceeds bool
}

func (f *fakePool) Pick(ctx context.Context, tenantID uuid.UUID, providerName string) (*accounts.Account, error) {
	if len(f.accounts) == 0 {
		return nil, nil
	}
	copied := f.accounts[0]
	return &copied, nil
}

func (f *fakePool) FallbackOrder(ctx context.Context, tenantID uuid.UUID, providerName string, primary *accounts.Account) ([]accounts.Account, error) {
	return f.accounts, nil
}

func (f *fakePool) OnUnauthorized(ctx context.Context, account *accounts.Account, retry func() error) error {
	f.unauthorized++
	if f.retrySucceeds {
		return retry()
	}
	return provider.NewError("linkedin", provider.CategoryCredentials, 401, "account disconnected", nil)
}

// fakeLinkedIn scripts per-account invite results. inviteErrs maps
// "externalAccountID|strategy" (strategy "msg" or "bare") to the error for
// that attempt; absent keys succeed.
type fakeLinkedIn struct {
	mu          sync.Mutex
	inviteErrs  map[string]error
	lookupErr   error
	sendErr     error
	profile     *unipile.Profile
	profileErrs map[string]error
	invites     []string
	messages    []string
	follows     int
}

func inviteKey(accountID, message string) string {
	if message != "" {
		return accountID + "|msg"
	}
	return accountID + "|bare"
}

func (f *fakeLinkedIn) Lookup(ctx context.Context, accountID, publicID string) (string, error) {
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	return "prov-" + unipile.PublicID(publicID), nil
}

func (f *fakeLinkedIn) Invite(ctx context.Context, accountID, providerID, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invites = append(f.invites, inviteKey(accountID, message))
	if err, ok := f.inviteErrs[inviteKey(accountID, message)]; ok {
		return "", err
	}
	return "inv-" + providerID, nil
}

func (f *fakeLinkedIn) SendMessage(ctx context.Context, accountID, providerID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return f.sendErr
}

func (f *fakeLinkedIn) Follow(ctx context.Context, accountID, providerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.follows++
	return nil
}

func (f *fakeLinkedIn) GetProfile(ctx context.Context, accountID, publicID string) (*unipile.Profile, error) {
	if f.profileErrs != nil {
		if err, ok := f.profileErrs[accountID]; ok {
			return nil, err
		}
	}
	if f.profile == nil {
		return nil, provider.NewError("linkedin", provider.CategoryNotFound, 404, "profile not found", nil)
	}
	return f.profile, nil
}

type fakeTracks struct {
	mu     sync.Mutex
	tracks []*invitations.Track
}

func (f *fakeTracks) Upsert(ctx context.Context, t *invitations.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = append(f.tracks, t)
	return nil
}

type fakeChecker struct {
	accepted bool
}

func (f *fakeChecker) Accepted(ctx context.Context, leadID uuid.UUID) (bool, error) {
	return f.accepted, nil
}

type fakeEnricher struct {
	apply func(store *fakeLeadStore)
	store *fakeLeadStore
	calls int
}

func (f *fakeEnricher) Enrich(ctx context.Context, leadID uuid.UUID) (*enrichment.Result, error) {
	f.calls++
	if f.apply != nil {
		f.apply(f.store)
	}
	return &enrichment.Result{}, nil
}

type fakeEmail struct {
	sent []string
	err  error
}

func (f *fakeEmail) Send(ctx context.Context, toEmail, subject, body string) error {
	f.sent = append(f.sent, toEmail+"|"+subject)
	return f.err
}

type fakeWhatsApp struct{ sent []string }

func (f *fakeWhatsApp) SendMessage(ctx context.Context, phoneNumber, message string) error {
	f.sent = append(f.sent, phoneNumber+"|"+message)
	return nil
}

type fakeInstagram struct{ sent []string }

func (f *fakeInstagram) SendDM(ctx context.Context, username, message string) error {
	f.sent = append(f.sent, username+"|"+message)
	return nil
}

type fakeVoice struct{ calls []vapi.CallRequest }

func (f *fakeVoice) StartCall(ctx context.Context, req vapi.CallRequest) (*vapi.Call, error) {
	f.calls = append(f.calls, req)
	return &vapi.Call{ID: "call-1", Status: "queued"}, nil
}

type fakeSummarizer struct{ text string }

func (f *fakeSummarizer) Summarize(ctx context.Context, in summarizer.ProfileInput) string {
	return f.text
}

type recordingExecutor struct {
	outcomes map[string]Outcome
	ledger   *fakeLedger
	executed []string
}

// Execute records the delivered activity the way the real executor would,
// so the driver's cursor derivation sees it.
func (f *recordingExecutor) Execute(ctx context.Context, campaign *repository.Campaign, step *repository.Step, lead *repository.Lead) Outcome {
	f.executed = append(f.executed, step.Type)
	outcome, ok := f.outcomes[step.Type]
	if !ok {
		outcome = Outcome{OK: true}
	}
	if outcome.OK && f.ledger != nil {
		f.ledger.Record(ctx, &activity.Activity{
			TenantID:       lead.TenantID,
			CampaignID:     campaign.ID,
			CampaignLeadID: lead.ID,
			StepID:         step.ID,
			StepType:       step.Type,
			Status:         activity.StatusDelivered,
		})
	}
	return outcome
}

func testLead(tenantID uuid.UUID, url string) *repository.Lead {
	var linkedinURL *string
	if url != "" {
		linkedinURL = &url
	}
	return &repository.Lead{
		ID:               uuid.New(),
		CampaignID:       uuid.New(),
		TenantID:         tenantID,
		ExternalPersonID: "person-1",
		FirstName:        "Alice",
		LastName:         "Anders",
		Title:            "CTO",
		CompanyName:      "Initech",
		Industry:         "Software",
		LinkedInURL:      linkedinURL,
		Status:           repository.LeadActive,
	}
}

func testAccount(tenantID uuid.UUID, external string) accounts.Account {
	return accounts.Account{
		ID:                uuid.New(),
		TenantID:          tenantID,
		Provider:          accounts.ProviderLinkedIn,
		ExternalAccountID: external,
		Status:            accounts.StatusActive,
		DailyCap:          20,
	}
}

func testSteps(campaignID uuid.UUID, types ...string) []repository.Step {
	steps := make([]repository.Step, 0, len(types))
	for i, t := range types {
		steps = append(steps, repository.Step{
			ID:         uuid.New(),
			CampaignID: campaignID,
			Order:      i,
			Type:       t,
			Config:     map[string]any{},
		})
	}
	return steps
}
