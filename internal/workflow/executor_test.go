package workflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"outreach_backend/internal/accounts"
	"outreach_backend/internal/activity"
	"outreach_backend/internal/campaigns/repository"
	"outreach_backend/internal/provider"
	"outreach_backend/internal/provider/unipile"
	"outreach_backend/internal/quota"

	"github.com/google/uuid"
)

type executorFixture struct {
	executor *Executor
	ledger   *fakeLedger
	store    *fakeLeadStore
	quota    *fakeQuota
	pool     *fakePool
	linkedin *fakeLinkedIn
	email    *fakeEmail
	whatsapp *fakeWhatsApp
	voice    *fakeVoice
	checker  *fakeChecker
	enricher *fakeEnricher
}

func newExecutorFixture(lead *repository.Lead) *executorFixture {
	f := &executorFixture{
		ledger:   &fakeLedger{},
		quota:    &fakeQuota{decision: quota.Decision{Allowed: true, Remaining: 10}},
		linkedin: &fakeLinkedIn{},
		email:    &fakeEmail{},
		whatsapp: &fakeWhatsApp{},
		voice:    &fakeVoice{},
		checker:  &fakeChecker{},
	}
	f.store = newFakeLeadStore(lead)
	f.pool = &fakePool{accounts: []accounts.Account{testAccount(lead.TenantID, "acc-a"), testAccount(lead.TenantID, "acc-b")}}
	f.enricher = &fakeEnricher{store: f.store}

	dispatcher := NewConnectDispatcher(f.linkedin, f.pool, &fakeTracks{}, time.Millisecond, testLogger())
	dispatcher.sleep = func(ctx context.Context, d time.Duration) {}

	f.executor = NewExecutor(ExecutorDeps{
		Ledger:      f.ledger,
		Leads:       f.store,
		Quota:       f.quota,
		Pool:        f.pool,
		LinkedIn:    f.linkedin,
		Email:       f.email,
		WhatsApp:    f.whatsapp,
		Instagram:   &fakeInstagram{},
		Voice:       f.voice,
		Enricher:    f.enricher,
		Summarizer:  &fakeSummarizer{text: "Short summary."},
		Invitations: f.checker,
		Dispatcher:  dispatcher,
		Validator:   NewValidator(),
		Logger:      testLogger(),
	})
	return f
}

func connectStep(campaignID uuid.UUID, message string) *repository.Step {
	cfg := map[string]any{}
	if message != "" {
		cfg["message"] = message
	}
	return &repository.Step{ID: uuid.New(), CampaignID: campaignID, Order: 1, Type: repository.StepLinkedInConnect, Config: cfg}
}

func TestExecuteConnectRefusedByQuotaMakesNoProviderCall(t *testing.T) {
	tenantID := uuid.New()
	campaign := testCampaign(tenantID)
	lead := testLead(tenantID, "alice")
	lead.CampaignID = campaign.ID

	f := newExecutorFixture(lead)
	f.quota.decision = quota.Decision{Allowed: false, Cap: 5, Used: 5}
	f.quota.scope = quota.ScopeDaily

	outcome := f.executor.Execute(context.Background(), campaign, connectStep(campaign.ID, ""), lead)

	if outcome.OK {
		t.Fatal("expected refusal")
	}
	if outcome.Reason != ReasonQuotaDaily {
		t.Fatalf("Reason = %q, want %q", outcome.Reason, ReasonQuotaDaily)
	}
	if !outcome.Terminal() {
		t.Fatal("quota refusal must be terminal for the lead")
	}
	if len(f.linkedin.invites) != 0 {
		t.Fatalf("provider was contacted: %v", f.linkedin.invites)
	}
	last := f.ledger.last()
	if last == nil || last.Status != activity.StatusError {
		t.Fatalf("ledger row = %+v, want error status", last)
	}
}

func TestExecuteConnectDeliversAndRecordsStrategy(t *testing.T) {
	tenantID := uuid.New()
	campaign := testCampaign(tenantID)
	campaign.Config.ConnectionMessage = "Hi {{first_name}}"
	lead := testLead(tenantID, "alice")
	lead.CampaignID = campaign.ID

	f := newExecutorFixture(lead)

	outcome := f.executor.Execute(context.Background(), campaign, connectStep(campaign.ID, ""), lead)

	if !outcome.OK || outcome.Strategy != StrategyWithMessage {
		t.Fatalf("outcome = %+v, want with_message success", outcome)
	}
	last := f.ledger.last()
	if last.Status != activity.StatusDelivered {
		t.Fatalf("activity status = %q, want delivered", last.Status)
	}
	if last.Metadata["strategy"] != StrategyWithMessage {
		t.Fatalf("metadata = %v, want strategy recorded", last.Metadata)
	}
}

func TestExecuteMessageWaitsForAcceptance(t *testing.T) {
	tenantID := uuid.New()
	campaign := testCampaign(tenantID)
	lead := testLead(tenantID, "alice")
	lead.CampaignID = campaign.ID

	f := newExecutorFixture(lead)
	f.checker.accepted = false

	step := &repository.Step{
		ID: uuid.New(), CampaignID: campaign.ID, Order: 2,
		Type: repository.StepLinkedInMessage, Config: map[string]any{"message": "Hi {{first_name}}"},
	}
	outcome := f.executor.Execute(context.Background(), campaign, step, lead)

	if !outcome.Skipped || outcome.Reason != ReasonWaitingAcceptance {
		t.Fatalf("outcome = %+v, want waiting_acceptance skip", outcome)
	}
	if outcome.Terminal() {
		t.Fatal("waiting for acceptance is not terminal")
	}
	if len(f.linkedin.messages) != 0 {
		t.Fatalf("message was sent: %v", f.linkedin.messages)
	}
	if f.ledger.last().Status != activity.StatusSkipped {
		t.Fatalf("activity status = %q, want skipped", f.ledger.last().Status)
	}
}

func TestExecuteMessageSendsOnceAccepted(t *testing.T) {
	tenantID := uuid.New()
	campaign := testCampaign(tenantID)
	lead := testLead(tenantID, "alice")
	lead.CampaignID = campaign.ID

	f := newExecutorFixture(lead)
	f.checker.accepted = true

	step := &repository.Step{
		ID: uuid.New(), CampaignID: campaign.ID, Order: 2,
		Type: repository.StepLinkedInMessage, Config: map[string]any{"message": "Hi {{first_name}}"},
	}
	outcome := f.executor.Execute(context.Background(), campaign, step, lead)

	if !outcome.OK {
		t.Fatalf("outcome = %+v, want success", outcome)
	}
	if len(f.linkedin.messages) != 1 || f.linkedin.messages[0] != "Hi Alice" {
		t.Fatalf("messages = %v, want rendered greeting", f.linkedin.messages)
	}
	if f.ledger.last().Status != activity.StatusDelivered {
		t.Fatalf("activity status = %q, want delivered", f.ledger.last().Status)
	}
}

func TestExecuteVisitHarvestsProfile(t *testing.T) {
	tenantID := uuid.New()
	campaign := testCampaign(tenantID)
	lead := testLead(tenantID, "alice")
	lead.CampaignID = campaign.ID

	f := newExecutorFixture(lead)
	f.linkedin.profile = &unipile.Profile{
		ProviderID:    "prov-alice",
		FirstName:     "Alice",
		LastName:      "Anders",
		Headline:      "CTO at Initech",
		Summary:       "Building things.",
		PhoneNumbers:  []string{"+31612345678"},
		ContactEmails: []string{"alice@initech.example"},
	}

	step := &repository.Step{ID: uuid.New(), CampaignID: campaign.ID, Order: 1, Type: repository.StepLinkedInVisit, Config: map[string]any{}}
	outcome := f.executor.Execute(context.Background(), campaign, step, lead)

	if !outcome.OK {
		t.Fatalf("outcome = %+v, want success", outcome)
	}
	if len(f.store.harvested) != 1 || !strings.Contains(f.store.harvested[0], "+31612345678") {
		t.Fatalf("harvested = %v, want phone persisted", f.store.harvested)
	}
	if f.ledger.last().Status != activity.StatusDelivered {
		t.Fatalf("activity status = %q, want delivered", f.ledger.last().Status)
	}
}

func TestExecuteVisitTriesAlternateAccountOn401(t *testing.T) {
	tenantID := uuid.New()
	campaign := testCampaign(tenantID)
	lead := testLead(tenantID, "alice")
	lead.CampaignID = campaign.ID

	f := newExecutorFixture(lead)
	f.linkedin.profile = &unipile.Profile{ProviderID: "prov-alice", Headline: "CTO"}
	f.linkedin.profileErrs = map[string]error{
		"acc-a": provider.NewError("linkedin", provider.CategoryCredentials, 401, "session expired", nil),
	}

	step := &repository.Step{ID: uuid.New(), CampaignID: campaign.ID, Order: 1, Type: repository.StepLinkedInVisit, Config: map[string]any{}}
	outcome := f.executor.Execute(context.Background(), campaign, step, lead)

	if !outcome.OK {
		t.Fatalf("outcome = %+v, want success via alternate account", outcome)
	}
}

func TestExecuteEnrichmentGuardFailsWithoutURL(t *testing.T) {
	tenantID := uuid.New()
	campaign := testCampaign(tenantID)
	lead := testLead(tenantID, "")
	lead.CampaignID = campaign.ID

	f := newExecutorFixture(lead)

	outcome := f.executor.Execute(context.Background(), campaign, connectStep(campaign.ID, ""), lead)

	if outcome.OK {
		t.Fatal("expected failure")
	}
	if outcome.Reason != ReasonLinkedInURLMissing {
		t.Fatalf("Reason = %q, want %q", outcome.Reason, ReasonLinkedInURLMissing)
	}
	if f.enricher.calls != 1 {
		t.Fatalf("enricher calls = %d, want 1", f.enricher.calls)
	}
	if len(f.linkedin.invites) != 0 {
		t.Fatalf("provider was contacted: %v", f.linkedin.invites)
	}
}

func TestExecuteEnrichmentGuardRecoversURL(t *testing.T) {
	tenantID := uuid.New()
	campaign := testCampaign(tenantID)
	lead := testLead(tenantID, "")
	lead.CampaignID = campaign.ID

	f := newExecutorFixture(lead)
	url := "https://www.linkedin.com/in/alice"
	f.enricher.apply = func(store *fakeLeadStore) {
		store.mu.Lock()
		defer store.mu.Unlock()
		store.leads[lead.ID].EnrichedLinkedInURL = &url
	}

	outcome := f.executor.Execute(context.Background(), campaign, connectStep(campaign.ID, ""), lead)

	if !outcome.OK {
		t.Fatalf("outcome = %+v, want success after enrichment", outcome)
	}
	if len(f.linkedin.invites) != 1 {
		t.Fatalf("invites = %v, want one", f.linkedin.invites)
	}
}

func TestExecuteEmailWithoutAddressFails(t *testing.T) {
	tenantID := uuid.New()
	campaign := testCampaign(tenantID)
	lead := testLead(tenantID, "alice")
	lead.CampaignID = campaign.ID

	f := newExecutorFixture(lead)

	step := &repository.Step{
		ID: uuid.New(), CampaignID: campaign.ID, Order: 1,
		Type: repository.StepEmailSend, Config: map[string]any{"subject": "Hi", "body": "Hello {{first_name}}"},
	}
	outcome := f.executor.Execute(context.Background(), campaign, step, lead)

	if outcome.OK || outcome.Reason != ReasonEmailMissing {
		t.Fatalf("outcome = %+v, want email_missing", outcome)
	}
	if len(f.email.sent) != 0 {
		t.Fatalf("email sent: %v", f.email.sent)
	}
}

func TestExecuteEmailRendersAndSends(t *testing.T) {
	tenantID := uuid.New()
	campaign := testCampaign(tenantID)
	lead := testLead(tenantID, "alice")
	lead.CampaignID = campaign.ID
	email := "alice@initech.example"
	lead.Email = &email

	f := newExecutorFixture(lead)

	step := &repository.Step{
		ID: uuid.New(), CampaignID: campaign.ID, Order: 1,
		Type: repository.StepEmailSend, Config: map[string]any{"subject": "Hi {{first_name}}", "body": "Hello"},
	}
	outcome := f.executor.Execute(context.Background(), campaign, step, lead)

	if !outcome.OK {
		t.Fatalf("outcome = %+v, want success", outcome)
	}
	if len(f.email.sent) != 1 || f.email.sent[0] != "alice@initech.example|Hi Alice" {
		t.Fatalf("sent = %v", f.email.sent)
	}
}

func TestExecuteVoiceCallCarriesCallContext(t *testing.T) {
	tenantID := uuid.New()
	campaign := testCampaign(tenantID)
	lead := testLead(tenantID, "alice")
	lead.CampaignID = campaign.ID
	number := "+14155550123"
	lead.Phone = &number

	f := newExecutorFixture(lead)

	step := &repository.Step{
		ID: uuid.New(), CampaignID: campaign.ID, Order: 1,
		Type: repository.StepVoiceAgentCall, Config: map[string]any{
			"voiceAgentId": "agent-1",
			"voiceContext": "Mention {{company}} in the opener",
		},
	}
	outcome := f.executor.Execute(context.Background(), campaign, step, lead)

	if !outcome.OK {
		t.Fatalf("outcome = %+v, want success", outcome)
	}
	if len(f.voice.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(f.voice.calls))
	}
	call := f.voice.calls[0]
	if call.AssistantID != "agent-1" || call.ToNumber != number {
		t.Fatalf("call = %+v", call)
	}
	if call.Context != "Mention Initech in the opener" {
		t.Fatalf("call context = %q, want the rendered step context", call.Context)
	}
}

func TestExecuteInvalidStepRecordsErrorActivity(t *testing.T) {
	tenantID := uuid.New()
	campaign := testCampaign(tenantID)
	lead := testLead(tenantID, "alice")
	lead.CampaignID = campaign.ID

	f := newExecutorFixture(lead)

	step := &repository.Step{
		ID: uuid.New(), CampaignID: campaign.ID, Order: 1,
		Type: repository.StepLinkedInMessage, Config: map[string]any{},
	}
	outcome := f.executor.Execute(context.Background(), campaign, step, lead)

	if !outcome.Validation {
		t.Fatalf("outcome = %+v, want validation failure", outcome)
	}
	last := f.ledger.last()
	if last == nil || last.Status != activity.StatusError {
		t.Fatalf("ledger row = %+v, want error activity", last)
	}
}
