package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"outreach_backend/internal/campaigns/repository"
	"outreach_backend/internal/events"
	"outreach_backend/internal/sourcing"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

type fakeDB struct {
	tx *fakeTx
}

func (f *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeCampaignStore struct {
	campaign   *repository.Campaign
	lockMiss   bool
	lastRunSet *time.Time
	statusSet  []string
	execState  map[string]any
}

func (s *fakeCampaignStore) LockForRun(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*repository.Campaign, error) {
	if s.lockMiss {
		return nil, nil
	}
	return s.campaign, nil
}

func (s *fakeCampaignStore) SetLastRunDate(ctx context.Context, tx pgx.Tx, id uuid.UUID, runAt time.Time) error {
	s.lastRunSet = &runAt
	return nil
}

func (s *fakeCampaignStore) UpdateStatus(ctx context.Context, id, tenantID uuid.UUID, status string) error {
	s.statusSet = append(s.statusSet, status)
	s.campaign.Status = status
	return nil
}

func (s *fakeCampaignStore) SetExecutionState(ctx context.Context, id uuid.UUID, state map[string]any) error {
	s.execState = state
	return nil
}

type fakeSteps struct {
	steps []repository.Step
}

func (f *fakeSteps) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]repository.Step, error) {
	return f.steps, nil
}

type fakeLeads struct {
	active []repository.Lead
	counts map[string]int
}

func (f *fakeLeads) ListActive(ctx context.Context, campaignID uuid.UUID) ([]repository.Lead, error) {
	return f.active, nil
}

func (f *fakeLeads) StatusCounts(ctx context.Context, campaignID uuid.UUID) (map[string]int, error) {
	if f.counts == nil {
		return map[string]int{}, nil
	}
	return f.counts, nil
}

type fakeExecLog struct {
	entries []repository.ExecutionLogEntry
}

func (f *fakeExecLog) Record(ctx context.Context, entry *repository.ExecutionLogEntry) error {
	f.entries = append(f.entries, *entry)
	return nil
}

type fakeSourcer struct {
	result *sourcing.RunResult
	err    error
	calls  int
}

func (f *fakeSourcer) RunCampaign(ctx context.Context, campaign *repository.Campaign) (*sourcing.RunResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &sourcing.RunResult{}, nil
}

type fakeDriver struct {
	advanced []uuid.UUID
	failOn   uuid.UUID
}

func (f *fakeDriver) Advance(ctx context.Context, campaign *repository.Campaign, steps []repository.Step, lead *repository.Lead) error {
	f.advanced = append(f.advanced, lead.ID)
	if lead.ID == f.failOn {
		return errors.New("driver exploded")
	}
	return nil
}

type fakeEnqueuer struct {
	fireAts []time.Time
}

func (f *fakeEnqueuer) EnqueueDailyRun(ctx context.Context, campaignID, tenantID uuid.UUID, fireAt time.Time) error {
	f.fireAts = append(f.fireAts, fireAt)
	return nil
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

type runnerFixture struct {
	runner    *DailyRunner
	db        *fakeDB
	campaigns *fakeCampaignStore
	leads     *fakeLeads
	execlog   *fakeExecLog
	sourcer   *fakeSourcer
	driver    *fakeDriver
	enqueuer  *fakeEnqueuer
	bus       *fakeBus
}

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newRunnerFixture(campaign *repository.Campaign) *runnerFixture {
	f := &runnerFixture{
		db:        &fakeDB{},
		campaigns: &fakeCampaignStore{campaign: campaign},
		leads:     &fakeLeads{},
		execlog:   &fakeExecLog{},
		sourcer:   &fakeSourcer{},
		driver:    &fakeDriver{},
		enqueuer:  &fakeEnqueuer{},
		bus:       &fakeBus{},
	}
	f.runner = NewDailyRunner(DailyRunnerDeps{
		DB:        f.db,
		Campaigns: f.campaigns,
		Steps:     &fakeSteps{},
		Leads:     f.leads,
		ExecLog:   f.execlog,
		Sourcer:   f.sourcer,
		Driver:    f.driver,
		Enqueue:   f.enqueuer,
		Bus:       f.bus,
		Timezone:  "UTC",
		Logger:    logger.New("test"),
	})
	f.runner.now = func() time.Time { return fixedNow }
	return f
}

func runnableCampaign() *repository.Campaign {
	return &repository.Campaign{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Name:     "daily run test",
		Status:   repository.StatusRunning,
	}
}

func TestRunExecutesAndChainsNextDay(t *testing.T) {
	campaign := runnableCampaign()
	f := newRunnerFixture(campaign)
	f.leads.active = []repository.Lead{
		{ID: uuid.New(), Status: repository.LeadActive},
		{ID: uuid.New(), Status: repository.LeadActive},
	}
	f.leads.counts = map[string]int{repository.LeadActive: 2}

	if err := f.runner.Run(context.Background(), campaign.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if f.sourcer.calls != 1 {
		t.Fatalf("sourcer calls = %d, want 1", f.sourcer.calls)
	}
	if len(f.driver.advanced) != 2 {
		t.Fatalf("advanced %d leads, want 2", len(f.driver.advanced))
	}
	if f.campaigns.lastRunSet == nil || !f.campaigns.lastRunSet.Equal(fixedNow) {
		t.Fatalf("last run date = %v, want %v", f.campaigns.lastRunSet, fixedNow)
	}
	if !f.db.tx.committed {
		t.Fatal("claim transaction was not committed")
	}
	if len(f.execlog.entries) != 1 || f.execlog.entries[0].Status != repository.RunSucceeded {
		t.Fatalf("execlog = %+v, want one succeeded entry", f.execlog.entries)
	}

	wantNext := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	if len(f.enqueuer.fireAts) != 1 || !f.enqueuer.fireAts[0].Equal(wantNext) {
		t.Fatalf("next run = %v, want %v", f.enqueuer.fireAts, wantNext)
	}

	var stats bool
	for _, e := range f.bus.published {
		if _, ok := e.(events.CampaignStatsUpdated); ok {
			stats = true
		}
	}
	if !stats {
		t.Fatal("expected a stats event after the run")
	}
}

func TestRunSkipsWhenAlreadyRanToday(t *testing.T) {
	campaign := runnableCampaign()
	earlier := fixedNow.Add(-2 * time.Hour)
	campaign.LastRunDate = &earlier
	f := newRunnerFixture(campaign)

	if err := f.runner.Run(context.Background(), campaign.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.sourcer.calls != 0 {
		t.Fatal("sourcer must not run on a same-day re-invocation")
	}
	if f.campaigns.lastRunSet != nil {
		t.Fatal("last run date must not be re-stamped")
	}
	if len(f.enqueuer.fireAts) != 0 {
		t.Fatal("a skipped run must not chain a new task")
	}
}

func TestRunSkipsLockedCampaign(t *testing.T) {
	campaign := runnableCampaign()
	f := newRunnerFixture(campaign)
	f.campaigns.lockMiss = true

	if err := f.runner.Run(context.Background(), campaign.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.sourcer.calls != 0 || len(f.execlog.entries) != 0 {
		t.Fatal("a lock miss must be a no-op")
	}
}

func TestRunSkipsNonExecutableStatus(t *testing.T) {
	campaign := runnableCampaign()
	campaign.Status = repository.StatusPaused
	f := newRunnerFixture(campaign)

	if err := f.runner.Run(context.Background(), campaign.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.sourcer.calls != 0 {
		t.Fatal("paused campaigns must not execute")
	}
}

func TestRunCompletesCampaignPastEndDate(t *testing.T) {
	campaign := runnableCampaign()
	campaign.Config.EndDate = "2026-03-09"
	f := newRunnerFixture(campaign)

	if err := f.runner.Run(context.Background(), campaign.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(f.campaigns.statusSet) != 1 || f.campaigns.statusSet[0] != repository.StatusCompleted {
		t.Fatalf("status transitions = %v, want [completed]", f.campaigns.statusSet)
	}
	if f.sourcer.calls != 0 {
		t.Fatal("an ended campaign must not source leads")
	}
	if len(f.enqueuer.fireAts) != 0 {
		t.Fatal("an ended campaign must not chain a new task")
	}

	var completed bool
	for _, e := range f.bus.published {
		if _, ok := e.(events.CampaignCompleted); ok {
			completed = true
		}
	}
	if !completed {
		t.Fatal("expected a campaign completed event")
	}
}

func TestRunDoesNotChainPastEndDate(t *testing.T) {
	campaign := runnableCampaign()
	campaign.Config.EndDate = "2026-03-10"
	f := newRunnerFixture(campaign)

	if err := f.runner.Run(context.Background(), campaign.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.sourcer.calls != 1 {
		t.Fatal("the end date itself is still a run day")
	}
	if len(f.enqueuer.fireAts) != 0 {
		t.Fatalf("chained runs = %v, want none past the end date", f.enqueuer.fireAts)
	}
}

func TestRunRecordsFailureAndStillChains(t *testing.T) {
	campaign := runnableCampaign()
	f := newRunnerFixture(campaign)
	f.sourcer.err = errors.New("search provider down")

	err := f.runner.Run(context.Background(), campaign.ID)
	if err == nil {
		t.Fatal("expected the run error to propagate")
	}

	if len(f.execlog.entries) != 1 {
		t.Fatalf("execlog entries = %d, want 1", len(f.execlog.entries))
	}
	entry := f.execlog.entries[0]
	if entry.Status != repository.RunFailed || entry.Error == nil {
		t.Fatalf("entry = %+v, want a failed entry with an error message", entry)
	}
	if len(f.enqueuer.fireAts) != 1 {
		t.Fatal("a failed run must still chain the next day")
	}
}

func TestRunToleratesPerLeadFailures(t *testing.T) {
	campaign := runnableCampaign()
	f := newRunnerFixture(campaign)
	bad := uuid.New()
	f.leads.active = []repository.Lead{
		{ID: bad, Status: repository.LeadActive},
		{ID: uuid.New(), Status: repository.LeadActive},
	}
	f.driver.failOn = bad

	if err := f.runner.Run(context.Background(), campaign.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.driver.advanced) != 2 {
		t.Fatalf("advanced %d leads, want both despite the failure", len(f.driver.advanced))
	}
	if f.execlog.entries[0].Status != repository.RunSucceeded {
		t.Fatalf("run status = %s, want succeeded", f.execlog.entries[0].Status)
	}
	if f.campaigns.execState["leads_failed"] != 1 {
		t.Fatalf("execution state = %v, want leads_failed 1", f.campaigns.execState)
	}
}
