package scheduler

import (
	"context"
	"fmt"
	"time"

	"outreach_backend/internal/campaigns/repository"
	"outreach_backend/internal/events"
	"outreach_backend/internal/sourcing"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Beginner opens the run transaction. Satisfied by *pgxpool.Pool.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CampaignStore is the runner's view of the campaign repository.
type CampaignStore interface {
	LockForRun(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*repository.Campaign, error)
	SetLastRunDate(ctx context.Context, tx pgx.Tx, id uuid.UUID, runAt time.Time) error
	UpdateStatus(ctx context.Context, id, tenantID uuid.UUID, status string) error
	SetExecutionState(ctx context.Context, id uuid.UUID, state map[string]any) error
}

// StepStore reads the campaign's workflow.
type StepStore interface {
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]repository.Step, error)
}

// LeadStore reads the campaign's leads.
type LeadStore interface {
	ListActive(ctx context.Context, campaignID uuid.UUID) ([]repository.Lead, error)
	StatusCounts(ctx context.Context, campaignID uuid.UUID) (map[string]int, error)
}

// ExecutionLog records run outcomes.
type ExecutionLog interface {
	Record(ctx context.Context, entry *repository.ExecutionLogEntry) error
}

// Sourcer runs the campaign's daily lead generation.
type Sourcer interface {
	RunCampaign(ctx context.Context, campaign *repository.Campaign) (*sourcing.RunResult, error)
}

// LeadDriver advances one lead through the workflow.
type LeadDriver interface {
	Advance(ctx context.Context, campaign *repository.Campaign, steps []repository.Step, lead *repository.Lead) error
}

// Enqueuer schedules the next daily run. Satisfied by *Client.
type Enqueuer interface {
	EnqueueDailyRun(ctx context.Context, campaignID, tenantID uuid.UUID, fireAt time.Time) error
}

// DailyRunner executes one campaign's daily run: admission under a row
// lock, lead sourcing, advancing every active lead, and chaining the next
// day's task.
type DailyRunner struct {
	db        Beginner
	campaigns CampaignStore
	steps     StepStore
	leads     LeadStore
	execlog   ExecutionLog
	sourcer   Sourcer
	driver    LeadDriver
	enqueue   Enqueuer
	bus       events.Bus
	timezone  string
	log       *logger.Logger
	now       func() time.Time
}

// DailyRunnerDeps bundles the runner's collaborators.
type DailyRunnerDeps struct {
	DB        Beginner
	Campaigns CampaignStore
	Steps     StepStore
	Leads     LeadStore
	ExecLog   ExecutionLog
	Sourcer   Sourcer
	Driver    LeadDriver
	Enqueue   Enqueuer
	Bus       events.Bus
	Timezone  string
	Logger    *logger.Logger
}

// NewDailyRunner creates the daily run orchestrator.
func NewDailyRunner(deps DailyRunnerDeps) *DailyRunner {
	return &DailyRunner{
		db:        deps.DB,
		campaigns: deps.Campaigns,
		steps:     deps.Steps,
		leads:     deps.Leads,
		execlog:   deps.ExecLog,
		sourcer:   deps.Sourcer,
		driver:    deps.Driver,
		enqueue:   deps.Enqueue,
		bus:       deps.Bus,
		timezone:  deps.Timezone,
		log:       deps.Logger,
		now:       time.Now,
	}
}

// Run performs the campaign's daily run. Admission happens inside a short
// transaction: the row is taken with SKIP LOCKED and last_run_date is
// stamped before any work, so a concurrent worker or a retry on the same
// tenant-local day is a no-op.
func (r *DailyRunner) Run(ctx context.Context, campaignID uuid.UUID) error {
	campaign, admitted, ended, err := r.claim(ctx, campaignID)
	if err != nil {
		return err
	}
	if ended {
		return r.complete(ctx, campaign)
	}
	if !admitted {
		return nil
	}

	loc := campaign.Location(r.timezone)
	now := r.now().In(loc)

	runErr := r.execute(ctx, campaign, now)
	if runErr != nil {
		r.recordRun(ctx, campaign.ID, now, repository.RunFailed, runErr)
	} else {
		r.recordRun(ctx, campaign.ID, now, repository.RunSucceeded, nil)
		r.publishStats(ctx, campaign)
	}

	// The next-day task is chained even after a failed run, otherwise the
	// campaign would stall until a manual restart.
	r.scheduleNext(ctx, campaign, now, loc)
	return runErr
}

// claim admits the run: it locks the row, applies the eligibility checks,
// and stamps last_run_date. The returned campaign is non-nil whenever the
// row was loaded, even for skipped runs.
func (r *DailyRunner) claim(ctx context.Context, campaignID uuid.UUID) (campaign *repository.Campaign, admitted, ended bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, false, fmt.Errorf("failed to begin run transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	campaign, err = r.campaigns.LockForRun(ctx, tx, campaignID)
	if err != nil {
		return nil, false, false, err
	}
	if campaign == nil {
		r.log.Info("daily run skipped: campaign locked by another worker or missing", "campaign_id", campaignID)
		return nil, false, false, nil
	}
	if campaign.IsDeleted || !repository.IsExecutable(campaign.Status) {
		r.log.Info("daily run skipped: campaign not executable",
			"campaign_id", campaignID, "status", campaign.Status)
		return campaign, false, false, nil
	}

	loc := campaign.Location(r.timezone)
	now := r.now().In(loc)
	if campaign.LastRunDate != nil && sameDay(campaign.LastRunDate.In(loc), now) {
		r.log.Info("daily run skipped: already ran today", "campaign_id", campaignID)
		return campaign, false, false, nil
	}

	if end := campaign.EndDate(loc); end != nil && startOfDay(now).After(*end) {
		return campaign, false, true, nil
	}

	if err := r.campaigns.SetLastRunDate(ctx, tx, campaignID, now); err != nil {
		return nil, false, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, false, fmt.Errorf("failed to commit run claim: %w", err)
	}
	return campaign, true, false, nil
}

// complete transitions a campaign past its end date to completed. No next
// task is enqueued.
func (r *DailyRunner) complete(ctx context.Context, campaign *repository.Campaign) error {
	if err := r.campaigns.UpdateStatus(ctx, campaign.ID, campaign.TenantID, repository.StatusCompleted); err != nil {
		return err
	}
	r.log.WithCampaignID(campaign.ID.String()).Info("campaign reached its end date")

	if r.bus != nil {
		r.bus.Publish(ctx, events.CampaignCompleted{
			BaseEvent:  events.NewBaseEvent(),
			CampaignID: campaign.ID,
			TenantID:   campaign.TenantID,
		})
	}
	return nil
}

// execute sources today's leads and advances every active lead. A sourcing
// error fails the run; per-lead errors are logged and counted but do not
// abort the remaining leads.
func (r *DailyRunner) execute(ctx context.Context, campaign *repository.Campaign, now time.Time) error {
	sourced, err := r.sourcer.RunCampaign(ctx, campaign)
	if err != nil {
		return fmt.Errorf("lead sourcing failed: %w", err)
	}

	steps, err := r.steps.ListByCampaign(ctx, campaign.ID)
	if err != nil {
		return err
	}
	leads, err := r.leads.ListActive(ctx, campaign.ID)
	if err != nil {
		return err
	}

	var failed int
	for i := range leads {
		if err := r.driver.Advance(ctx, campaign, steps, &leads[i]); err != nil {
			failed++
			r.log.Error("failed to advance lead",
				"campaign_id", campaign.ID, "lead_id", leads[i].ID, "error", err)
		}
	}

	state := map[string]any{
		"last_run_at":     now.UTC().Format(time.RFC3339),
		"leads_sourced":   sourced.Inserted,
		"leads_processed": len(leads),
		"leads_failed":    failed,
	}
	if err := r.campaigns.SetExecutionState(ctx, campaign.ID, state); err != nil {
		r.log.Warn("failed to store execution state", "campaign_id", campaign.ID, "error", err)
	}
	return nil
}

func (r *DailyRunner) recordRun(ctx context.Context, campaignID uuid.UUID, runAt time.Time, status string, runErr error) {
	entry := &repository.ExecutionLogEntry{
		CampaignID: campaignID,
		RunDate:    runAt,
		Status:     status,
	}
	if runErr != nil {
		msg := runErr.Error()
		entry.Error = &msg
	}
	if err := r.execlog.Record(ctx, entry); err != nil {
		r.log.Error("failed to record run outcome", "campaign_id", campaignID, "error", err)
	}
}

func (r *DailyRunner) publishStats(ctx context.Context, campaign *repository.Campaign) {
	if r.bus == nil {
		return
	}
	counts, err := r.leads.StatusCounts(ctx, campaign.ID)
	if err != nil {
		r.log.Warn("failed to count leads for stats", "campaign_id", campaign.ID, "error", err)
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	r.bus.Publish(ctx, events.CampaignStatsUpdated{
		BaseEvent:      events.NewBaseEvent(),
		CampaignID:     campaign.ID,
		TenantID:       campaign.TenantID,
		TotalLeads:     total,
		ActiveLeads:    counts[repository.LeadActive],
		CompletedLeads: counts[repository.LeadCompleted],
		FailedLeads:    counts[repository.LeadError],
	})
}

// scheduleNext chains tomorrow's run at tenant-local midnight, unless that
// day is past the campaign's end date.
func (r *DailyRunner) scheduleNext(ctx context.Context, campaign *repository.Campaign, now time.Time, loc *time.Location) {
	if r.enqueue == nil {
		return
	}
	tomorrow := startOfDay(now).AddDate(0, 0, 1)
	if end := campaign.EndDate(loc); end != nil && tomorrow.After(*end) {
		r.log.Info("no further runs scheduled: end date reached",
			"campaign_id", campaign.ID, "end_date", campaign.Config.EndDate)
		return
	}
	if err := r.enqueue.EnqueueDailyRun(ctx, campaign.ID, campaign.TenantID, tomorrow); err != nil {
		r.log.Error("failed to enqueue next daily run", "campaign_id", campaign.ID, "error", err)
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
