// Package service implements the campaign lifecycle operations behind the
// HTTP API: CRUD, the start/pause/stop state machine, and read models for
// leads, activities, steps, stats, and run history.
package service

import (
	"context"
	"time"

	"outreach_backend/internal/activity"
	"outreach_backend/internal/campaigns/repository"
	"outreach_backend/internal/campaigns/transport"
	"outreach_backend/internal/events"
	"outreach_backend/internal/workflow"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// RunScheduler enqueues a campaign's daily run on the task queue.
// Implemented by the scheduler client; kept as an interface so the
// campaigns module never depends on the queue implementation.
type RunScheduler interface {
	EnqueueDailyRun(ctx context.Context, campaignID, tenantID uuid.UUID, fireAt time.Time) error
}

// Service orchestrates campaign operations.
type Service struct {
	campaigns *repository.CampaignRepository
	steps     *repository.StepRepository
	leads     *repository.LeadRepository
	execLog   *repository.ExecutionLogRepository
	ledger    *activity.Repository
	validator *workflow.Validator
	scheduler RunScheduler
	bus       events.Bus
	log       *logger.Logger
}

// New creates the campaigns service.
func New(
	campaigns *repository.CampaignRepository,
	steps *repository.StepRepository,
	leads *repository.LeadRepository,
	execLog *repository.ExecutionLogRepository,
	ledger *activity.Repository,
	validator *workflow.Validator,
	scheduler RunScheduler,
	bus events.Bus,
	log *logger.Logger,
) *Service {
	return &Service{
		campaigns: campaigns,
		steps:     steps,
		leads:     leads,
		execLog:   execLog,
		ledger:    ledger,
		validator: validator,
		scheduler: scheduler,
		bus:       bus,
		log:       log,
	}
}

// List returns the tenant's campaigns, filtered and paged.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, params repository.ListParams) (*transport.CampaignListResponse, error) {
	campaigns, total, err := s.campaigns.List(ctx, tenantID, params)
	if err != nil {
		return nil, err
	}

	responses := make([]transport.CampaignResponse, 0, len(campaigns))
	for i := range campaigns {
		responses = append(responses, toCampaignResponse(&campaigns[i]))
	}

	return &transport.CampaignListResponse{
		Campaigns: responses,
		Pagination: transport.Pagination{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	}, nil
}

// Get returns one campaign.
func (s *Service) Get(ctx context.Context, id, tenantID uuid.UUID) (*transport.CampaignResponse, error) {
	campaign, err := s.campaigns.GetByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}
	resp := toCampaignResponse(campaign)
	return &resp, nil
}

// Create inserts a campaign, optionally with its workflow steps.
func (s *Service) Create(ctx context.Context, tenantID, userID uuid.UUID, req transport.CreateCampaignRequest) (*transport.CampaignResponse, error) {
	campaign := &repository.Campaign{
		TenantID:        tenantID,
		Name:            req.Name,
		Status:          repository.StatusDraft,
		Config:          req.Config,
		CreatedByUserID: userID,
	}
	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, err
	}

	if len(req.Steps) > 0 {
		if err := s.replaceSteps(ctx, campaign.ID, req.Steps); err != nil {
			return nil, err
		}
	}

	s.publishListUpdated(ctx, tenantID, campaign.ID, campaign.Status)
	resp := toCampaignResponse(campaign)
	return &resp, nil
}

// Update persists name and config changes.
func (s *Service) Update(ctx context.Context, id, tenantID uuid.UUID, req transport.UpdateCampaignRequest) (*transport.CampaignResponse, error) {
	campaign, err := s.campaigns.GetByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	// Lead-gen bookkeeping is owned by the sourcer; never let an API
	// update rewind it.
	req.Config.LeadGenOffset = campaign.Config.LeadGenOffset
	req.Config.LastLeadGenDate = campaign.Config.LastLeadGenDate

	campaign.Name = req.Name
	campaign.Config = req.Config
	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return nil, err
	}

	resp := toCampaignResponse(campaign)
	return &resp, nil
}

// Delete soft-deletes the campaign.
func (s *Service) Delete(ctx context.Context, id, tenantID uuid.UUID) error {
	if err := s.campaigns.SoftDelete(ctx, id, tenantID); err != nil {
		return err
	}
	s.publishListUpdated(ctx, tenantID, id, repository.StatusStopped)
	return nil
}

// Start transitions draft|paused → running and enqueues the first daily run.
func (s *Service) Start(ctx context.Context, id, tenantID uuid.UUID) (*transport.CampaignResponse, error) {
	campaign, err := s.campaigns.GetByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	switch campaign.Status {
	case repository.StatusDraft, repository.StatusPaused:
		// allowed
	case repository.StatusRunning, repository.StatusActive:
		return nil, apperr.Conflict("campaign is already running")
	default:
		return nil, apperr.Conflict("campaign cannot be started from status " + campaign.Status)
	}

	if err := s.campaigns.UpdateStatus(ctx, id, tenantID, repository.StatusRunning); err != nil {
		return nil, err
	}
	campaign.Status = repository.StatusRunning

	if s.scheduler != nil {
		if err := s.scheduler.EnqueueDailyRun(ctx, id, tenantID, time.Now()); err != nil {
			// The campaign is running either way; the next poll or manual
			// run picks it up. Surface in logs only.
			s.log.Warn("failed to enqueue daily run on start", "campaign_id", id, "error", err)
		}
	}

	s.publishListUpdated(ctx, tenantID, id, campaign.Status)
	resp := toCampaignResponse(campaign)
	return &resp, nil
}

// Pause transitions running → paused.
func (s *Service) Pause(ctx context.Context, id, tenantID uuid.UUID) (*transport.CampaignResponse, error) {
	return s.transition(ctx, id, tenantID, repository.StatusPaused, func(status string) bool {
		return repository.IsExecutable(status)
	})
}

// Stop transitions running|paused → stopped.
func (s *Service) Stop(ctx context.Context, id, tenantID uuid.UUID) (*transport.CampaignResponse, error) {
	return s.transition(ctx, id, tenantID, repository.StatusStopped, func(status string) bool {
		return repository.IsExecutable(status) || status == repository.StatusPaused
	})
}

func (s *Service) transition(ctx context.Context, id, tenantID uuid.UUID, target string, allowed func(string) bool) (*transport.CampaignResponse, error) {
	campaign, err := s.campaigns.GetByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}
	if !allowed(campaign.Status) {
		return nil, apperr.Conflict("campaign cannot transition from " + campaign.Status + " to " + target)
	}

	if err := s.campaigns.UpdateStatus(ctx, id, tenantID, target); err != nil {
		return nil, err
	}
	campaign.Status = target

	s.publishListUpdated(ctx, tenantID, id, target)
	resp := toCampaignResponse(campaign)
	return &resp, nil
}

// Stats aggregates the campaign's lead counters and publishes the result
// so realtime subscribers converge on the same numbers.
func (s *Service) Stats(ctx context.Context, id, tenantID uuid.UUID) (*transport.StatsResponse, error) {
	if _, err := s.campaigns.GetByID(ctx, id, tenantID); err != nil {
		return nil, err
	}

	counts, err := s.leads.StatusCounts(ctx, id)
	if err != nil {
		return nil, err
	}

	stats := &transport.StatsResponse{
		ActiveLeads:    counts[repository.LeadActive],
		CompletedLeads: counts[repository.LeadCompleted],
		StoppedLeads:   counts[repository.LeadStopped],
		ErrorLeads:     counts[repository.LeadError],
	}
	for _, n := range counts {
		stats.TotalLeads += n
	}
	return stats, nil
}

// Leads returns the campaign's leads, paged.
func (s *Service) Leads(ctx context.Context, id, tenantID uuid.UUID, page, limit int) (*transport.LeadListResponse, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}

	leads, total, err := s.leads.ListByCampaign(ctx, id, tenantID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	responses := make([]transport.LeadResponse, 0, len(leads))
	for i := range leads {
		responses = append(responses, toLeadResponse(&leads[i]))
	}

	return &transport.LeadListResponse{
		Leads:      responses,
		Pagination: transport.Pagination{Page: page, Limit: limit, Total: total},
	}, nil
}

// Activities returns the campaign's activity feed, newest first.
func (s *Service) Activities(ctx context.Context, id, tenantID uuid.UUID, limit, offset int) ([]transport.ActivityResponse, error) {
	activities, err := s.ledger.ListByCampaign(ctx, id, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}

	responses := make([]transport.ActivityResponse, 0, len(activities))
	for i := range activities {
		a := &activities[i]
		responses = append(responses, transport.ActivityResponse{
			ID:             a.ID,
			CampaignLeadID: a.CampaignLeadID,
			StepID:         a.StepID,
			StepType:       a.StepType,
			ActionType:     a.ActionType,
			Channel:        a.Channel,
			Status:         a.Status,
			MessageContent: a.MessageContent,
			ErrorMessage:   a.ErrorMessage,
			Metadata:       a.Metadata,
			CreatedAt:      a.CreatedAt,
		})
	}
	return responses, nil
}

// Steps returns the campaign's workflow in order.
func (s *Service) Steps(ctx context.Context, id, tenantID uuid.UUID) ([]transport.StepResponse, error) {
	if _, err := s.campaigns.GetByID(ctx, id, tenantID); err != nil {
		return nil, err
	}

	steps, err := s.steps.ListByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	responses := make([]transport.StepResponse, 0, len(steps))
	for _, step := range steps {
		responses = append(responses, transport.StepResponse{
			ID:     step.ID,
			Order:  step.Order,
			Type:   step.Type,
			Title:  step.Title,
			Config: step.Config,
		})
	}
	return responses, nil
}

// ReplaceSteps swaps the campaign's workflow. Each non-synthetic step must
// pass config validation before anything is written.
func (s *Service) ReplaceSteps(ctx context.Context, id, tenantID uuid.UUID, req transport.ReplaceStepsRequest) error {
	if _, err := s.campaigns.GetByID(ctx, id, tenantID); err != nil {
		return err
	}
	return s.replaceSteps(ctx, id, req.Steps)
}

func (s *Service) replaceSteps(ctx context.Context, campaignID uuid.UUID, reqs []transport.StepRequest) error {
	steps := make([]repository.Step, 0, len(reqs))
	seenOrders := make(map[int]bool, len(reqs))

	for _, req := range reqs {
		if seenOrders[req.Order] {
			return apperr.Validation("duplicate step order").WithDetails(map[string]any{"order": req.Order})
		}
		seenOrders[req.Order] = true

		step := repository.Step{
			CampaignID: campaignID,
			Order:      req.Order,
			Type:       req.Type,
			Title:      req.Title,
			Config:     req.Config,
		}
		if result := s.validator.Validate(&step); !result.Valid {
			return apperr.Validation(result.Error).WithDetails(map[string]any{
				"order":         req.Order,
				"type":          req.Type,
				"missingFields": result.MissingFields,
			})
		}
		steps = append(steps, step)
	}

	return s.steps.Replace(ctx, campaignID, steps)
}

// ExecutionLog returns the campaign's run history.
func (s *Service) ExecutionLog(ctx context.Context, id, tenantID uuid.UUID, limit int) ([]transport.ExecutionLogResponse, error) {
	if _, err := s.campaigns.GetByID(ctx, id, tenantID); err != nil {
		return nil, err
	}

	entries, err := s.execLog.ListByCampaign(ctx, id, limit)
	if err != nil {
		return nil, err
	}

	responses := make([]transport.ExecutionLogResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, transport.ExecutionLogResponse{
			ID:        e.ID,
			RunDate:   e.RunDate,
			Status:    e.Status,
			Error:     e.Error,
			CreatedAt: e.CreatedAt,
		})
	}
	return responses, nil
}

func (s *Service) publishListUpdated(ctx context.Context, tenantID, campaignID uuid.UUID, status string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.CampaignsListUpdated{
		BaseEvent:  events.NewBaseEvent(),
		TenantID:   tenantID,
		CampaignID: campaignID,
		Status:     status,
	})
}

func toCampaignResponse(c *repository.Campaign) transport.CampaignResponse {
	return transport.CampaignResponse{
		ID:             c.ID,
		Name:           c.Name,
		Status:         c.Status,
		Config:         c.Config,
		ExecutionState: c.ExecutionState,
		LastRunDate:    c.LastRunDate,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func toLeadResponse(l *repository.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:                  l.ID,
		ExternalPersonID:    l.ExternalPersonID,
		FirstName:           l.FirstName,
		LastName:            l.LastName,
		Title:               l.Title,
		CompanyName:         l.CompanyName,
		Email:               l.Email,
		LinkedInURL:         l.LinkedInURL,
		Status:              l.Status,
		CurrentStepOrder:    l.CurrentStepOrder,
		EnrichedEmail:       l.EnrichedEmail,
		EnrichedLinkedInURL: l.EnrichedLinkedInURL,
		EnrichedAt:          l.EnrichedAt,
		CreatedAt:           l.CreatedAt,
	}
}
