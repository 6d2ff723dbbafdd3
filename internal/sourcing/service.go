// Package sourcing implements the daily lead-generation pipeline: paged
// provider search behind a local cache, per-campaign offset bookkeeping,
// and duplicate-suppressed inserts.
package sourcing

import (
	"context"
	"fmt"
	"time"

	"outreach_backend/internal/activity"
	"outreach_backend/internal/campaigns/repository"
	"outreach_backend/internal/provider/apollo"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

const defaultLeadsPerDay = 50

// SearchClient runs one paged people search. Implemented by the Apollo
// client.
type SearchClient interface {
	Search(ctx context.Context, filters apollo.SearchFilters, page, perPage int) ([]apollo.Person, error)
}

// PageCache serves previously fetched search pages.
type PageCache interface {
	Get(ctx context.Context, key string, page int) ([]apollo.Person, bool)
	Put(ctx context.Context, key string, page int, people []apollo.Person) error
}

// StepStore reads the campaign's workflow.
type StepStore interface {
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]repository.Step, error)
}

// LeadStore inserts sourced leads.
type LeadStore interface {
	Insert(ctx context.Context, l *repository.Lead) (bool, error)
}

// ConfigStore persists the campaign's lead-gen bookkeeping.
type ConfigStore interface {
	GetAny(ctx context.Context, id uuid.UUID) (*repository.Campaign, error)
	UpdateConfig(ctx context.Context, id uuid.UUID, config repository.CampaignConfig) error
}

// Ledger records the run summary activity.
type Ledger interface {
	Record(ctx context.Context, a *activity.Activity) (uuid.UUID, error)
}

// RunResult summarizes one sourcing run.
type RunResult struct {
	Skipped    bool
	SkipReason string
	Requested  int
	Fetched    int
	Inserted   int
	Duplicates int
	NewOffset  int
}

// Service is the lead sourcer.
type Service struct {
	campaigns ConfigStore
	steps     StepStore
	leads     LeadStore
	ledger    Ledger
	search    SearchClient
	cache     PageCache
	fallback  string
	log       *logger.Logger
	now       func() time.Time
}

// New creates the sourcing service. fallbackTZ resolves "today" for
// campaigns without their own timezone.
func New(campaigns ConfigStore, steps StepStore, leads LeadStore, ledger Ledger, search SearchClient, cache PageCache, fallbackTZ string, log *logger.Logger) *Service {
	return &Service{
		campaigns: campaigns,
		steps:     steps,
		leads:     leads,
		ledger:    ledger,
		search:    search,
		cache:     cache,
		fallback:  fallbackTZ,
		log:       log,
		now:       time.Now,
	}
}

// Run loads the campaign and sources its daily batch. Satisfies the
// executor's lead-generation port.
func (s *Service) Run(ctx context.Context, campaignID uuid.UUID) error {
	campaign, err := s.campaigns.GetAny(ctx, campaignID)
	if err != nil {
		return err
	}
	_, err = s.RunCampaign(ctx, campaign)
	return err
}

// RunCampaign sources today's batch for the campaign. Re-invocation on the
// same tenant-local day is a no-op.
func (s *Service) RunCampaign(ctx context.Context, campaign *repository.Campaign) (*RunResult, error) {
	steps, err := s.steps.ListByCampaign(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}

	var genStep *repository.Step
	for i := range steps {
		if steps[i].Type == repository.StepLeadGeneration {
			genStep = &steps[i]
			break
		}
	}
	if genStep == nil {
		return &RunResult{Skipped: true, SkipReason: "no_lead_generation_step"}, nil
	}

	leadsPerDay := s.leadsPerDay(campaign, genStep)
	if leadsPerDay <= 0 {
		return nil, apperr.Validation("leads_per_day must be positive")
	}

	today := s.now().In(campaign.Location(s.fallback)).Format("2006-01-02")
	if campaign.Config.LastLeadGenDate == today {
		return &RunResult{Skipped: true, SkipReason: "already_ran_today"}, nil
	}

	offset := campaign.Config.LeadGenOffset
	filters := filtersFromStep(genStep)
	candidates, err := s.fetchCandidates(ctx, filters, offset, leadsPerDay)
	if err != nil {
		return nil, err
	}

	var inserted, duplicates int
	var firstLeadID uuid.UUID
	for i := range candidates {
		lead := leadFromPerson(campaign, &candidates[i])
		ok, err := s.leads.Insert(ctx, lead)
		if err != nil {
			return nil, err
		}
		if !ok {
			duplicates++
			continue
		}
		if firstLeadID == uuid.Nil {
			firstLeadID = lead.ID
		}
		inserted++
	}

	campaign.Config.LeadGenOffset = offset + inserted
	campaign.Config.LastLeadGenDate = today
	if err := s.campaigns.UpdateConfig(ctx, campaign.ID, campaign.Config); err != nil {
		return nil, err
	}

	result := &RunResult{
		Requested:  leadsPerDay,
		Fetched:    len(candidates),
		Inserted:   inserted,
		Duplicates: duplicates,
		NewOffset:  campaign.Config.LeadGenOffset,
	}

	if inserted > 0 {
		s.recordSummary(ctx, campaign, genStep, firstLeadID, result)
	}

	s.log.Info("lead sourcing run finished",
		"campaign_id", campaign.ID, "inserted", inserted, "duplicates", duplicates, "offset", result.NewOffset)
	return result, nil
}

// fetchCandidates walks provider pages starting at the campaign's offset,
// serving each page from the cache when fresh, until the daily batch is
// filled or the result set ends.
func (s *Service) fetchCandidates(ctx context.Context, filters apollo.SearchFilters, offset, want int) ([]apollo.Person, error) {
	key := FiltersKey(filters)
	page := offset/apollo.PageSize + 1
	skip := offset % apollo.PageSize

	var candidates []apollo.Person
	for len(candidates) < want {
		people, hit := s.cache.Get(ctx, key, page)
		if !hit {
			var err error
			people, err = s.search.Search(ctx, filters, page, apollo.PageSize)
			if err != nil {
				return nil, err
			}
			if err := s.cache.Put(ctx, key, page, people); err != nil {
				s.log.Warn("failed to cache search page", "page", page, "error", err)
			}
		}
		if len(people) == 0 {
			break
		}

		if skip > 0 {
			if skip >= len(people) {
				skip -= len(people)
				page++
				continue
			}
			people = people[skip:]
			skip = 0
		}

		candidates = append(candidates, people...)
		if len(people) < apollo.PageSize {
			break
		}
		page++
	}

	if len(candidates) > want {
		candidates = candidates[:want]
	}
	return candidates, nil
}

// leadsPerDay resolves the daily batch size: campaign config wins over the
// step config, which wins over the default.
func (s *Service) leadsPerDay(campaign *repository.Campaign, step *repository.Step) int {
	if campaign.Config.LeadsPerDay != nil {
		return *campaign.Config.LeadsPerDay
	}
	for _, key := range []string{"leads_per_day", "leadGenerationLimit"} {
		if v, ok := step.Config[key].(float64); ok {
			return int(v)
		}
		if v, ok := step.Config[key].(int); ok {
			return v
		}
	}
	return defaultLeadsPerDay
}

func (s *Service) recordSummary(ctx context.Context, campaign *repository.Campaign, step *repository.Step, firstLeadID uuid.UUID, result *RunResult) {
	message := fmt.Sprintf("sourced %d new leads", result.Inserted)
	_, err := s.ledger.Record(ctx, &activity.Activity{
		TenantID:       campaign.TenantID,
		CampaignID:     campaign.ID,
		CampaignLeadID: firstLeadID,
		StepID:         step.ID,
		StepType:       repository.StepLeadGeneration,
		ActionType:     repository.StepLeadGeneration,
		Channel:        "system",
		Status:         activity.StatusSent,
		MessageContent: &message,
		Metadata: map[string]any{
			"requested":  result.Requested,
			"fetched":    result.Fetched,
			"inserted":   result.Inserted,
			"duplicates": result.Duplicates,
			"offset":     result.NewOffset,
		},
	})
	if err != nil {
		s.log.Warn("failed to record sourcing summary", "campaign_id", campaign.ID, "error", err)
	}
}

func filtersFromStep(step *repository.Step) apollo.SearchFilters {
	var filters apollo.SearchFilters
	raw, ok := step.Config["leadGenerationFilters"].(map[string]any)
	if !ok {
		return filters
	}
	filters.Titles = stringSlice(raw["roles"])
	filters.Industries = stringSlice(raw["industries"])
	filters.Locations = stringSlice(raw["location"])
	if kw, ok := raw["keywords"].(string); ok {
		filters.Keywords = kw
	}
	return filters
}

func stringSlice(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

func leadFromPerson(campaign *repository.Campaign, person *apollo.Person) *repository.Lead {
	lead := &repository.Lead{
		CampaignID:       campaign.ID,
		TenantID:         campaign.TenantID,
		ExternalPersonID: person.ID,
		FirstName:        person.FirstName,
		LastName:         person.LastName,
		Title:            person.Title,
		CompanyName:      person.Organization.Name,
		Industry:         person.Organization.Industry,
		Status:           repository.LeadActive,
		Snapshot: map[string]any{
			"city":    person.City,
			"country": person.Country,
			"website": person.Organization.Website,
		},
	}
	if person.Email != "" {
		email := person.Email
		lead.Email = &email
	}
	if person.LinkedInURL != "" {
		url := person.LinkedInURL
		lead.LinkedInURL = &url
	}
	return lead
}
