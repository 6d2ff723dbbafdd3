package enrichment

import (
	"context"

	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// Sources for an enrichment outcome.
const (
	SourceAlreadyEnriched = "already_enriched"
	SourceCrossTenantHit  = "cross_tenant_hit"
	SourceProvider        = "provider"
	SourceNone            = "none"
)

// Result is the outcome of one enrichment pass.
type Result struct {
	Email       *string
	LinkedInURL *string
	CreditsUsed int
	Source      string
	Warning     string
}

// Client resolves a person's contact details at the paid provider.
// Implemented by the Apollo adapter; kept narrow so the campaign core
// never references the provider module directly.
type Client interface {
	EnrichPerson(ctx context.Context, externalID, firstName, lastName, company string) (*PersonMatch, error)
}

// PersonMatch is a provider-side enrichment hit.
type PersonMatch struct {
	Email       string
	LinkedInURL string
	FirstName   string
	LastName    string
	CreditsUsed int
}

// Store is the repository surface the service uses.
type Store interface {
	GetLead(ctx context.Context, leadID uuid.UUID) (*LeadView, error)
	FindCachedByPerson(ctx context.Context, externalPersonID string, excludeLeadID uuid.UUID) (*CacheHit, error)
	FindCachedByIdentity(ctx context.Context, email *string, firstName, lastName, company string, excludeLeadID uuid.UUID) (*CacheHit, error)
	SaveEnrichment(ctx context.Context, leadID uuid.UUID, email, linkedinURL *string, firstName, lastName string, creditsUsed int) error
}

// Service implements the enrichment cascade: current row, cross-tenant
// cache, then the paid provider. Provider failures degrade to a warning;
// enrichment never hard-fails a step on its own.
type Service struct {
	store  Store
	client Client
	log    *logger.Logger
}

// NewService creates the enrichment service. client may be nil when no
// provider is configured; the cascade then stops after the cache.
func NewService(store Store, client Client, log *logger.Logger) *Service {
	return &Service{store: store, client: client, log: log}
}

// Enrich resolves contact details for the lead.
func (s *Service) Enrich(ctx context.Context, leadID uuid.UUID) (*Result, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	// Already enriched in this campaign: return as-is, no credits.
	if lead.EnrichedAt != nil {
		return &Result{
			Email:       lead.EnrichedEmail,
			LinkedInURL: lead.EnrichedLinkedInURL,
			Source:      SourceAlreadyEnriched,
		}, nil
	}

	hit, err := s.lookupCache(ctx, lead)
	if err != nil {
		return nil, err
	}
	if hit != nil {
		if err := s.store.SaveEnrichment(ctx, lead.ID, hit.Email, hit.LinkedInURL, hit.FirstName, hit.LastName, 0); err != nil {
			return nil, err
		}
		return &Result{
			Email:       hit.Email,
			LinkedInURL: hit.LinkedInURL,
			Source:      SourceCrossTenantHit,
		}, nil
	}

	if s.client == nil {
		return &Result{Source: SourceNone, Warning: "no enrichment provider configured"}, nil
	}

	match, err := s.client.EnrichPerson(ctx, lead.ExternalPersonID, lead.FirstName, lead.LastName, lead.CompanyName)
	if err != nil {
		s.log.Warn("enrichment provider call failed",
			"lead_id", lead.ID, "campaign_id", lead.CampaignID, "error", err)
		return &Result{Source: SourceNone, Warning: "enrichment failed: " + err.Error()}, nil
	}

	email := optional(match.Email)
	linkedinURL := optional(match.LinkedInURL)
	if email == nil && linkedinURL == nil {
		// Nothing resolved: keep enriched_at NULL so a later run may retry.
		return &Result{Source: SourceNone, Warning: "provider returned no contact details", CreditsUsed: match.CreditsUsed}, nil
	}

	if err := s.store.SaveEnrichment(ctx, lead.ID, email, linkedinURL, match.FirstName, match.LastName, match.CreditsUsed); err != nil {
		return nil, err
	}

	return &Result{
		Email:       email,
		LinkedInURL: linkedinURL,
		CreditsUsed: match.CreditsUsed,
		Source:      SourceProvider,
	}, nil
}

// lookupCache searches earlier enrichments of the same person: person-id
// match first, identity tuple second, newest enrichment wins.
func (s *Service) lookupCache(ctx context.Context, lead *LeadView) (*CacheHit, error) {
	if lead.ExternalPersonID != "" {
		hit, err := s.store.FindCachedByPerson(ctx, lead.ExternalPersonID, lead.ID)
		if err != nil {
			return nil, err
		}
		if hit != nil && usable(hit) {
			return hit, nil
		}
	}

	hit, err := s.store.FindCachedByIdentity(ctx, lead.Email, lead.FirstName, lead.LastName, lead.CompanyName, lead.ID)
	if err != nil {
		return nil, err
	}
	if hit != nil && usable(hit) {
		return hit, nil
	}
	return nil, nil
}

func usable(hit *CacheHit) bool {
	return (hit.Email != nil && *hit.Email != "") || (hit.LinkedInURL != nil && *hit.LinkedInURL != "")
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
