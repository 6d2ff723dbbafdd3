package enrichment

import (
	"context"
	"errors"
	"testing"
	"time"

	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	lead        *LeadView
	personHit   *CacheHit
	identityHit *CacheHit
	saved       []savedEnrichment
}

type savedEnrichment struct {
	email, linkedinURL *string
	credits            int
}

func (f *fakeStore) GetLead(ctx context.Context, leadID uuid.UUID) (*LeadView, error) {
	return f.lead, nil
}

func (f *fakeStore) FindCachedByPerson(ctx context.Context, externalPersonID string, excludeLeadID uuid.UUID) (*CacheHit, error) {
	return f.personHit, nil
}

func (f *fakeStore) FindCachedByIdentity(ctx context.Context, email *string, firstName, lastName, company string, excludeLeadID uuid.UUID) (*CacheHit, error) {
	return f.identityHit, nil
}

func (f *fakeStore) SaveEnrichment(ctx context.Context, leadID uuid.UUID, email, linkedinURL *string, firstName, lastName string, creditsUsed int) error {
	f.saved = append(f.saved, savedEnrichment{email: email, linkedinURL: linkedinURL, credits: creditsUsed})
	return nil
}

type fakeClient struct {
	match *PersonMatch
	err   error
	calls int
}

func (f *fakeClient) EnrichPerson(ctx context.Context, externalID, firstName, lastName, company string) (*PersonMatch, error) {
	f.calls++
	return f.match, f.err
}

func str(s string) *string { return &s }

func baseLead() *LeadView {
	return &LeadView{
		ID:               uuid.New(),
		CampaignID:       uuid.New(),
		TenantID:         uuid.New(),
		ExternalPersonID: "apollo-123",
		FirstName:        "Alice",
		LastName:         "Jansen",
		CompanyName:      "Acme",
	}
}

func TestEnrichReturnsExistingWithoutProviderCall(t *testing.T) {
	now := time.Now()
	lead := baseLead()
	lead.EnrichedAt = &now
	lead.EnrichedEmail = str("alice@acme.example")

	client := &fakeClient{}
	svc := NewService(&fakeStore{lead: lead}, client, logger.New("test"))

	result, err := svc.Enrich(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Source != SourceAlreadyEnriched {
		t.Fatalf("source = %s, want already_enriched", result.Source)
	}
	if client.calls != 0 {
		t.Fatal("provider must not be called for an enriched lead")
	}
}

func TestEnrichCrossTenantHitUsesNoCredits(t *testing.T) {
	lead := baseLead()
	store := &fakeStore{
		lead: lead,
		personHit: &CacheHit{
			Email:       str("alice@acme.example"),
			LinkedInURL: str("https://www.linkedin.com/in/alice"),
			EnrichedAt:  time.Now(),
		},
	}
	client := &fakeClient{}
	svc := NewService(store, client, logger.New("test"))

	result, err := svc.Enrich(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Source != SourceCrossTenantHit {
		t.Fatalf("source = %s, want cross_tenant_hit", result.Source)
	}
	if result.CreditsUsed != 0 {
		t.Fatalf("credits = %d, want 0", result.CreditsUsed)
	}
	if client.calls != 0 {
		t.Fatal("provider must not be called on a cache hit")
	}
	if len(store.saved) != 1 || store.saved[0].credits != 0 {
		t.Fatal("cache hit must persist with zero credits")
	}
}

func TestEnrichFallsBackToProvider(t *testing.T) {
	lead := baseLead()
	store := &fakeStore{lead: lead}
	client := &fakeClient{match: &PersonMatch{
		Email:       "alice@acme.example",
		LinkedInURL: "https://www.linkedin.com/in/alice",
		CreditsUsed: 1,
	}}
	svc := NewService(store, client, logger.New("test"))

	result, err := svc.Enrich(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Source != SourceProvider {
		t.Fatalf("source = %s, want provider", result.Source)
	}
	if result.CreditsUsed != 1 {
		t.Fatalf("credits = %d, want 1", result.CreditsUsed)
	}
	if len(store.saved) != 1 || store.saved[0].credits != 1 {
		t.Fatal("provider result must persist with its credits")
	}
}

func TestEnrichProviderFailureIsSoft(t *testing.T) {
	lead := baseLead()
	store := &fakeStore{lead: lead}
	client := &fakeClient{err: errors.New("upstream 500")}
	svc := NewService(store, client, logger.New("test"))

	result, err := svc.Enrich(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("provider failure must not become a hard error, got %v", err)
	}
	if result.Warning == "" {
		t.Fatal("expected a warning on provider failure")
	}
	if len(store.saved) != 0 {
		t.Fatal("nothing must persist on provider failure")
	}
}

func TestEnrichEmptyMatchLeavesLeadUnenriched(t *testing.T) {
	lead := baseLead()
	store := &fakeStore{lead: lead}
	client := &fakeClient{match: &PersonMatch{CreditsUsed: 1}}
	svc := NewService(store, client, logger.New("test"))

	result, err := svc.Enrich(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Source != SourceNone {
		t.Fatalf("source = %s, want none", result.Source)
	}
	// enriched_at must stay NULL when neither email nor URL resolved.
	if len(store.saved) != 0 {
		t.Fatal("empty match must not persist enrichment")
	}
}

func TestEnrichIdentityFallbackWhenPersonMisses(t *testing.T) {
	lead := baseLead()
	lead.Email = str("alice@acme.example")
	store := &fakeStore{
		lead: lead,
		identityHit: &CacheHit{
			LinkedInURL: str("https://www.linkedin.com/in/alice"),
			EnrichedAt:  time.Now(),
		},
	}
	svc := NewService(store, &fakeClient{}, logger.New("test"))

	result, err := svc.Enrich(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Source != SourceCrossTenantHit {
		t.Fatalf("source = %s, want cross_tenant_hit", result.Source)
	}
}
