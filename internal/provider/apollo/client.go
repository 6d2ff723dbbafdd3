// Package apollo implements lead sourcing and person enrichment on top of
// the Apollo.io REST API.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"outreach_backend/internal/provider"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

const (
	providerName = "apollo"

	// Apollo search pages are fixed-size; callers translate their own
	// offsets into (page, per_page) pairs.
	PageSize = 100

	defaultTimeout = 30 * time.Second
)

// Client talks to the Apollo REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

// New creates an Apollo client from configuration.
func New(cfg config.ApolloConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:    cfg.GetApolloBaseURL(),
		apiKey:     cfg.GetApolloAPIKey(),
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        log,
	}
}

// SearchFilters are the person-search criteria stored in a campaign's
// lead_generation step config. Zero-value fields are omitted from the query.
type SearchFilters struct {
	Titles        []string `json:"person_titles,omitempty"`
	Locations     []string `json:"person_locations,omitempty"`
	Seniorities   []string `json:"person_seniorities,omitempty"`
	Industries    []string `json:"organization_industries,omitempty"`
	EmployeeRange []string `json:"organization_num_employees_ranges,omitempty"`
	Keywords      string   `json:"q_keywords,omitempty"`
}

// Person is a search hit or enrichment result.
type Person struct {
	ID           string `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Title        string `json:"title"`
	Email        string `json:"email"`
	LinkedInURL  string `json:"linkedin_url"`
	City         string `json:"city"`
	Country      string `json:"country"`
	Organization struct {
		Name     string `json:"name"`
		Industry string `json:"industry"`
		Website  string `json:"website_url"`
	} `json:"organization"`
}

// Search runs a paged people search. Page numbering starts at 1.
func (c *Client) Search(ctx context.Context, filters SearchFilters, page, perPage int) ([]Person, error) {
	if perPage <= 0 || perPage > PageSize {
		perPage = PageSize
	}

	body := struct {
		SearchFilters
		Page    int `json:"page"`
		PerPage int `json:"per_page"`
	}{SearchFilters: filters, Page: page, PerPage: perPage}

	var out struct {
		People []Person `json:"people"`
	}
	if err := c.do(ctx, "/mixed_people/search", body, &out); err != nil {
		return nil, err
	}
	return out.People, nil
}

// EnrichmentResult is the outcome of a person match call.
type EnrichmentResult struct {
	Person      *Person
	CreditsUsed int
}

// EnrichPerson resolves contact details for a person, by Apollo id when
// known, otherwise by name/company/domain match.
func (c *Client) EnrichPerson(ctx context.Context, externalID, firstName, lastName, company, domain string) (*EnrichmentResult, error) {
	body := map[string]any{
		"reveal_personal_emails": true,
	}
	if externalID != "" {
		body["id"] = externalID
	} else {
		body["first_name"] = firstName
		body["last_name"] = lastName
		if company != "" {
			body["organization_name"] = company
		}
		if domain != "" {
			body["domain"] = domain
		}
	}

	var out struct {
		Person      *Person `json:"person"`
		CreditsUsed int     `json:"credits_consumed"`
	}
	if err := c.do(ctx, "/people/match", body, &out); err != nil {
		return nil, err
	}
	if out.Person == nil {
		return nil, provider.NewError(providerName, provider.CategoryNotFound, 0, "no matching person", nil)
	}
	if out.CreditsUsed == 0 {
		out.CreditsUsed = 1
	}
	return &EnrichmentResult{Person: out.Person, CreditsUsed: out.CreditsUsed}, nil
}

func (c *Client) do(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return provider.NewError(providerName, provider.CategoryUnknown, 0, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return provider.NewError(providerName, provider.CategoryUnknown, 0, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return provider.NewError(providerName, provider.CategoryTransient, 0, "request timed out", err)
		}
		return provider.NewError(providerName, provider.CategoryTransient, 0, "request failed", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && len(payload) > 0 {
			if err := json.Unmarshal(payload, out); err != nil {
				return provider.NewError(providerName, provider.CategoryUnknown, resp.StatusCode, "decode response", err)
			}
		}
		return nil
	}

	category := provider.ClassifyStatus(resp.StatusCode)
	c.log.ProviderError(providerName, path, string(category), fmt.Errorf("status %d", resp.StatusCode))
	return provider.NewError(providerName, category, resp.StatusCode, "search request rejected", nil)
}
