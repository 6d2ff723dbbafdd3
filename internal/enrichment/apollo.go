package enrichment

import (
	"context"

	"outreach_backend/internal/provider/apollo"
)

// ApolloClient adapts the Apollo provider client to the enrichment Client
// interface.
type ApolloClient struct {
	client *apollo.Client
}

// NewApolloClient creates the adapter.
func NewApolloClient(client *apollo.Client) *ApolloClient {
	return &ApolloClient{client: client}
}

// EnrichPerson resolves contact details via Apollo's person match.
func (a *ApolloClient) EnrichPerson(ctx context.Context, externalID, firstName, lastName, company string) (*PersonMatch, error) {
	result, err := a.client.EnrichPerson(ctx, externalID, firstName, lastName, company, "")
	if err != nil {
		return nil, err
	}

	return &PersonMatch{
		Email:       result.Person.Email,
		LinkedInURL: result.Person.LinkedInURL,
		FirstName:   result.Person.FirstName,
		LastName:    result.Person.LastName,
		CreditsUsed: result.CreditsUsed,
	}, nil
}
