package accounts

import (
	"context"

	"outreach_backend/internal/provider/unipile"
)

// UnipileProber adapts the Unipile client to the pool's StatusProber.
type UnipileProber struct {
	client *unipile.Client
}

// NewUnipileProber creates the adapter.
func NewUnipileProber(client *unipile.Client) *UnipileProber {
	return &UnipileProber{client: client}
}

// ProbeAccountStatus returns the gateway's status token for the account.
func (p *UnipileProber) ProbeAccountStatus(ctx context.Context, externalAccountID string) (string, error) {
	status, err := p.client.GetAccountStatus(ctx, externalAccountID)
	if err != nil {
		return "", err
	}
	return status.Status, nil
}
