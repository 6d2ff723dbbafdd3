package accounts

import (
	"time"

	"github.com/google/uuid"
)

// AccountResponse is the API representation of a provider account.
type AccountResponse struct {
	ID                uuid.UUID `json:"id"`
	Provider          string    `json:"provider"`
	ExternalAccountID string    `json:"externalAccountId"`
	Status            string    `json:"status"`
	NeedsReconnect    bool      `json:"needsReconnect"`
	DailyCap          int       `json:"dailyCap"`
	WeeklyCap         *int      `json:"weeklyCap,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// WebhookPayload is the unauthenticated gateway callback body. The gateway
// reports either a status token or a free-form message; both map onto the
// internal status taxonomy.
type WebhookPayload struct {
	AccountID   string `json:"account_id" binding:"required"`
	AccountType string `json:"account_type"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

// WebhookRegistration describes where the gateway should deliver callbacks.
type WebhookRegistration struct {
	URL    string `json:"url"`
	Events string `json:"events"`
}

func toResponse(a *Account) AccountResponse {
	return AccountResponse{
		ID:                a.ID,
		Provider:          a.Provider,
		ExternalAccountID: a.ExternalAccountID,
		Status:            a.Status,
		NeedsReconnect:    a.NeedsReconnect,
		DailyCap:          a.DailyCap,
		WeeklyCap:         a.WeeklyCap,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}
