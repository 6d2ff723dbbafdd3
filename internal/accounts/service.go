package accounts

import (
	"context"

	"outreach_backend/platform/apperr"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// Service implements the account lifecycle operations exposed over HTTP.
type Service struct {
	repo *Repository
	pool *Pool
	cfg  config.InternalConfig
	log  *logger.Logger
}

// NewService creates the accounts service.
func NewService(repo *Repository, pool *Pool, cfg config.InternalConfig, log *logger.Logger) *Service {
	return &Service{repo: repo, pool: pool, cfg: cfg, log: log}
}

// List returns the tenant's LinkedIn accounts, newest first.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]AccountResponse, error) {
	accounts, err := s.repo.ListByTenant(ctx, tenantID, ProviderLinkedIn)
	if err != nil {
		return nil, err
	}

	responses := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		responses = append(responses, toResponse(&accounts[i]))
	}
	return responses, nil
}

// Status re-probes one account against the gateway and returns the
// refreshed state.
func (s *Service) Status(ctx context.Context, tenantID, accountID uuid.UUID) (*AccountResponse, error) {
	account, err := s.repo.GetByID(ctx, accountID, tenantID)
	if err != nil {
		return nil, err
	}

	if result := s.pool.Verify(ctx, account); result != VerifyTransient {
		token := statusTokenFor(result)
		if err := s.pool.ApplyProviderStatus(ctx, account, token); err != nil {
			return nil, err
		}
	}

	resp := toResponse(account)
	return &resp, nil
}

// Disconnect stops using the account for dispatch. The gateway session is
// left intact so the user can re-enable without re-authenticating.
func (s *Service) Disconnect(ctx context.Context, tenantID, accountID uuid.UUID) error {
	account, err := s.repo.GetByID(ctx, accountID, tenantID)
	if err != nil {
		return err
	}
	return s.pool.ApplyProviderStatus(ctx, account, "STOPPED")
}

// Sync re-probes every account of the tenant and persists status changes.
func (s *Service) Sync(ctx context.Context, tenantID uuid.UUID) ([]AccountResponse, error) {
	accounts, err := s.repo.ListByTenant(ctx, tenantID, ProviderLinkedIn)
	if err != nil {
		return nil, err
	}

	responses := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		account := &accounts[i]
		if result := s.pool.Verify(ctx, account); result != VerifyTransient {
			if err := s.pool.ApplyProviderStatus(ctx, account, statusTokenFor(result)); err != nil {
				s.log.Warn("account sync failed", "account_id", account.ID, "error", err)
			}
		}
		responses = append(responses, toResponse(account))
	}
	return responses, nil
}

// RegisterWebhook returns the callback registration the gateway needs.
func (s *Service) RegisterWebhook(ctx context.Context, tenantID uuid.UUID) (*WebhookRegistration, error) {
	base := s.cfg.GetBackendInternalURL()
	if base == "" {
		return nil, apperr.Internal("backend internal url not configured")
	}
	return &WebhookRegistration{
		URL:    base + "/api/v1/internal/accounts/webhook",
		Events: "account.status",
	}, nil
}

// HandleWebhook processes an unauthenticated gateway callback. The account
// is resolved by its gateway identifier; unknown accounts are ignored with
// a warning rather than an error, since the gateway may fan out callbacks
// for accounts this deployment never imported.
func (s *Service) HandleWebhook(ctx context.Context, payload WebhookPayload) error {
	account, err := s.repo.GetByExternalID(ctx, payload.AccountID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.Warn("webhook for unknown account", "external_account_id", payload.AccountID)
			return nil
		}
		return err
	}

	token := payload.Status
	if token == "" {
		token = payload.Message
	}
	return s.pool.ApplyProviderStatus(ctx, account, token)
}

// statusTokenFor converts a verify classification back into a gateway-style
// token for the shared status mapping.
func statusTokenFor(result VerifyResult) string {
	switch result {
	case VerifyValid:
		return "OK"
	case VerifyCheckpoint:
		return "CHECKPOINT"
	case VerifyNotFound:
		return "DELETED"
	default:
		return "ERROR"
	}
}
