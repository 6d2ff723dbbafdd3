package accounts

import (
	"context"
	"sync"
	"time"

	"outreach_backend/internal/events"
	"outreach_backend/internal/provider"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// VerifyResult classifies a provider-side account probe.
type VerifyResult string

const (
	VerifyValid      VerifyResult = "valid"
	VerifyCheckpoint VerifyResult = "needs_checkpoint"
	VerifyNotFound   VerifyResult = "not_found"
	VerifyTransient  VerifyResult = "transient"
)

// StatusProber probes the gateway for an account's live status token.
type StatusProber interface {
	ProbeAccountStatus(ctx context.Context, externalAccountID string) (string, error)
}

// Store is the slice of the repository the pool needs.
type Store interface {
	ListByTenant(ctx context.Context, tenantID uuid.UUID, provider string) ([]Account, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, needsReconnect bool) error
}

// Pool selects accounts for dispatch and recovers from 401s with a bounded
// per-account retry budget.
type Pool struct {
	store    Store
	prober   StatusProber
	bus      events.Bus
	log      *logger.Logger
	attempts *attemptWindow
}

// NewPool creates an account pool.
func NewPool(store Store, prober StatusProber, bus events.Bus, cfg config.ReconnectConfig, log *logger.Logger) *Pool {
	return &Pool{
		store:    store,
		prober:   prober,
		bus:      bus,
		log:      log,
		attempts: newAttemptWindow(cfg.GetMaxReconnectAttempts(), cfg.GetReconnectAttemptWindow()),
	}
}

// Pick returns the most recently created healthy account for the tenant,
// or nil when no account is usable.
func (p *Pool) Pick(ctx context.Context, tenantID uuid.UUID, providerName string) (*Account, error) {
	accounts, err := p.store.ListByTenant(ctx, tenantID, providerName)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if accounts[i].Healthy() {
			return &accounts[i], nil
		}
	}
	return nil, nil
}

// FallbackOrder returns the primary account followed by every other healthy
// account, preserving the newest-first ordering.
func (p *Pool) FallbackOrder(ctx context.Context, tenantID uuid.UUID, providerName string, primary *Account) ([]Account, error) {
	accounts, err := p.store.ListByTenant(ctx, tenantID, providerName)
	if err != nil {
		return nil, err
	}

	ordered := make([]Account, 0, len(accounts))
	if primary != nil {
		ordered = append(ordered, *primary)
	}
	for i := range accounts {
		if primary != nil && accounts[i].ID == primary.ID {
			continue
		}
		if accounts[i].Healthy() {
			ordered = append(ordered, accounts[i])
		}
	}
	return ordered, nil
}

// Verify probes the gateway and classifies the account's live state.
func (p *Pool) Verify(ctx context.Context, account *Account) VerifyResult {
	token, err := p.prober.ProbeAccountStatus(ctx, account.ExternalAccountID)
	if err != nil {
		switch provider.CategoryOf(err) {
		case provider.CategoryNotFound:
			return VerifyNotFound
		case provider.CategoryCredentials, provider.CategoryCheckpoint:
			return VerifyCheckpoint
		default:
			return VerifyTransient
		}
	}

	status := MapProviderStatus(token, p.log)
	switch status {
	case StatusActive, StatusConnecting:
		return VerifyValid
	case StatusInactive:
		return VerifyNotFound
	case StatusCredentialsExpired:
		return VerifyCheckpoint
	default:
		return VerifyTransient
	}
}

// OnUnauthorized handles a 401 from a provider call made with this account.
// It budgets reconnect attempts per account (window and cap from config),
// probes the account, and either re-runs the call, marks the account, or
// surfaces the failure for the caller to back off.
func (p *Pool) OnUnauthorized(ctx context.Context, account *Account, retry func() error) error {
	if !p.attempts.Allow(account.ID) {
		p.log.Warn("account reconnect attempts exhausted",
			"account_id", account.ID, "tenant_id", account.TenantID)
		p.markStatus(ctx, account, StatusCredentialsExpired, true)
		return provider.NewError("pool", provider.CategoryCredentials, 0,
			"account requires reconnection", nil)
	}

	switch p.Verify(ctx, account) {
	case VerifyValid:
		return retry()
	case VerifyCheckpoint:
		p.markStatus(ctx, account, StatusCredentialsExpired, true)
		return provider.NewError("pool", provider.CategoryCheckpoint, 0,
			"account requires user intervention", nil)
	case VerifyNotFound:
		p.markStatus(ctx, account, StatusInactive, false)
		return provider.NewError("pool", provider.CategoryNotFound, 0,
			"account no longer exists at the provider", nil)
	default:
		return provider.NewError("pool", provider.CategoryTransient, 0,
			"account verification unavailable", nil)
	}
}

// ApplyProviderStatus maps a gateway token onto the account and persists
// the transition, publishing a status event when the status changed.
func (p *Pool) ApplyProviderStatus(ctx context.Context, account *Account, token string) error {
	status := MapProviderStatus(token, p.log)
	if status == account.Status {
		return nil
	}
	p.markStatus(ctx, account, status, NeedsReconnectFor(status))
	return nil
}

func (p *Pool) markStatus(ctx context.Context, account *Account, status string, needsReconnect bool) {
	if err := p.store.UpdateStatus(ctx, account.ID, status, needsReconnect); err != nil {
		p.log.Error("failed to persist account status", "account_id", account.ID, "error", err)
		return
	}
	account.Status = status
	account.NeedsReconnect = needsReconnect

	if p.bus != nil {
		p.bus.Publish(ctx, events.ProviderAccountStatusChanged{
			BaseEvent:   events.NewBaseEvent(),
			TenantID:    account.TenantID,
			AccountID:   account.ID,
			AccountType: account.Provider,
			Status:      status,
		})
	}
}

// attemptWindow is an in-memory per-account counter with a fixed reset
// window. Advisory only: restarting the process resets the budget.
type attemptWindow struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	counts map[uuid.UUID]*attemptState
	now    func() time.Time
}

type attemptState struct {
	count   int
	started time.Time
}

func newAttemptWindow(max int, window time.Duration) *attemptWindow {
	if max <= 0 {
		max = 3
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &attemptWindow{
		max:    max,
		window: window,
		counts: make(map[uuid.UUID]*attemptState),
		now:    time.Now,
	}
}

// Allow consumes one attempt for the account, resetting the counter when
// the window has elapsed.
func (w *attemptWindow) Allow(accountID uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	state, ok := w.counts[accountID]
	if !ok || now.Sub(state.started) >= w.window {
		w.counts[accountID] = &attemptState{count: 1, started: now}
		return true
	}
	if state.count >= w.max {
		return false
	}
	state.count++
	return true
}
