// Package quota enforces per-tenant connection budgets for LinkedIn
// invitations, on both a daily and a rolling-weekly window.
package quota

import (
	"context"
	"time"

	"outreach_backend/internal/activity"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// Scope selects the quota window.
type Scope string

const (
	ScopeDaily  Scope = "daily"
	ScopeWeekly Scope = "weekly"

	connectStepType = "linkedin_connect"
)

// countedStatuses are the ledger statuses that consume quota. An error or
// skipped row never counts against the budget.
var countedStatuses = []string{activity.StatusSent, activity.StatusDelivered, activity.StatusConnected}

// Decision is the gate's verdict for one window.
type Decision struct {
	Allowed   bool
	Remaining int
	Cap       int
	Used      int
}

// CapSource exposes the tenant's connection capacity, summed over its
// active LinkedIn accounts.
type CapSource interface {
	SumConnectionCaps(ctx context.Context, tenantID uuid.UUID) (daily int, weekly int, err error)
}

// LedgerCounter is the slice of the activity ledger the gate reads.
type LedgerCounter interface {
	CountByTenantAndStatus(ctx context.Context, tenantID uuid.UUID, stepType string, statuses []string, since, until time.Time) (int, error)
}

// Gate answers "may this tenant send another connection invitation".
type Gate struct {
	caps   CapSource
	ledger LedgerCounter
	log    *logger.Logger
	now    func() time.Time
}

// NewGate creates a quota gate.
func NewGate(caps CapSource, ledger LedgerCounter, log *logger.Logger) *Gate {
	return &Gate{caps: caps, ledger: ledger, log: log, now: time.Now}
}

// Check evaluates one window. A tenant with zero capacity is always refused.
// When the ledger count fails transiently, the gate fails open (allowed with
// unknown remaining) so a storage blip never stalls every campaign; the
// failure is logged.
func (g *Gate) Check(ctx context.Context, tenantID uuid.UUID, scope Scope) (Decision, error) {
	dailyCap, weeklyCap, err := g.caps.SumConnectionCaps(ctx, tenantID)
	if err != nil {
		g.log.Warn("quota cap query failed, failing open", "tenant_id", tenantID, "scope", string(scope), "error", err)
		return Decision{Allowed: true, Remaining: -1}, nil
	}

	capacity := dailyCap
	if scope == ScopeWeekly {
		capacity = weeklyCap
		if capacity == 0 && dailyCap > 0 {
			// No explicit weekly caps configured: derive from the daily budget.
			capacity = dailyCap * 7
		}
	}
	if capacity <= 0 {
		g.log.QuotaRefused(tenantID.String(), string(scope), 0)
		return Decision{Allowed: false, Remaining: 0, Cap: capacity}, nil
	}

	since, until := g.window(scope)
	used, err := g.ledger.CountByTenantAndStatus(ctx, tenantID, connectStepType, countedStatuses, since, until)
	if err != nil {
		g.log.Warn("quota count query failed, failing open", "tenant_id", tenantID, "scope", string(scope), "error", err)
		return Decision{Allowed: true, Remaining: -1, Cap: capacity}, nil
	}

	remaining := capacity - used
	if remaining < 0 {
		remaining = 0
	}
	allowed := used < capacity
	if !allowed {
		g.log.QuotaRefused(tenantID.String(), string(scope), remaining)
	}

	return Decision{Allowed: allowed, Remaining: remaining, Cap: capacity, Used: used}, nil
}

// CheckBoth evaluates daily then weekly and returns the first refusal.
func (g *Gate) CheckBoth(ctx context.Context, tenantID uuid.UUID) (Decision, Scope, error) {
	daily, err := g.Check(ctx, tenantID, ScopeDaily)
	if err != nil {
		return daily, ScopeDaily, err
	}
	if !daily.Allowed {
		return daily, ScopeDaily, nil
	}

	weekly, err := g.Check(ctx, tenantID, ScopeWeekly)
	if err != nil {
		return weekly, ScopeWeekly, err
	}
	return weekly, ScopeWeekly, nil
}

// window returns [since, until) for the scope. Daily is the current UTC
// calendar day; weekly is the rolling 7×24h preceding now.
func (g *Gate) window(scope Scope) (time.Time, time.Time) {
	now := g.now().UTC()
	if scope == ScopeWeekly {
		return now.Add(-7 * 24 * time.Hour), now
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
