package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeCaps struct {
	daily  int
	weekly int
	err    error
}

func (f *fakeCaps) SumConnectionCaps(ctx context.Context, tenantID uuid.UUID) (int, int, error) {
	return f.daily, f.weekly, f.err
}

type fakeLedger struct {
	count     int
	err       error
	lastSince time.Time
	lastUntil time.Time
}

func (f *fakeLedger) CountByTenantAndStatus(ctx context.Context, tenantID uuid.UUID, stepType string, statuses []string, since, until time.Time) (int, error) {
	f.lastSince = since
	f.lastUntil = until
	return f.count, f.err
}

func newGate(caps *fakeCaps, ledger *fakeLedger) *Gate {
	g := NewGate(caps, ledger, logger.New("test"))
	g.now = func() time.Time {
		return time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	}
	return g
}

func TestCheckDailyAllowsUnderCap(t *testing.T) {
	g := newGate(&fakeCaps{daily: 10}, &fakeLedger{count: 4})

	dec, err := g.Check(context.Background(), uuid.New(), ScopeDaily)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed {
		t.Fatal("expected allowed")
	}
	if dec.Remaining != 6 {
		t.Fatalf("remaining = %d, want 6", dec.Remaining)
	}
}

func TestCheckDailyRefusesAtCap(t *testing.T) {
	g := newGate(&fakeCaps{daily: 5}, &fakeLedger{count: 5})

	dec, err := g.Check(context.Background(), uuid.New(), ScopeDaily)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Allowed {
		t.Fatal("expected refusal at cap")
	}
	if dec.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", dec.Remaining)
	}
}

func TestCheckZeroCapRefuses(t *testing.T) {
	ledger := &fakeLedger{count: 0}
	g := newGate(&fakeCaps{daily: 0}, ledger)

	dec, err := g.Check(context.Background(), uuid.New(), ScopeDaily)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Allowed {
		t.Fatal("zero capacity must refuse")
	}
	if !ledger.lastSince.IsZero() {
		t.Fatal("ledger must not be consulted when capacity is zero")
	}
}

func TestCheckFailsOpenOnLedgerError(t *testing.T) {
	g := newGate(&fakeCaps{daily: 10}, &fakeLedger{err: errors.New("connection refused")})

	dec, err := g.Check(context.Background(), uuid.New(), ScopeDaily)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed {
		t.Fatal("transient ledger failure must fail open")
	}
}

func TestCheckFailsOpenOnCapError(t *testing.T) {
	g := newGate(&fakeCaps{err: errors.New("timeout")}, &fakeLedger{})

	dec, err := g.Check(context.Background(), uuid.New(), ScopeDaily)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed {
		t.Fatal("transient cap failure must fail open")
	}
}

func TestDailyWindowIsUTCCalendarDay(t *testing.T) {
	ledger := &fakeLedger{}
	g := newGate(&fakeCaps{daily: 10}, ledger)

	if _, err := g.Check(context.Background(), uuid.New(), ScopeDaily); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantSince := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if !ledger.lastSince.Equal(wantSince) {
		t.Fatalf("since = %v, want %v", ledger.lastSince, wantSince)
	}
	if !ledger.lastUntil.Equal(wantSince.Add(24 * time.Hour)) {
		t.Fatalf("until = %v, want %v", ledger.lastUntil, wantSince.Add(24*time.Hour))
	}
}

func TestWeeklyWindowIsRollingSevenDays(t *testing.T) {
	ledger := &fakeLedger{}
	g := newGate(&fakeCaps{daily: 10, weekly: 100}, ledger)

	if _, err := g.Check(context.Background(), uuid.New(), ScopeWeekly); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	if !ledger.lastSince.Equal(now.Add(-7 * 24 * time.Hour)) {
		t.Fatalf("since = %v, want %v", ledger.lastSince, now.Add(-7*24*time.Hour))
	}
	if !ledger.lastUntil.Equal(now) {
		t.Fatalf("until = %v, want %v", ledger.lastUntil, now)
	}
}

func TestWeeklyDerivesFromDailyWhenUnset(t *testing.T) {
	g := newGate(&fakeCaps{daily: 5, weekly: 0}, &fakeLedger{count: 34})

	dec, err := g.Check(context.Background(), uuid.New(), ScopeWeekly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed {
		t.Fatal("expected allowed under derived weekly cap of 35")
	}
	if dec.Cap != 35 {
		t.Fatalf("cap = %d, want 35", dec.Cap)
	}
}

func TestCheckBothReturnsFirstRefusal(t *testing.T) {
	g := newGate(&fakeCaps{daily: 5, weekly: 100}, &fakeLedger{count: 5})

	dec, scope, err := g.CheckBoth(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Allowed {
		t.Fatal("expected refusal")
	}
	if scope != ScopeDaily {
		t.Fatalf("scope = %s, want daily", scope)
	}
}
