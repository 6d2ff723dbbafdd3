package workflow

import (
	"context"
	"testing"
	"time"

	"outreach_backend/internal/accounts"
	"outreach_backend/internal/invitations"
	"outreach_backend/internal/provider"

	"github.com/google/uuid"
)

func newTestDispatcher(linkedin *fakeLinkedIn, pool *fakePool, tracks *fakeTracks) *ConnectDispatcher {
	var rec InvitationRecorder
	if tracks != nil {
		rec = tracks
	}
	d := NewConnectDispatcher(linkedin, pool, rec, time.Millisecond, testLogger())
	d.sleep = func(ctx context.Context, dur time.Duration) {}
	return d
}

func rateLimitErr() error {
	return provider.NewError("linkedin", provider.CategoryRateLimit, 429, "cannot resend yet", nil)
}

func credentialsErr() error {
	return provider.NewError("linkedin", provider.CategoryCredentials, 401, "session expired", nil)
}

func TestInviteFallsBackToBareInviteOnSameAccount(t *testing.T) {
	tenantID := uuid.New()
	accountA := testAccount(tenantID, "acc-a")
	accountB := testAccount(tenantID, "acc-b")
	pool := &fakePool{accounts: []accounts.Account{accountA, accountB}}

	linkedin := &fakeLinkedIn{inviteErrs: map[string]error{
		inviteKey("acc-a", "hello"): rateLimitErr(),
	}}
	tracks := &fakeTracks{}
	d := newTestDispatcher(linkedin, pool, tracks)

	lead := testLead(tenantID, "https://www.linkedin.com/in/alice")
	result := d.Invite(context.Background(), lead, "hello", true)

	if !result.OK {
		t.Fatalf("Invite failed: %+v", result)
	}
	if result.Strategy != StrategyFallback {
		t.Fatalf("Strategy = %q, want %q", result.Strategy, StrategyFallback)
	}
	if !result.MessageSkipped {
		t.Fatal("expected MessageSkipped")
	}
	if result.AccountID != accountA.ID {
		t.Fatalf("dispatched via account %s, want primary %s", result.AccountID, accountA.ID)
	}
	want := []string{inviteKey("acc-a", "hello"), inviteKey("acc-a", "")}
	if len(linkedin.invites) != len(want) {
		t.Fatalf("invites = %v, want %v", linkedin.invites, want)
	}
	for i := range want {
		if linkedin.invites[i] != want[i] {
			t.Fatalf("invites = %v, want %v", linkedin.invites, want)
		}
	}
	if len(tracks.tracks) != 1 || tracks.tracks[0].LastSeenStatus != invitations.StatusPending {
		t.Fatalf("expected one pending invitation track, got %+v", tracks.tracks)
	}
}

func TestInviteStoresProviderInvitationID(t *testing.T) {
	tenantID := uuid.New()
	account := testAccount(tenantID, "acc-a")
	linkedin := &fakeLinkedIn{}
	tracks := &fakeTracks{}
	d := newTestDispatcher(linkedin, &fakePool{accounts: []accounts.Account{account}}, tracks)

	result := d.Invite(context.Background(), testLead(tenantID, "https://www.linkedin.com/in/alice"), "", false)

	if !result.OK {
		t.Fatalf("Invite failed: %+v", result)
	}
	if len(tracks.tracks) != 1 {
		t.Fatalf("tracks = %d, want 1", len(tracks.tracks))
	}
	got := tracks.tracks[0].ExternalInvitationID
	if got == nil || *got != "inv-prov-alice" {
		t.Fatalf("external invitation id = %v, want the id returned by the provider", got)
	}
}

func TestInviteMovesToNextAccountWhenBareInviteThrottled(t *testing.T) {
	tenantID := uuid.New()
	accountA := testAccount(tenantID, "acc-a")
	accountB := testAccount(tenantID, "acc-b")
	pool := &fakePool{accounts: []accounts.Account{accountA, accountB}}

	linkedin := &fakeLinkedIn{inviteErrs: map[string]error{
		inviteKey("acc-a", "hello"): rateLimitErr(),
		inviteKey("acc-a", ""):      rateLimitErr(),
	}}
	d := newTestDispatcher(linkedin, pool, nil)

	lead := testLead(tenantID, "alice")
	result := d.Invite(context.Background(), lead, "hello", true)

	if !result.OK {
		t.Fatalf("Invite failed: %+v", result)
	}
	if result.AccountID != accountB.ID {
		t.Fatalf("dispatched via %s, want fallback account %s", result.AccountID, accountB.ID)
	}
	if result.Strategy != StrategyWithMessage {
		t.Fatalf("Strategy = %q, want %q", result.Strategy, StrategyWithMessage)
	}
}

func TestInviteClassifiesExhaustionAsWeeklyLimit(t *testing.T) {
	tenantID := uuid.New()
	accountA := testAccount(tenantID, "acc-a")
	pool := &fakePool{accounts: []accounts.Account{accountA}}

	linkedin := &fakeLinkedIn{inviteErrs: map[string]error{
		inviteKey("acc-a", "hello"): rateLimitErr(),
		inviteKey("acc-a", ""):      rateLimitErr(),
	}}
	d := newTestDispatcher(linkedin, pool, nil)

	result := d.Invite(context.Background(), testLead(tenantID, "alice"), "hello", true)

	if result.OK {
		t.Fatal("expected failure")
	}
	if result.Reason != ReasonWeeklyLimit {
		t.Fatalf("Reason = %q, want %q", result.Reason, ReasonWeeklyLimit)
	}
	if result.Category != provider.CategoryRateLimit {
		t.Fatalf("Category = %q, want rate_limit", result.Category)
	}
}

func TestInviteClassifiesCredentialExhaustion(t *testing.T) {
	tenantID := uuid.New()
	accountA := testAccount(tenantID, "acc-a")
	pool := &fakePool{accounts: []accounts.Account{accountA}}

	linkedin := &fakeLinkedIn{inviteErrs: map[string]error{
		inviteKey("acc-a", ""): credentialsErr(),
	}}
	d := newTestDispatcher(linkedin, pool, nil)

	result := d.Invite(context.Background(), testLead(tenantID, "alice"), "", false)

	if result.OK {
		t.Fatal("expected failure")
	}
	if result.Reason != ReasonNoValidAccounts {
		t.Fatalf("Reason = %q, want %q", result.Reason, ReasonNoValidAccounts)
	}
	if pool.unauthorized != 1 {
		t.Fatalf("OnUnauthorized calls = %d, want 1", pool.unauthorized)
	}
}

func TestInviteWithoutAccounts(t *testing.T) {
	d := newTestDispatcher(&fakeLinkedIn{}, &fakePool{}, nil)

	result := d.Invite(context.Background(), testLead(uuid.New(), "alice"), "", false)

	if result.OK || result.Reason != ReasonNoValidAccounts {
		t.Fatalf("result = %+v, want no_valid_accounts", result)
	}
}

func TestInviteWithoutURL(t *testing.T) {
	d := newTestDispatcher(&fakeLinkedIn{}, &fakePool{}, nil)

	result := d.Invite(context.Background(), testLead(uuid.New(), ""), "", false)

	if result.OK || result.Reason != ReasonLinkedInURLMissing {
		t.Fatalf("result = %+v, want linkedin_url_missing", result)
	}
}
