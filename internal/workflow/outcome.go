package workflow

import "outreach_backend/internal/provider"

// Failure reasons surfaced by the executor and dispatcher.
const (
	ReasonQuotaDaily         = "quota.daily"
	ReasonQuotaWeekly        = "quota.weekly"
	ReasonNoValidAccounts    = "no_valid_accounts"
	ReasonWeeklyLimit        = "weekly_limit_reached"
	ReasonWaitingAcceptance  = "waiting_acceptance"
	ReasonLinkedInURLMissing = "linkedin_url_missing"
	ReasonEmailMissing       = "email_missing"
	ReasonPhoneMissing       = "phone_missing"
)

// Connection dispatch strategies.
const (
	StrategyWithMessage    = "with_message"
	StrategyWithoutMessage = "without_message"
	StrategyFallback       = "fallback_to_without_message"
)

// Outcome is the result of executing one (step, lead) pair.
type Outcome struct {
	OK         bool
	Skipped    bool
	Validation bool
	Reason     string
	Strategy   string
	Category   provider.Category
	Err        error
}

// Terminal reports whether the failure is unrecoverable for this lead, as
// opposed to a transient condition the next daily run can retry.
func (o Outcome) Terminal() bool {
	if o.OK || o.Skipped {
		return false
	}
	if o.Validation {
		return true
	}
	switch o.Reason {
	case ReasonQuotaDaily, ReasonQuotaWeekly, ReasonNoValidAccounts, ReasonWeeklyLimit:
		return true
	}
	return false
}

func success(strategy string) Outcome {
	return Outcome{OK: true, Strategy: strategy}
}

func failure(reason string, category provider.Category, err error) Outcome {
	return Outcome{Reason: reason, Category: category, Err: err}
}
