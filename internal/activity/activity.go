// Package activity implements the append-only outreach activity ledger.
// Every provider-facing step execution leaves a trail here; analytics,
// the live feed, and the workflow cursor are all derived from it.
package activity

import (
	"time"

	"github.com/google/uuid"
)

// Activity statuses. sent and error rows may repeat per (lead, step);
// the terminal-success set is unique per (lead, step).
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusConnected = "connected"
	StatusReplied   = "replied"
	StatusOpened    = "opened"
	StatusClicked   = "clicked"
	StatusSkipped   = "skipped"
	StatusError     = "error"
)

// TerminalSuccessStatuses are the statuses that mark a (lead, step) pair as
// successfully completed. At most one such row may exist per pair.
var TerminalSuccessStatuses = []string{StatusDelivered, StatusConnected, StatusReplied}

// IsTerminalSuccess reports whether status belongs to the terminal-success set.
func IsTerminalSuccess(status string) bool {
	return status == StatusDelivered || status == StatusConnected || status == StatusReplied
}

// Activity is one ledger row.
type Activity struct {
	ID             uuid.UUID      `db:"id"`
	TenantID       uuid.UUID      `db:"tenant_id"`
	CampaignID     uuid.UUID      `db:"campaign_id"`
	CampaignLeadID uuid.UUID      `db:"campaign_lead_id"`
	StepID         uuid.UUID      `db:"step_id"`
	StepType       string         `db:"step_type"`
	ActionType     string         `db:"action_type"`
	Channel        string         `db:"channel"`
	Status         string         `db:"status"`
	MessageContent *string        `db:"message_content"`
	ErrorMessage   *string        `db:"error_message"`
	Metadata       map[string]any `db:"metadata"`
	CreatedAt      time.Time      `db:"created_at"`
}
