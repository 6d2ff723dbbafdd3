package workflow

import (
	"context"
	"time"

	"outreach_backend/internal/activity"
	"outreach_backend/internal/campaigns/repository"
	"outreach_backend/platform/logger"
)

// StepExecutor runs one (step, lead) pair. Implemented by *Executor;
// narrowed to an interface for driver tests.
type StepExecutor interface {
	Execute(ctx context.Context, campaign *repository.Campaign, step *repository.Step, lead *repository.Lead) Outcome
}

// Driver is the per-lead state machine: it derives the cursor from the
// activity ledger, walks structural steps (start, end, delay, condition),
// and hands at most one provider step per invocation to the executor.
type Driver struct {
	ledger   Ledger
	leads    LeadStore
	executor StepExecutor
	log      *logger.Logger
	now      func() time.Time
}

// NewDriver creates the workflow driver.
func NewDriver(ledger Ledger, leads LeadStore, executor StepExecutor, log *logger.Logger) *Driver {
	return &Driver{
		ledger:   ledger,
		leads:    leads,
		executor: executor,
		log:      log,
		now:      time.Now,
	}
}

// Advance moves the lead forward. The cursor is implicit: the position
// after the lead's latest terminal-success activity. Structural steps are
// consumed in-place; the first dispatchable step ends the invocation, and
// the next invocation re-derives the cursor from the ledger.
func (d *Driver) Advance(ctx context.Context, campaign *repository.Campaign, steps []repository.Step, lead *repository.Lead) error {
	if lead.Status != repository.LeadActive {
		return nil
	}

	last, err := d.ledger.LatestSuccessForLead(ctx, lead.ID)
	if err != nil {
		return err
	}

	next := 0
	var lastSuccessAt time.Time
	if last != nil {
		lastSuccessAt = last.CreatedAt
		if idx := indexOfStep(steps, last); idx >= 0 {
			next = idx + 1
		}
	}

	for {
		if next >= len(steps) {
			return d.transition(ctx, lead, repository.LeadCompleted)
		}
		step := &steps[next]

		// Idempotency rule: a step that already carries a terminal
		// success is never re-executed.
		done, err := d.ledger.HasTerminalSuccess(ctx, lead.ID, step.ID)
		if err != nil {
			return err
		}
		if done {
			next++
			continue
		}

		if repository.IsSynthetic(step.Type) {
			next++
			continue
		}

		switch step.Type {
		case repository.StepDelay:
			gate := lastSuccessAt.Add(DelayDuration(step))
			if d.now().Before(gate) {
				// The lead waits; the next daily run re-evaluates.
				d.setCursor(ctx, lead, step.Order)
				return nil
			}
			next++
			continue

		case repository.StepCondition:
			met, err := d.evaluateCondition(ctx, lead, step)
			if err != nil {
				return err
			}
			if !met {
				return d.transition(ctx, lead, repository.LeadStopped)
			}
			next++
			continue
		}

		outcome := d.executor.Execute(ctx, campaign, step, lead)
		d.setCursor(ctx, lead, step.Order)

		switch {
		case outcome.OK:
			return nil
		case outcome.Skipped:
			// Waiting on an external event (invitation acceptance);
			// the lead stays active.
			return nil
		case outcome.Terminal():
			return d.transition(ctx, lead, repository.LeadStopped)
		default:
			// Transient: leave the lead active so the next daily tick
			// retries the same step.
			if outcome.Err != nil {
				d.log.Warn("step dispatch failed, will retry next run",
					"lead_id", lead.ID, "step_type", step.Type, "error", outcome.Err)
			}
			return nil
		}
	}
}

func (d *Driver) evaluateCondition(ctx context.Context, lead *repository.Lead, step *repository.Step) (bool, error) {
	condType, _ := step.Config["conditionType"].(string)

	var status string
	switch condType {
	case ConditionConnected:
		status = activity.StatusConnected
	case ConditionReplied:
		status = activity.StatusReplied
	case ConditionOpened:
		status = activity.StatusOpened
	default:
		return false, nil
	}
	return d.ledger.HasStatusForLead(ctx, lead.ID, status)
}

func (d *Driver) transition(ctx context.Context, lead *repository.Lead, status string) error {
	if err := d.leads.UpdateStatus(ctx, lead.ID, status); err != nil {
		return err
	}
	lead.Status = status
	return nil
}

// setCursor mirrors the derived position onto the lead row for display.
func (d *Driver) setCursor(ctx context.Context, lead *repository.Lead, order int) {
	if lead.CurrentStepOrder == order {
		return
	}
	if err := d.leads.SetCurrentStepOrder(ctx, lead.ID, order); err != nil {
		d.log.Warn("failed to set lead cursor", "lead_id", lead.ID, "error", err)
		return
	}
	lead.CurrentStepOrder = order
}

func indexOfStep(steps []repository.Step, a *activity.Activity) int {
	for i := range steps {
		if steps[i].ID == a.StepID {
			return i
		}
	}
	return -1
}
