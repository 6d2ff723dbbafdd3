package workflow

import (
	"fmt"
	"math"
	"strings"

	"outreach_backend/internal/campaigns/repository"
)

// ValidationResult is the outcome of a step config check.
type ValidationResult struct {
	Valid         bool
	Error         string
	MissingFields []string
}

// Validator checks step configs against the per-type required-field rules
// before any provider call is made.
type Validator struct{}

// NewValidator creates the step validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the step's config for its type. Unknown step types pass;
// the executor decides whether it can dispatch them.
func (v *Validator) Validate(step *repository.Step) ValidationResult {
	cfg := step.Config

	switch step.Type {
	case repository.StepLinkedInConnect, repository.StepLinkedInVisit, repository.StepLinkedInFollow:
		// No required fields; the connection message is optional.
		return valid()

	case repository.StepLinkedInMessage:
		return requireAll(cfg, "message")

	case repository.StepEmailSend, repository.StepEmailFollowup:
		return requireAll(cfg, "subject", "body")

	case repository.StepWhatsAppSend:
		return requireAll(cfg, "whatsappMessage")

	case repository.StepInstagramDM:
		return requireAll(cfg, "instagramUsername", "instagramDmMessage")

	case repository.StepVoiceAgentCall:
		result := requireAll(cfg, "voiceAgentId")
		if !result.Valid {
			return result
		}
		if !fieldPresent(cfg["voiceContext"]) && !fieldPresent(cfg["added_context"]) {
			return invalid("voice step needs a call context", "voiceContext")
		}
		return valid()

	case repository.StepDelay:
		if DelayDuration(step) <= 0 {
			return invalid("delay step needs a positive duration", "delayDays")
		}
		return valid()

	case repository.StepCondition:
		condType, _ := cfg["conditionType"].(string)
		switch condType {
		case ConditionConnected, ConditionReplied, ConditionOpened:
			return valid()
		}
		return invalid("condition step needs a supported conditionType", "conditionType")

	case repository.StepLeadGeneration:
		if hasLeadGenFilters(cfg) || fieldPresent(cfg["leadGenerationLimit"]) || fieldPresent(cfg["leads_per_day"]) {
			return valid()
		}
		return invalid("lead generation step needs filters or a daily limit", "leadGenerationFilters")

	default:
		return valid()
	}
}

// Condition types evaluated by the workflow driver.
const (
	ConditionConnected = "connected"
	ConditionReplied   = "replied"
	ConditionOpened    = "opened"
)

func hasLeadGenFilters(cfg map[string]any) bool {
	filters, ok := cfg["leadGenerationFilters"].(map[string]any)
	if !ok {
		return false
	}
	for _, key := range []string{"roles", "industries", "location"} {
		if fieldPresent(filters[key]) {
			return true
		}
	}
	return false
}

// fieldPresent reports whether a config value counts as provided: non-nil,
// non-empty string after trim, non-empty array, and not NaN.
func fieldPresent(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case float64:
		return !math.IsNaN(v)
	default:
		return true
	}
}

func requireAll(cfg map[string]any, fields ...string) ValidationResult {
	var missing []string
	for _, field := range fields {
		if !fieldPresent(cfg[field]) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return ValidationResult{
			Valid:         false,
			Error:         fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")),
			MissingFields: missing,
		}
	}
	return valid()
}

func valid() ValidationResult {
	return ValidationResult{Valid: true}
}

func invalid(message string, missing ...string) ValidationResult {
	return ValidationResult{Valid: false, Error: message, MissingFields: missing}
}
