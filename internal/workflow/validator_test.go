package workflow

import (
	"math"
	"testing"

	"outreach_backend/internal/campaigns/repository"
)

func TestValidateRequiredFields(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		step    repository.Step
		valid   bool
		missing string
	}{
		{
			name:  "connect needs nothing",
			step:  repository.Step{Type: repository.StepLinkedInConnect, Config: map[string]any{}},
			valid: true,
		},
		{
			name:    "message requires message",
			step:    repository.Step{Type: repository.StepLinkedInMessage, Config: map[string]any{}},
			missing: "message",
		},
		{
			name:    "blank message is missing",
			step:    repository.Step{Type: repository.StepLinkedInMessage, Config: map[string]any{"message": "   "}},
			missing: "message",
		},
		{
			name:    "email requires subject and body",
			step:    repository.Step{Type: repository.StepEmailSend, Config: map[string]any{"subject": "Hi"}},
			missing: "body",
		},
		{
			name:  "email complete",
			step:  repository.Step{Type: repository.StepEmailFollowup, Config: map[string]any{"subject": "Hi", "body": "text"}},
			valid: true,
		},
		{
			name:    "whatsapp requires whatsappMessage",
			step:    repository.Step{Type: repository.StepWhatsAppSend, Config: map[string]any{}},
			missing: "whatsappMessage",
		},
		{
			name:    "instagram requires both fields",
			step:    repository.Step{Type: repository.StepInstagramDM, Config: map[string]any{"instagramUsername": "jane"}},
			missing: "instagramDmMessage",
		},
		{
			name:    "voice requires agent id",
			step:    repository.Step{Type: repository.StepVoiceAgentCall, Config: map[string]any{"voiceContext": "intro"}},
			missing: "voiceAgentId",
		},
		{
			name: "voice accepts added_context",
			step: repository.Step{Type: repository.StepVoiceAgentCall, Config: map[string]any{
				"voiceAgentId": "agent-1", "added_context": "notes",
			}},
			valid: true,
		},
		{
			name: "voice without any context",
			step: repository.Step{Type: repository.StepVoiceAgentCall, Config: map[string]any{"voiceAgentId": "agent-1"}},
		},
		{
			name: "delay with zero duration",
			step: repository.Step{Type: repository.StepDelay, Config: map[string]any{"delayDays": float64(0)}},
		},
		{
			name:  "delay with hours",
			step:  repository.Step{Type: repository.StepDelay, Config: map[string]any{"delayHours": float64(2)}},
			valid: true,
		},
		{
			name: "delay with NaN",
			step: repository.Step{Type: repository.StepDelay, Config: map[string]any{"delayDays": math.NaN()}},
		},
		{
			name: "condition with bogus type",
			step: repository.Step{Type: repository.StepCondition, Config: map[string]any{"conditionType": "clicked"}},
		},
		{
			name:  "condition connected",
			step:  repository.Step{Type: repository.StepCondition, Config: map[string]any{"conditionType": "connected"}},
			valid: true,
		},
		{
			name: "lead generation with filters",
			step: repository.Step{Type: repository.StepLeadGeneration, Config: map[string]any{
				"leadGenerationFilters": map[string]any{"roles": []any{"CTO"}},
			}},
			valid: true,
		},
		{
			name:  "lead generation with limit only",
			step:  repository.Step{Type: repository.StepLeadGeneration, Config: map[string]any{"leadGenerationLimit": float64(25)}},
			valid: true,
		},
		{
			name: "lead generation with nothing",
			step: repository.Step{Type: repository.StepLeadGeneration, Config: map[string]any{}},
		},
		{
			name:  "unknown type passes",
			step:  repository.Step{Type: "custom_future_step", Config: map[string]any{}},
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(&tt.step)
			if result.Valid != tt.valid {
				t.Fatalf("Valid = %v, want %v (error %q)", result.Valid, tt.valid, result.Error)
			}
			if tt.missing != "" {
				found := false
				for _, f := range result.MissingFields {
					if f == tt.missing {
						found = true
					}
				}
				if !found {
					t.Fatalf("MissingFields = %v, want to contain %q", result.MissingFields, tt.missing)
				}
			}
		})
	}
}
