package workflow

import (
	"math"
	"time"

	"outreach_backend/internal/campaigns/repository"
)

// DelayDuration computes the wait a delay step imposes from its config
// (delayDays, delayHours, delayMinutes; any combination, summed).
func DelayDuration(step *repository.Step) time.Duration {
	days := configNumber(step.Config, "delayDays")
	hours := configNumber(step.Config, "delayHours")
	minutes := configNumber(step.Config, "delayMinutes")

	return time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute
}

func configNumber(cfg map[string]any, key string) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case float64:
		if math.IsNaN(v) {
			return 0
		}
		return int(v)
	default:
		return 0
	}
}
