package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskCampaignDailyRun = "campaigns.daily_run"

// DailyRunPayload identifies one campaign's daily run. ScheduledFor is the
// tenant-local run date (YYYY-MM-DD); together with the campaign id it forms
// the task's unique id, so double-enqueueing the same day is harmless.
type DailyRunPayload struct {
	CampaignID   string `json:"campaignId"`
	TenantID     string `json:"tenantId"`
	ScheduledFor string `json:"scheduledFor"`
}

func NewDailyRunTask(payload DailyRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCampaignDailyRun, data), nil
}

func ParseDailyRunPayload(task *asynq.Task) (DailyRunPayload, error) {
	var payload DailyRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DailyRunPayload{}, err
	}
	return payload, nil
}
