package scheduler

import (
	"context"
	"fmt"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Worker consumes campaign run tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner *DailyRunner
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, runner *DailyRunner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		runner: runner,
		log:    log,
	}

	mux.HandleFunc(TaskCampaignDailyRun, w.handleDailyRun)

	return w, nil
}

func (w *Worker) handleDailyRun(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDailyRunPayload(task)
	if err != nil {
		return err
	}

	campaignID, err := uuid.Parse(payload.CampaignID)
	if err != nil {
		return err
	}

	return w.runner.Run(ctx, campaignID)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
