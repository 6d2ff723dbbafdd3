package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach_backend/internal/accounts"
	"outreach_backend/internal/activity"
	"outreach_backend/internal/campaigns/repository"
	"outreach_backend/internal/email"
	"outreach_backend/internal/enrichment"
	domainevents "outreach_backend/internal/events"
	"outreach_backend/internal/instagram"
	"outreach_backend/internal/invitations"
	"outreach_backend/internal/polling"
	"outreach_backend/internal/provider/apollo"
	"outreach_backend/internal/provider/unipile"
	"outreach_backend/internal/provider/vapi"
	"outreach_backend/internal/quota"
	"outreach_backend/internal/scheduler"
	"outreach_backend/internal/sourcing"
	"outreach_backend/internal/summarizer"
	"outreach_backend/internal/whatsapp"
	"outreach_backend/internal/workflow"
	"outreach_backend/platform/config"
	"outreach_backend/platform/db"
	"outreach_backend/platform/events"
	"outreach_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Error("invalid redis url", "error", err)
			panic("invalid redis url: " + err.Error())
		}
		rdb := redis.NewClient(opt)
		defer func() { _ = rdb.Close() }()
		domainevents.NewRedisPublisher(rdb, log).Register(eventBus)
	}

	// Provider clients
	unipileClient := unipile.New(cfg, log)
	apolloClient := apollo.New(cfg, log)
	vapiClient := vapi.New(cfg, log)
	emailSender := email.NewSMTPSender(cfg)
	whatsappClient := whatsapp.NewClient(cfg, log)
	instagramClient := instagram.NewClient(cfg, log)

	summaries, err := summarizer.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize profile summarizer", "error", err)
		panic("failed to initialize profile summarizer: " + err.Error())
	}

	// Repositories
	campaignRepo := repository.NewCampaignRepository(pool)
	stepRepo := repository.NewStepRepository(pool)
	leadRepo := repository.NewLeadRepository(pool)
	execLogRepo := repository.NewExecutionLogRepository(pool)
	ledger := activity.NewRepository(pool)
	accountRepo := accounts.NewRepository(pool)
	trackRepo := invitations.NewRepository(pool)

	// Execution pipeline
	accountPool := accounts.NewPool(accountRepo, accounts.NewUnipileProber(unipileClient), eventBus, cfg, log)
	gate := quota.NewGate(accountRepo, ledger, log)
	enricher := enrichment.NewService(enrichment.NewRepository(pool), enrichment.NewApolloClient(apolloClient), log)

	sourcer := sourcing.New(
		campaignRepo, stepRepo, leadRepo, ledger,
		apolloClient, sourcing.NewCacheRepository(pool, 24*time.Hour),
		cfg.SchedulerTimezone, log,
	)

	dispatcher := workflow.NewConnectDispatcher(unipileClient, accountPool, trackRepo, cfg.GetPostInviteQuiescence(), log)
	executor := workflow.NewExecutor(workflow.ExecutorDeps{
		Ledger:      ledger,
		Leads:       leadRepo,
		Quota:       gate,
		Pool:        accountPool,
		LinkedIn:    unipileClient,
		Email:       emailSender,
		WhatsApp:    whatsappClient,
		Instagram:   instagramClient,
		Voice:       vapiClient,
		Enricher:    enricher,
		Summarizer:  summaries,
		Invitations: trackRepo,
		Sourcer:     sourcer,
		Dispatcher:  dispatcher,
		Validator:   workflow.NewValidator(),
		Logger:      log,
	})
	driver := workflow.NewDriver(ledger, leadRepo, executor, log)

	schedClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = schedClient.Close() }()

	runner := scheduler.NewDailyRunner(scheduler.DailyRunnerDeps{
		DB:        pool,
		Campaigns: campaignRepo,
		Steps:     stepRepo,
		Leads:     leadRepo,
		ExecLog:   execLogRepo,
		Sourcer:   sourcer,
		Driver:    driver,
		Enqueue:   schedClient,
		Bus:       eventBus,
		Timezone:  cfg.SchedulerTimezone,
		Logger:    log,
	})

	poller := polling.NewWorker(cfg, polling.WorkerDeps{
		Accounts:  accountRepo,
		Campaigns: campaignRepo,
		Tracks:    trackRepo,
		LinkedIn:  unipileClient,
		Ledger:    ledger,
		Leads:     leadRepo,
		Bus:       eventBus,
		Logger:    log,
	})
	if err := poller.Start(ctx); err != nil {
		log.Error("failed to start invitation polling", "error", err)
		panic("failed to start invitation polling: " + err.Error())
	}
	defer poller.Stop()

	worker, err := scheduler.NewWorker(cfg, runner, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
