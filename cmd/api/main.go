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
	"outreach_backend/internal/campaigns"
	"outreach_backend/internal/campaigns/handler"
	"outreach_backend/internal/campaigns/repository"
	"outreach_backend/internal/campaigns/service"
	domainevents "outreach_backend/internal/events"
	apphttp "outreach_backend/internal/http"
	"outreach_backend/internal/provider/unipile"
	"outreach_backend/internal/scheduler"
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
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
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
		log.Info("redis event publisher registered")
	} else {
		log.Warn("REDIS_URL not configured; realtime events disabled")
	}

	runScheduler, closeScheduler := initRunScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	unipileClient := unipile.New(cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	accountRepo := accounts.NewRepository(pool)
	accountPool := accounts.NewPool(accountRepo, accounts.NewUnipileProber(unipileClient), eventBus, cfg, log)
	accountsModule := accounts.NewModule(accounts.NewHandler(accounts.NewService(accountRepo, accountPool, cfg, log)))

	campaignRepo := repository.NewCampaignRepository(pool)
	stepRepo := repository.NewStepRepository(pool)
	leadRepo := repository.NewLeadRepository(pool)
	execLogRepo := repository.NewExecutionLogRepository(pool)
	ledger := activity.NewRepository(pool)

	campaignService := service.New(
		campaignRepo, stepRepo, leadRepo, execLogRepo, ledger,
		workflow.NewValidator(), runScheduler, eventBus, log,
	)
	campaignsModule := campaigns.NewModule(handler.NewHandler(campaignService))

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			campaignsModule,
			accountsModule,
		},
	}

	engine := apphttp.NewRouter(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initRunScheduler(cfg config.SchedulerConfig, log *logger.Logger) (service.RunScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; campaign start will not enqueue runs")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
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
