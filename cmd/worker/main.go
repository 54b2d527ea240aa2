// Package main - точка входа фоновых процессов (Worker) Pulse Engagement Hub.
//
// Worker выполняет периодические задачи движка вовлечённости:
//   - подстройка сложности целей (эскалация / продление дедлайнов)
//   - доставка уведомлений из исходящей очереди
//   - пересборка лидерборда из агрегатов
//   - сверка агрегатов с воспроизведением журнала
//   - дозачисление бонусов за бейджи
//   - очистка доставленных записей очереди
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulsehub/pulse-engagement-hub/config"
	"github.com/pulsehub/pulse-engagement-hub/internal/application/command"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/ledger"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/notification"
	"github.com/pulsehub/pulse-engagement-hub/internal/infrastructure/messaging"
	"github.com/pulsehub/pulse-engagement-hub/internal/infrastructure/persistence/postgres"
	"github.com/pulsehub/pulse-engagement-hub/internal/infrastructure/persistence/redis"
	"github.com/pulsehub/pulse-engagement-hub/internal/infrastructure/scheduler"
	"github.com/pulsehub/pulse-engagement-hub/internal/infrastructure/scheduler/jobs"
	"github.com/pulsehub/pulse-engagement-hub/internal/infrastructure/service"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupSlog(cfg)
	log.Info("starting Pulse Engagement Hub Worker",
		"env", string(cfg.App.Environment),
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database ready")

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		cache            *redis.Cache
		leaderboardCache ledger.LeaderboardCache
	)
	if !cfg.Redis.Disabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB

		cache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("Redis unavailable, leaderboard rebuilds disabled", "error", err)
			cache = nil
		} else {
			defer cache.Close()
			leaderboardCache = redis.NewLeaderboardCache(cache)
			log.Info("Redis ready", "addr", redisCfg.Addr())
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ШИНА СОБЫТИЙ И ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busConfig)
	defer func() { _ = eventBus.Close() }()

	ledgerRepo := postgres.NewLedgerRepository(dbConn)
	badgeRepo := postgres.NewBadgeRepository(dbConn)
	goalRepo := postgres.NewGoalRepository(dbConn)
	outboxRepo := postgres.NewOutboxRepository(dbConn)

	recordPoints := command.NewRecordPointsHandler(ledgerRepo, leaderboardCache, eventBus)
	reconciler := command.NewReconcileAggregateHandler(ledgerRepo, eventBus)

	var notifier notification.Notifier
	if cfg.Notifier.BaseURL != "" {
		notifier = service.NewWebhookNotifier(service.WebhookNotifierConfig{
			BaseURL:        cfg.Notifier.BaseURL,
			APIKey:         cfg.Notifier.APIKey,
			RequestTimeout: cfg.Notifier.RequestTimeout,
		})
	} else {
		log.Warn("NOTIFIER_BASE_URL is not set, notifications go to the log")
		notifier = service.NewLogNotifier(log)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ПЛАНИРОВЩИК И ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	adjustCfg := jobs.DefaultAdjustGoalDifficultyConfig()
	adjustCfg.Timeout = cfg.Scheduler.JobTimeout
	adjustCfg.Enabled = func() bool {
		return cfg.Features.IsEnabled(config.FeatureGoalAdjustment, nil)
	}
	adjustJob := jobs.NewAdjustGoalDifficultyJob(goalRepo, outboxRepo, eventBus, log, adjustCfg)

	dispatchCfg := jobs.DefaultDispatchOutboxConfig()
	dispatchCfg.BatchSize = cfg.Notifier.DispatchBatch
	dispatchCfg.MaxAttempts = cfg.Notifier.MaxAttempts
	dispatchJob := jobs.NewDispatchOutboxJob(outboxRepo, notifier, log, dispatchCfg)

	verifyCfg := jobs.DefaultVerifyAggregatesConfig()
	verifyCfg.Timeout = cfg.Scheduler.JobTimeout
	verifyJob := jobs.NewVerifyAggregatesJob(ledgerRepo, reconciler, log, verifyCfg)

	reconcileJob := jobs.NewReconcileBonusesJob(badgeRepo, ledgerRepo, recordPoints, log, jobs.DefaultReconcileBonusesConfig())
	purgeJob := jobs.NewPurgeOutboxJob(outboxRepo, 0, log)

	register := func(job scheduler.Job, schedule scheduler.Schedule) error {
		if err := sched.Register(job, schedule); err != nil {
			return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
		}
		return nil
	}

	if err := register(adjustJob, scheduler.NewIntervalSchedule(cfg.Scheduler.AdjustGoalsInterval)); err != nil {
		return err
	}
	if err := register(dispatchJob, scheduler.NewIntervalSchedule(cfg.Scheduler.DispatchOutboxInterval)); err != nil {
		return err
	}
	if err := register(verifyJob, scheduler.NewIntervalSchedule(cfg.Scheduler.VerifyAggregatesInterval)); err != nil {
		return err
	}
	if err := register(reconcileJob, scheduler.NewIntervalSchedule(cfg.Scheduler.ReconcileBonusesInterval)); err != nil {
		return err
	}
	if err := register(purgeJob, scheduler.NewIntervalSchedule(cfg.Scheduler.CleanupInterval)); err != nil {
		return err
	}

	if leaderboardCache != nil {
		rebuildJob := jobs.NewRebuildLeaderboardJob(ledgerRepo, leaderboardCache, log, jobs.DefaultRebuildLeaderboardConfig())
		if err := register(rebuildJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RebuildLeaderboardInterval)); err != nil {
			return err
		}
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("worker is running", "jobs", len(sched.ListJobs()))

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	if err := sched.Stop(); err != nil {
		log.Warn("scheduler stop failed", "error", err)
	}

	log.Info("shutdown completed")
	return nil
}

// setupSlog настраивает структурированное логирование.
func setupSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug || cfg.Observability.LogLevel == "debug" {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
