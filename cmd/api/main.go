// Package main - точка входа HTTP API Pulse Engagement Hub.
//
// API обслуживает запись активности сотрудников (транзакции баллов,
// серии) и чтение прогресса: баланс, уровень, бейджи, лидерборд, цели.
// Источник истины - журнал транзакций в PostgreSQL; Redis выступает
// кешем лидерборда и шиной событий между экземплярами.
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
	"github.com/pulsehub/pulse-engagement-hub/internal/application/eventhandler"
	"github.com/pulsehub/pulse-engagement-hub/internal/application/query"
	"github.com/pulsehub/pulse-engagement-hub/internal/application/saga"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/ledger"
	"github.com/pulsehub/pulse-engagement-hub/internal/domain/shared"
	"github.com/pulsehub/pulse-engagement-hub/internal/infrastructure/messaging"
	"github.com/pulsehub/pulse-engagement-hub/internal/infrastructure/persistence/postgres"
	"github.com/pulsehub/pulse-engagement-hub/internal/infrastructure/persistence/projections"
	"github.com/pulsehub/pulse-engagement-hub/internal/infrastructure/persistence/redis"
	httpapi "github.com/pulsehub/pulse-engagement-hub/internal/interface/http"
	"github.com/pulsehub/pulse-engagement-hub/pkg/logger"
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

	slogger := setupSlog(cfg)
	log := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})

	slogger.Info("starting Pulse Engagement Hub API",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
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
	slogger.Info("database ready")

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		cache            *redis.Cache
		leaderboardCache ledger.LeaderboardCache
		progressCache    query.ProgressCache
	)
	if !cfg.Redis.Disabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		if cfg.Redis.PoolSize > 0 {
			redisCfg.PoolSize = cfg.Redis.PoolSize
		}

		cache, err = redis.NewCache(redisCfg)
		if err != nil {
			slogger.Warn("Redis unavailable, running without cache", "error", err)
			cache = nil
		} else {
			defer cache.Close()
			leaderboardCache = redis.NewLeaderboardCache(cache)
			progressCache = redis.NewProgressCache(cache)
			slogger.Info("Redis ready", "addr", redisCfg.Addr())
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ШИНА СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = slogger

	var eventBus shared.EventBus
	if cache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewCachePubSubAdapter(cache),
			LocalBusConfig: busConfig,
			Logger:         slogger,
		})
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		defer func() { _ = redisBus.Close() }()
		eventBus = redisBus
	} else {
		localBus := messaging.NewInMemoryEventBus(busConfig)
		defer func() { _ = localBus.Close() }()
		eventBus = localBus
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. РЕПОЗИТОРИИ И ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	ledgerRepo := postgres.NewLedgerRepository(dbConn)
	badgeRepo := postgres.NewBadgeRepository(dbConn)
	goalRepo := postgres.NewGoalRepository(dbConn)
	outboxRepo := postgres.NewOutboxRepository(dbConn)

	recordPoints := command.NewRecordPointsHandler(ledgerRepo, leaderboardCache, eventBus)
	updateStreak := command.NewUpdateStreakHandler(ledgerRepo, outboxRepo, eventBus)
	badgeFlow := saga.NewBadgeAwardFlow(ledgerRepo, badgeRepo, recordPoints, outboxRepo, eventBus, log)

	getProgress := query.NewGetUserProgressHandler(ledgerRepo, badgeRepo, progressCache)
	getHistory := query.NewGetLedgerHistoryHandler(ledgerRepo)
	getLeaderboard := query.NewGetLeaderboardHandler(leaderboardCache, ledgerRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ПОДПИСКИ НА СОБЫТИЯ
	// ─────────────────────────────────────────────────────────────────────────
	dispatcher := messaging.NewDispatcher(messaging.DispatcherConfig{
		Bus:    eventBus,
		Logger: slogger,
	})

	onPointsEarned := eventhandler.NewOnPointsEarnedHandler(badgeFlow, updateStreak, slogger)
	if err := dispatcher.Register(shared.EventPointsEarned, "on_points_earned", onPointsEarned.Handle); err != nil {
		return fmt.Errorf("failed to register event handler: %w", err)
	}

	onLevelUp := eventhandler.NewOnLevelUpHandler(outboxRepo, slogger)
	if err := dispatcher.Register(shared.EventLevelUp, "on_level_up", onLevelUp.Handle); err != nil {
		return fmt.Errorf("failed to register event handler: %w", err)
	}

	overview := projections.NewEngagementView()
	if err := eventBus.SubscribeAll(overview.Apply); err != nil {
		return fmt.Errorf("failed to subscribe overview projection: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.RateLimitPerWindow = cfg.HTTP.RateLimit
	serverCfg.RateLimitWindow = cfg.HTTP.RateLimitWindow

	deps := httpapi.Dependencies{
		RecordPoints:     recordPoints,
		UpdateStreak:     updateStreak,
		BadgeFlow:        badgeFlow,
		GetUserProgress:  getProgress,
		GetLedgerHistory: getHistory,
		GetLeaderboard:   getLeaderboard,
		GoalRepo:         goalRepo,
		Overview:         overview,
		Database:         dbConn,
		Logger:           log,
	}
	if cache != nil {
		deps.Cache = cache
		deps.RateLimiter = httpapi.NewRedisRateLimiter(cache, serverCfg.RateLimitPerWindow, serverCfg.RateLimitWindow)
	}

	server := httpapi.NewServer(serverCfg, deps)
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slogger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	slogger.Info("shutdown completed")
	return nil
}

// setupSlog настраивает структурированное логирование для инфраструктуры.
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
