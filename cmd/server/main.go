// Package main - точка входа HTTP-сервиса Cert Prep Hub.
//
// Сервис ведёт прогрессию и рейтинги платформы подготовки к
// сертификационным экзаменам: квиз-сессии, учёт попыток, XP/уровни/стрики,
// достижения и мультиметричные лидерборды.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries)
// - Infrastructure: PostgreSQL, Redis, event bus
// - Interface: HTTP endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/certlab/cert-prep-hub/config"
	"github.com/certlab/cert-prep-hub/internal/application/command"
	"github.com/certlab/cert-prep-hub/internal/application/query"
	"github.com/certlab/cert-prep-hub/internal/domain/leaderboard"
	"github.com/certlab/cert-prep-hub/internal/infrastructure/messaging"
	"github.com/certlab/cert-prep-hub/internal/infrastructure/persistence/postgres"
	rediscache "github.com/certlab/cert-prep-hub/internal/infrastructure/persistence/redis"
	httpserver "github.com/certlab/cert-prep-hub/internal/interface/http"
	"github.com/certlab/cert-prep-hub/pkg/logger"
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
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	logOpts := logger.DefaultOptions()
	logOpts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	log := logger.New(logOpts)

	log.Info("starting Cert Prep Hub",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Bool("debug", cfg.App.Debug),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.AutoMigrate {
		log.Info("running database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		status, err := migrator.Status(ctx)
		if err != nil {
			log.Warn("failed to get migration status", logger.Err(err))
		} else {
			applied := 0
			for _, m := range status {
				if m.IsApplied {
					applied++
				}
			}
			log.Info("migrations completed",
				logger.Int("applied", applied),
				logger.Int("total", len(status)),
			)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	// Кеш лидерборда - чистая оптимизация чтения: без Redis все запросы
	// идут в PostgreSQL.
	var redisCache *rediscache.Cache
	var lbCache leaderboard.Cache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := rediscache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}
		redisCache, err = rediscache.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, leaderboard caching disabled", logger.Err(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
			lbCache = rediscache.NewLeaderboardCache(redisCache)
			log.Info("Redis connection established")

			// Страницы, закешированные прошлым деплоем, могли считаться
			// по другим правилам ранжирования - сбрасываем на старте.
			if err := lbCache.Invalidate(ctx); err != nil {
				log.Warn("failed to invalidate leaderboard cache", logger.Err(err))
			}
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	sessionRepo := postgres.NewSessionRepository(dbConn)
	questionRepo := postgres.NewQuestionRepository(dbConn)
	attemptRepo := postgres.NewAttemptRepository(dbConn)
	profileRepo := postgres.NewProfileRepository(dbConn)
	achievementRepo := postgres.NewAchievementRepository(dbConn)
	leaderboardRepo := postgres.NewLeaderboardRepository(dbConn)

	txManager := postgres.NewTxManager(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// Встроенные слушатели: журнал активности и уведомления о вехах.
	// Внешний канал уведомлений не подключён, вехи уходят в лог.
	if err := messaging.Subscriptions(eventBus, log, nil); err != nil {
		return fmt.Errorf("failed to register event listeners: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ИНИЦИАЛИЗАЦИЯ APPLICATION LAYER (Commands, Queries)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	startSessionCmd := command.NewStartSessionHandler(sessionRepo, questionRepo, eventBus, log)
	submitAnswerCmd := command.NewSubmitAnswerHandler(
		sessionRepo, questionRepo, profileRepo, attemptRepo, achievementRepo,
		txManager, eventBus, log,
	)
	abandonSessionCmd := command.NewAbandonSessionHandler(sessionRepo, eventBus, log)
	submitAttemptCmd := command.NewSubmitAttemptHandler(
		questionRepo, profileRepo, attemptRepo, achievementRepo,
		txManager, eventBus, log,
	)

	activeSessionQuery := query.NewGetActiveSessionHandler(sessionRepo, questionRepo)
	progressQuery := query.NewGetProgressHandler(profileRepo, attemptRepo, achievementRepo)
	leaderboardQuery := query.NewGetLeaderboardHandler(
		leaderboardRepo,
		lbCache,
		query.GetLeaderboardHandlerConfig{
			PageTTL: cfg.Leaderboard.PageTTL,
			RankTTL: cfg.Leaderboard.RankTTL,
		},
		log,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := httpserver.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("postgres", httpserver.NewPingCheck(dbConn))
	if redisCache != nil {
		healthChecker.AddCheck("redis", httpserver.NewPingCheck(redisCache))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. СОЗДАНИЕ HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.EnableCORS = cfg.HTTP.EnableCORS
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	httpDeps := httpserver.Dependencies{
		StartSessionHandler:     startSessionCmd,
		SubmitAnswerHandler:     submitAnswerCmd,
		AbandonSessionHandler:   abandonSessionCmd,
		SubmitAttemptHandler:    submitAttemptCmd,
		GetActiveSessionHandler: activeSessionQuery,
		GetProgressHandler:      progressQuery,
		GetLeaderboardHandler:   leaderboardQuery,
		Logger:                  log,
		HealthChecker:           healthChecker,
	}

	httpServer := httpserver.NewServer(httpConfig, httpDeps)

	// ─────────────────────────────────────────────────────────────────────────
	// 11. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", logger.String("address", httpServer.Address()))
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	log.Info("Cert Prep Hub is running", logger.String("http_address", httpServer.Address()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("service error", logger.Err(err))
		return err
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown...",
		logger.String("timeout", cfg.App.ShutdownTimeout.String()),
	)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	// Event bus и соединения закроются через defer.
	log.Info("shutdown completed successfully")
	return nil
}
