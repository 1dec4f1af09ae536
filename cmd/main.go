package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/matchday/broadcast"
	"github.com/Dosada05/matchday/config"
	"github.com/Dosada05/matchday/db"
	"github.com/Dosada05/matchday/handlers"
	"github.com/Dosada05/matchday/repositories"
	"github.com/Dosada05/matchday/routes"
	"github.com/Dosada05/matchday/scheduler"
	"github.com/Dosada05/matchday/services"
	"github.com/Dosada05/matchday/storage"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("db_driver", cfg.DatabaseDriver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Подключение к базе данных и миграции
	dbConn, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	if err := db.Migrate(dbConn, cfg.DatabaseDriver); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	logger.Info("database ready")

	g, gCtx := errgroup.WithContext(ctx)

	// Хаб трансляций и, при наличии Redis, ретранслятор между инстансами
	hub := broadcast.NewHub(logger)
	var notifier broadcast.Notifier = hub
	if cfg.RedisURL != "" {
		redisClient, err := broadcast.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()

		relay := broadcast.NewRedisRelay(redisClient, hub, broadcast.DefaultRelayChannel, logger)
		notifier = relay
		g.Go(func() error { return relay.Run(gCtx) })
		logger.Info("redis broadcast relay enabled")
	}

	// Планировщик heartbeat
	sched, err := scheduler.New(logger)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if err := scheduler.RegisterHeartbeat(sched, hub, cfg.HeartbeatInterval); err != nil {
		return fmt.Errorf("failed to register heartbeat job: %w", err)
	}
	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			logger.Error("failed to stop scheduler", slog.Any("error", err))
		}
	}()

	// Архив итоговых отчётов (Cloudflare R2), опционально
	var archive storage.FileUploader
	if cfg.ArchiveEnabled() {
		archive, err = storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		logger.Info("final report archive enabled", slog.String("bucket", cfg.R2BucketName))
	}

	// Инициализация репозиториев
	teamRepo := repositories.NewTeamRepository(dbConn)
	playerRepo := repositories.NewPlayerRepository(dbConn)
	matchRepo := repositories.NewMatchRepository(dbConn)
	stateRepo := repositories.NewMatchStateRepository(dbConn)
	periodRepo := repositories.NewPeriodRepository(dbConn)
	eventRepo := repositories.NewEventRepository(dbConn)

	// Инициализация сервисов
	withLogger := services.WithLogger(logger)
	withArchive := services.WithArchive(archive)
	snapshotService := services.NewSnapshotService(matchRepo, stateRepo, periodRepo, eventRepo, teamRepo, playerRepo, withLogger)
	teamService := services.NewTeamService(teamRepo, playerRepo, withLogger)
	matchService := services.NewMatchService(matchRepo, stateRepo, teamRepo, withLogger, withArchive)
	periodService := services.NewPeriodService(dbConn, matchRepo, stateRepo, periodRepo, notifier, withLogger)
	lifecycleService := services.NewLifecycleService(dbConn, matchRepo, stateRepo, periodRepo, notifier, snapshotService, archive, withLogger)
	eventService := services.NewEventService(matchRepo, stateRepo, eventRepo, playerRepo, notifier, withLogger)

	router := routes.InitRoutes(routes.Config{
		JWTSecret:      []byte(cfg.JWTSecretKey),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	}, routes.Handlers{
		Teams:     handlers.NewTeamHandler(teamService),
		Matches:   handlers.NewMatchHandler(matchService),
		Lifecycle: handlers.NewLifecycleHandler(lifecycleService),
		Periods:   handlers.NewPeriodHandler(periodService),
		Events:    handlers.NewEventHandler(eventService, snapshotService),
		Stream:    handlers.NewStreamHandler(hub, snapshotService),
		WebSocket: handlers.NewWebSocketHandler(hub, snapshotService, nil),
	})

	// Read/WriteTimeout не задаются: SSE-потоки живут долго, дедлайн ставится на каждую запись
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", cfg.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			return server.Close()
		}
		logger.Info("server shutdown complete")
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("application exited")
	return nil
}
