package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flashquiz-backend/internal/config"
	"flashquiz-backend/internal/database"
	"flashquiz-backend/internal/handlers"
	"flashquiz-backend/internal/logger"
	"flashquiz-backend/internal/middleware"
	"flashquiz-backend/internal/quiz"
	"flashquiz-backend/internal/repository"
	"flashquiz-backend/internal/router"
	"flashquiz-backend/internal/services"
	"flashquiz-backend/internal/storage"
	"flashquiz-backend/internal/websocket"
	"flashquiz-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ logger init failed: %v\n", err)
		os.Exit(1)
	}
	log = log.WithHashSalt(cfg.LogHashSalt)
	defer log.Sync()

	log.Info("🚀 Starting FlashQuiz Backend...")
	log.Info("✓ Environment variables loaded", "env", cfg.Env)

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(database.PostgresOptions{
		URL:      cfg.DatabaseURL,
		MaxConns: int32(cfg.DBMaxConns),
		MinConns: int32(cfg.DBMinConns),
	})
	if err != nil {
		log.Fatal("✗ PostgreSQL connection failed", "error", err)
	}
	defer pool.Close()
	log.Info("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(database.RedisOptions{
		URL:          cfg.RedisURL,
		PoolSize:     cfg.RedisPoolSize,
		DialTimeout:  cfg.RedisDialTimeout,
		ReadTimeout:  cfg.RedisReadTimeout,
		WriteTimeout: cfg.RedisWriteTimeout,
		QueueWorkers: cfg.ProgressWorkers,
	})
	if err != nil {
		log.Fatal("✗ Redis connection failed", "error", err)
	}
	defer redisClients.Close()
	log.Info("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, cfg.MigrationsDir, log); err != nil {
		log.Fatal("✗ Database migration failed", "error", err)
	}
	log.Info("✓ Database migrations applied")

	// ──── Step 5: Object Storage ────
	images, err := storage.NewImageResolver(context.Background(), storage.Config{
		Bucket:        cfg.GCSBucket,
		CDNDomain:     cfg.GCSCDNDomain,
		PublicBaseURL: cfg.PublicBaseURL,
		EmulatorHost:  cfg.StorageEmulatorHost,
	}, log)
	if err != nil {
		log.Fatal("✗ Object storage init failed", "error", err)
	}
	defer images.Close()
	log.Info("✓ Image resolver ready", "bucket", cfg.GCSBucket)

	// ──── Initialize Repositories ────
	setRepo := repository.NewSetRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)
	historyRepo := repository.NewHistoryRepo(pool)
	progressRepo := repository.NewProgressRepo(pool)
	sessionCache := repository.NewSessionCache(redisClients.Cache, cfg.SessionCacheTTL)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	publisher := services.NewPublisher(redisClients.Cache)
	store := services.NewQuizStore(setRepo, sessionRepo, sessionCache, historyRepo, images, log)
	progressService := services.NewProgressService(progressRepo, publisher, log)

	// ──── Step 6: Start Progress Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, progressService, log, cfg.ProgressWorkers)
	workerPool.Start()
	log.Info("✓ Worker pool started", "workers", cfg.ProgressWorkers)

	saver := quiz.NewAsyncSaver(store, log)
	saver.Start()

	orchestrator := quiz.NewOrchestrator(quiz.OrchestratorConfig{
		Gateway:       store,
		Saver:         saver,
		Notifier:      publisher,
		Sink:          workerPool,
		Logger:        log,
		FeedbackClear: cfg.FeedbackClear,
		IdleTTL:       cfg.SessionIdleTTL,
	})
	orchestrator.Start()
	log.Info("✓ Quiz orchestrator started")

	streakScheduler := services.NewStreakScheduler(progressRepo, publisher, log)
	streakScheduler.Start()
	log.Info("✓ Streak scheduler started")

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, log)
	log.Info("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
	r := router.New(
		jwtAuth,
		limiter,
		handlers.NewQuizHandler(orchestrator, log),
		handlers.NewHistoryHandler(historyRepo, progressService, log),
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)

		// engines first so their last snapshots reach the saver
		orchestrator.Stop()
		saver.Stop()
		workerPool.Stop()
		streakScheduler.Stop()
		limiter.Stop()
		wsHub.Close()
	}()

	log.Info(fmt.Sprintf("✓ FlashQuiz Backend ready on http://localhost:%s", cfg.Port))
	log.Info(fmt.Sprintf("  API: http://localhost:%s/api/v1", cfg.Port))
	log.Info(fmt.Sprintf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port))

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("Server error", "error", err)
	}
	<-shutdownDone
}
