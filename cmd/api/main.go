package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SwarupAusarkar/QuickPath/internal/config"
	"github.com/SwarupAusarkar/QuickPath/internal/handler"
	"github.com/SwarupAusarkar/QuickPath/internal/middleware"
	"github.com/SwarupAusarkar/QuickPath/internal/repository"
	"github.com/SwarupAusarkar/QuickPath/internal/service"
	"github.com/SwarupAusarkar/QuickPath/internal/storage"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Postgres
	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repository.Migrate(migrateCtx, db.Pool); err != nil {
		cancelMigrate()
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	cancelMigrate()
	logger.Info("Migrations applied")

	// Redis
	redis, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	// Blob storage for QR images
	objectStore, err := storage.NewMinioStorage(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to create storage client", zap.Error(err))
	}
	bucketCtx, cancelBucket := context.WithTimeout(context.Background(), 10*time.Second)
	if err := objectStore.EnsureBucket(bucketCtx); err != nil {
		cancelBucket()
		logger.Fatal("Failed to ensure QR bucket", zap.Error(err))
	}
	cancelBucket()
	logger.Info("Connected to object storage", zap.String("bucket", cfg.Storage.Bucket))

	// Repositories
	linkRepo := repository.NewLinkRepository(db)
	cacheRepo := repository.NewCacheRepository(redis)

	// Services
	codeGenerator := service.NewCodeGenerator(linkRepo)
	qrProducer := service.NewQRProducer(objectStore)

	qrProcessor := service.NewQRProcessor(qrProducer, linkRepo, cacheRepo, logger)
	qrProcessor.Start()
	defer qrProcessor.Stop()

	linkService := service.NewLinkService(
		linkRepo,
		cacheRepo,
		codeGenerator,
		qrProducer,
		qrProcessor,
		cfg.App.BaseURL,
		logger,
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})

	router := handler.NewRouter(linkService, rateLimiter, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
