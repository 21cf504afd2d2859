package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/SwipSwup/the-weather-archive/internal/cache"
	"github.com/SwipSwup/the-weather-archive/internal/capture"
	"github.com/SwipSwup/the-weather-archive/internal/config"
	"github.com/SwipSwup/the-weather-archive/internal/ingest"
	"github.com/SwipSwup/the-weather-archive/internal/render"
	"github.com/SwipSwup/the-weather-archive/internal/storage"
	"github.com/SwipSwup/the-weather-archive/internal/weather"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer dbPool.Close()

	if err := storage.ApplySchema(ctx, dbPool); err != nil {
		log.Fatalf("apply schema: %v", err)
	}

	minioClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("connect minio: %v", err)
	}

	if err := storage.EnsureBuckets(ctx, minioClient, cfg.MinIO); err != nil {
		log.Fatalf("ensure buckets: %v", err)
	}

	redisClient, err := storage.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, running without cache", "error", err)
		redisClient = nil
	}
	cacheStore := cache.New(redisClient, logger)

	captureRepo := capture.NewRepository(dbPool)
	renderRepo := render.NewRepository(dbPool)
	weatherClient := weather.NewClient(cfg.Weather)

	objectStore := ingest.NewMinIOStore(minioClient)
	enricher := ingest.NewEnricher(
		objectStore, captureRepo, weatherClient, cacheStore,
		cfg.MinIO.RawBucket, cfg.MinIO.ProcessedBucket, cfg.Weather.Timeout, logger,
	)
	listener := ingest.NewListener(minioClient, enricher, cfg.MinIO.RawBucket, logger)
	reconciler := ingest.NewReconciler(
		objectStore, captureRepo, enricher,
		cfg.MinIO.RawBucket, cfg.MinIO.ProcessedBucket, logger,
	)

	scheduler := render.NewScheduler(
		captureRepo, renderRepo, render.NewMinIOStore(minioClient),
		render.NewFFmpegEncoder(cfg.Render.FFmpegPath), cacheStore,
		cfg.MinIO.ProcessedBucket, cfg.MinIO.VideoBucket, logger,
	)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("ingestion listener started", "bucket", cfg.MinIO.RawBucket)
		listener.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("reconcile sweep started", "interval", cfg.Ingest.ReconcileInterval)
		reconciler.Run(ctx, cfg.Ingest.ReconcileInterval)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.RunEvery(ctx, cfg.Render.Interval)
	}()

	<-ctx.Done()
	logger.Info("shutting down worker")
	wg.Wait()
}
