package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SwipSwup/the-weather-archive/internal/cache"
	"github.com/SwipSwup/the-weather-archive/internal/capture"
	"github.com/SwipSwup/the-weather-archive/internal/config"
	"github.com/SwipSwup/the-weather-archive/internal/query"
	"github.com/SwipSwup/the-weather-archive/internal/render"
	"github.com/SwipSwup/the-weather-archive/internal/server"
	"github.com/SwipSwup/the-weather-archive/internal/storage"
	"github.com/SwipSwup/the-weather-archive/internal/upload"
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
		// The cache is best-effort; run degraded rather than refuse to start.
		logger.Warn("redis unavailable, serving without cache", "error", err)
		redisClient = nil
	}
	cacheStore := cache.New(redisClient, logger)

	captureRepo := capture.NewRepository(dbPool)
	renderRepo := render.NewRepository(dbPool)

	uploadService := upload.NewService(captureRepo, minioClient, cacheStore, cfg.MinIO.RawBucket, cfg.MinIO.UploadURLTTL)
	queryService := query.NewService(
		captureRepo, renderRepo, minioClient, cacheStore,
		cfg.MinIO.ProcessedBucket, cfg.MinIO.VideoBucket,
		cfg.MinIO.ReadURLTTL, cfg.Redis.FeedTTL, cfg.Redis.DatesTTL,
	)

	encoder := render.NewFFmpegEncoder(cfg.Render.FFmpegPath)
	scheduler := render.NewScheduler(
		captureRepo, renderRepo, render.NewMinIOStore(minioClient), encoder, cacheStore,
		cfg.MinIO.ProcessedBucket, cfg.MinIO.VideoBucket, logger,
	)

	router := server.NewRouter(server.Dependencies{
		Config:          cfg,
		DB:              dbPool,
		ObjectStore:     minioClient,
		Cache:           redisClient,
		UploadService:   uploadService,
		QueryService:    queryService,
		RenderScheduler: scheduler,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("weather archive API listening", "address", cfg.Server.Address())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
