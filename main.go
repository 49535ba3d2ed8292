package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"hvac-cache/internal/cache"
	"hvac-cache/internal/common/logging"
	"hvac-cache/internal/config"
	"hvac-cache/internal/observability"
	"hvac-cache/internal/redis"
	"hvac-cache/internal/server"
)

func main() {
	godotenv.Load()

	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logging.InitGlobalLogger()
	logger := logging.GetGlobalLogger()
	defer logging.MustSync()

	// Connect to the L2 backing store
	client, err := redis.NewClient(&redis.Config{
		Address:  cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDatabase(),
		PoolSize: cfg.RedisConnections(),
	})
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	sink := observability.NewLogSink(logger)

	// Warmup needs a business-data source and the standalone binary has none,
	// so it starts cold even when CACHE_WARMUP_ENABLED is set. Embedders pass
	// their WarmupSource implementation here.
	var warmupSource cache.WarmupSource

	// The engine owns the Redis client from here on
	engine := cache.New(cache.Config{
		KeyPrefix:            cfg.KeyPrefix,
		L1MaxEntries:         cfg.L1EntryLimit(),
		L1MaxBytes:           cfg.L1MaxBytes(),
		L2DefaultTTL:         cfg.L2TTL(),
		L3DefaultTTL:         cfg.L3TTL(),
		CompressionThreshold: cfg.CompressionThresholdBytes(),
		WarmupEnabled:        cfg.WarmupEnabled,
		InvalidationStrategy: cfg.InvalidationStrategy,
		CleanupInterval:      cfg.SweepInterval(),
	}, client, warmupSource, sink, logger)

	ctx := context.Background()
	if err := engine.Open(ctx); err != nil {
		log.Fatalf("Failed to open cache engine: %v", err)
	}

	// Admin surface: health, metrics, invalidation, clear
	handlers := server.NewHandlers(engine)
	srv := server.New(handlers.Router(), cfg.Port)

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	logger.Info("Cache engine serving", logging.Field{Key: "port", Value: cfg.Port})

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", err)
	}
	if err := engine.Close(); err != nil {
		logger.Error("Engine shutdown failed", err)
	}
}
