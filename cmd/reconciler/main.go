package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/shedgate/shedgate/internal/breaker"
	"github.com/shedgate/shedgate/internal/database"
	"github.com/shedgate/shedgate/internal/queue"
	"github.com/shedgate/shedgate/internal/reconcile"
	"github.com/shedgate/shedgate/internal/store"
	"github.com/shedgate/shedgate/pkg/config"
	"github.com/shedgate/shedgate/pkg/logging"
	"github.com/shedgate/shedgate/pkg/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		ServiceName: "shedgate-reconciler",
		Version:     "1.0.0",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logging.SetGlobalLogger(logger)

	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redis, err := queue.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	m := metrics.NewMetrics(&metrics.Config{
		Namespace: cfg.Metrics.Namespace,
		Subsystem: "reconciler",
		Enabled:   cfg.Metrics.Enabled,
	})

	degradationStore := store.NewPostgresStore(db)
	engine := breaker.NewEngine(degradationStore, logger, m)
	processor := reconcile.NewProcessor(engine, logger, m)
	notifQueue := queue.NewNotificationQueue(redis, cfg.Queue.Name)

	worker := queue.NewWorker(notifQueue, processor, degradationStore, cfg.Queue, logger, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down reconciler")
	worker.Stop()
	logger.Info("Reconciler exited")
}
