package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/shedgate/shedgate/internal/api"
	"github.com/shedgate/shedgate/internal/breaker"
	"github.com/shedgate/shedgate/internal/database"
	"github.com/shedgate/shedgate/internal/downstream"
	"github.com/shedgate/shedgate/internal/queue"
	"github.com/shedgate/shedgate/internal/reconcile"
	"github.com/shedgate/shedgate/internal/store"
	"github.com/shedgate/shedgate/pkg/config"
	"github.com/shedgate/shedgate/pkg/logging"
	"github.com/shedgate/shedgate/pkg/metrics"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		ServiceName: "shedgate-api",
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

	migrator, err := database.NewMigrator(&cfg.Database, "migrations")
	if err != nil {
		log.Fatalf("Failed to initialize migrator: %v", err)
	}
	if err := migrator.Up(); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}
	migrator.Close()

	logger.Info("Database connection established")

	redis, err := queue.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	logger.Info("Redis connection established")

	m := metrics.NewMetrics(&metrics.Config{
		Namespace: cfg.Metrics.Namespace,
		Enabled:   cfg.Metrics.Enabled,
	})

	degradationStore := store.NewPostgresStore(db)
	engine := breaker.NewEngine(degradationStore, logger, m)
	invoker := downstream.NewHTTPInvoker(&cfg.Downstream)
	notifQueue := queue.NewNotificationQueue(redis, cfg.Queue.Name)
	processor := reconcile.NewProcessor(engine, logger, m)

	router := api.NewRouter(cfg, degradationStore, redis, engine, invoker, notifQueue, processor, logger, m)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting API server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
