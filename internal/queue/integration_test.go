//go:build integration

package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shedgate/shedgate/internal/breaker"
	"github.com/shedgate/shedgate/internal/reconcile"
	"github.com/shedgate/shedgate/internal/store"
	"github.com/shedgate/shedgate/pkg/config"
	"github.com/shedgate/shedgate/pkg/types"
)

// TestNotificationQueueIntegration exercises the queue and worker against a
// real Redis instance.
// Run with: go test -tags=integration ./internal/queue
func TestNotificationQueueIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("Skipping integration test. Set INTEGRATION_TESTS=1 to run.")
	}

	cfg := &config.RedisConfig{
		Host:     getEnvOrDefault("TEST_REDIS_HOST", "localhost"),
		Port:     6379,
		Password: getEnvOrDefault("TEST_REDIS_PASSWORD", ""),
		DB:       1,
		PoolSize: 10,
	}

	redis, err := NewRedisClient(cfg)
	if err != nil {
		t.Fatalf("Failed to create Redis client: %v", err)
	}
	defer redis.Close()

	ctx := context.Background()
	if err := redis.Health(ctx); err != nil {
		t.Fatalf("Redis health check failed: %v", err)
	}
	redis.Client().FlushDB(ctx)

	q := NewNotificationQueue(redis, "integration-test")

	t.Run("EnqueueDequeue", func(t *testing.T) {
		payload := []byte(`{"name":"svc-Level1-ErrorRate","newState":"ALARM","oldState":"OK","reason":"Rate high"}`)

		itemID, err := q.Enqueue(ctx, payload)
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		if itemID == "" {
			t.Error("Enqueue should assign an item ID")
		}

		depth, err := q.Depth(ctx)
		if err != nil {
			t.Fatalf("Depth failed: %v", err)
		}
		if depth != 1 {
			t.Errorf("Expected depth 1, got %d", depth)
		}

		items, err := q.DequeueBatch(ctx, 10)
		if err != nil {
			t.Fatalf("DequeueBatch failed: %v", err)
		}
		if len(items) != 1 {
			t.Fatalf("Expected 1 item, got %d", len(items))
		}
		if items[0].ID != itemID {
			t.Errorf("Expected item ID %s, got %s", itemID, items[0].ID)
		}
	})

	t.Run("WorkerDrainsQueue", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		engine := breaker.NewEngine(memStore, nil, nil)
		processor := reconcile.NewProcessor(engine, nil, nil)

		payload := []byte(`{"name":"svc-Level1-ErrorRate","newState":"ALARM","oldState":"OK","reason":"Rate high"}`)
		for i := 0; i < 3; i++ {
			if _, err := q.Enqueue(ctx, payload); err != nil {
				t.Fatalf("Enqueue failed: %v", err)
			}
		}

		worker := NewWorker(q, processor, memStore, config.QueueConfig{
			Name:          "integration-test",
			BatchSize:     10,
			PollInterval:  50 * time.Millisecond,
			PurgeInterval: time.Hour,
		}, nil, nil)

		workerCtx, cancel := context.WithCancel(ctx)
		go worker.Start(workerCtx)

		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			state, err := memStore.GetState(ctx)
			if err == nil && state.FailureCount == 3 {
				break
			}
			time.Sleep(50 * time.Millisecond)
		}

		worker.Stop()
		cancel()

		state, err := memStore.GetState(ctx)
		if err != nil {
			t.Fatalf("GetState failed: %v", err)
		}
		if state.FailureCount != 3 {
			t.Errorf("Expected 3 recorded failures, got %d", state.FailureCount)
		}
		if memStore.EventCount(types.StreamFailure) != 3 {
			t.Errorf("Expected 3 failure events, got %d", memStore.EventCount(types.StreamFailure))
		}
	})
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
