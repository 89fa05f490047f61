package queue

import (
	"context"
	"sync"
	"time"

	"github.com/shedgate/shedgate/internal/reconcile"
	"github.com/shedgate/shedgate/internal/store"
	"github.com/shedgate/shedgate/pkg/config"
	"github.com/shedgate/shedgate/pkg/logging"
	"github.com/shedgate/shedgate/pkg/metrics"
)

// WorkerStats contains worker statistics
type WorkerStats struct {
	BatchesProcessed int64     `json:"batches_processed"`
	ItemsProcessed   int64     `json:"items_processed"`
	ItemsErrored     int64     `json:"items_errored"`
	EventsPurged     int64     `json:"events_purged"`
	LastBatchAt      time.Time `json:"last_batch_at"`
	StartedAt        time.Time `json:"started_at"`
}

// Worker drains the notification queue in batches and hands them to the
// reconciliation processor. It also owns the periodic expired-event purge.
type Worker struct {
	queue     *NotificationQueue
	processor *reconcile.Processor
	store     store.Store
	cfg       config.QueueConfig
	logger    *logging.Logger
	metrics   *metrics.Metrics

	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.RWMutex
	running bool
	stats   WorkerStats
}

// NewWorker creates a new reconciliation worker
func NewWorker(q *NotificationQueue, processor *reconcile.Processor, s store.Store, cfg config.QueueConfig, logger *logging.Logger, m *metrics.Metrics) *Worker {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Worker{
		queue:     q,
		processor: processor,
		store:     s,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the worker loop until Stop is called or the context is canceled
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stats.StartedAt = time.Now()
	w.mu.Unlock()

	w.logger.Info("Reconciliation worker started",
		"queue", w.queue.Name(),
		"batch_size", w.cfg.BatchSize,
		"poll_interval", w.cfg.PollInterval.String(),
	)

	poll := time.NewTicker(w.cfg.PollInterval)
	defer poll.Stop()

	purge := time.NewTicker(w.cfg.PurgeInterval)
	defer purge.Stop()

	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-poll.C:
			w.drainOnce(ctx)
		case <-purge.C:
			w.purgeExpired(ctx)
		}
	}
}

// Stop signals the worker to stop and waits for the loop to exit
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.logger.Info("Reconciliation worker stopped", "queue", w.queue.Name())
}

// Stats returns a copy of the worker statistics
func (w *Worker) Stats() WorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *Worker) drainOnce(ctx context.Context) {
	items, err := w.queue.DequeueBatch(ctx, w.cfg.BatchSize)
	if err != nil {
		// The batch could not be read at all; nothing was dequeued, so the
		// delivery will be retried on the next poll.
		w.metrics.RecordError("worker", "dequeue")
		w.logger.WithError(err).Error("Failed to read notification batch")
		return
	}

	if depth, err := w.queue.Depth(ctx); err == nil {
		w.metrics.UpdateQueueDepth(w.queue.Name(), depth)
	}

	if len(items) == 0 {
		return
	}

	summary := w.processor.ProcessBatch(ctx, items)

	w.mu.Lock()
	w.stats.BatchesProcessed++
	w.stats.ItemsProcessed += int64(summary.Processed)
	w.stats.ItemsErrored += int64(summary.Errors)
	w.stats.LastBatchAt = time.Now()
	w.mu.Unlock()
}

func (w *Worker) purgeExpired(ctx context.Context) {
	purged, err := w.store.PurgeExpired(ctx)
	if err != nil {
		w.metrics.RecordError("worker", "purge")
		w.logger.WithError(err).Warn("Failed to purge expired events")
		return
	}

	if purged > 0 {
		w.logger.Info("Purged expired events", "purged", purged)
	}

	w.mu.Lock()
	w.stats.EventsPurged += purged
	w.mu.Unlock()
}
