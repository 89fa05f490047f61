package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shedgate/shedgate/internal/queue"
	"github.com/shedgate/shedgate/internal/reconcile"
	"github.com/shedgate/shedgate/pkg/logging"
	"github.com/shedgate/shedgate/pkg/metrics"
)

// notificationBatch is the ingest payload: a batch of opaque notification
// records, each a JSON-encoded alarm notification possibly wrapped in one
// envelope layer
type notificationBatch struct {
	Records []json.RawMessage `json:"records"`
}

// NotificationsHandler accepts alarm notification batches from the external
// alerting system
type NotificationsHandler struct {
	queue     *queue.NotificationQueue
	processor *reconcile.Processor
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

// NewNotificationsHandler creates a new notifications handler
func NewNotificationsHandler(q *queue.NotificationQueue, processor *reconcile.Processor, logger *logging.Logger, m *metrics.Metrics) *NotificationsHandler {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &NotificationsHandler{
		queue:     q,
		processor: processor,
		logger:    logger,
		metrics:   m,
	}
}

// Enqueue accepts a batch and queues it for the reconciliation worker.
// Individual records are not validated here; the processor classifies and
// isolates malformed items when the batch is drained.
func (h *NotificationsHandler) Enqueue(c *gin.Context) {
	batch, ok := h.readBatch(c)
	if !ok {
		return
	}

	itemIDs := make([]string, 0, len(batch))
	for _, record := range batch {
		itemID, err := h.queue.Enqueue(c.Request.Context(), record)
		if err != nil {
			h.metrics.RecordError("notifications", "enqueue")
			AppErrorResponse(c, err)
			return
		}
		itemIDs = append(itemIDs, itemID)
	}

	c.JSON(http.StatusAccepted, APIResponse{
		Success: true,
		Data: gin.H{
			"enqueued": len(itemIDs),
			"item_ids": itemIDs,
		},
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}

// Reconcile processes a batch synchronously and returns the per-item
// summary. The queue is bypassed; the same per-item isolation applies.
func (h *NotificationsHandler) Reconcile(c *gin.Context) {
	batch, ok := h.readBatch(c)
	if !ok {
		return
	}

	items := make([]reconcile.Item, 0, len(batch))
	for _, record := range batch {
		items = append(items, reconcile.Item{
			ID:   uuid.New().String(),
			Body: record,
		})
	}

	summary := h.processor.ProcessBatch(c.Request.Context(), items)
	SuccessResponse(c, summary)
}

// readBatch decodes the batch payload. A body that cannot be read or parsed
// at all is a total batch fault and is rejected wholesale.
func (h *NotificationsHandler) readBatch(c *gin.Context) ([]json.RawMessage, bool) {
	var batch notificationBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		h.metrics.RecordNotificationError("batch_fault")
		ErrorResponse(c, http.StatusBadRequest, "PARSE_ERROR", "Failed to parse notification batch")
		return nil, false
	}

	if len(batch.Records) == 0 {
		ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", "Notification batch has no records")
		return nil, false
	}

	return batch.Records, true
}
