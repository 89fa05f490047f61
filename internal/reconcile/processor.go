// Package reconcile applies alarm-derived transitions independently of the
// synchronous routing path. Deliveries are at-least-once, possibly out of
// order, and are not deduplicated; each actionable delivery reapplies one
// increment.
package reconcile

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/shedgate/shedgate/internal/breaker"
	"github.com/shedgate/shedgate/pkg/logging"
	"github.com/shedgate/shedgate/pkg/metrics"
)

// DefaultResponseTimeMs is the synthetic response time recorded for recovery
// notifications, since no real latency is observable from an alarm
const DefaultResponseTimeMs = 100

// Item is one opaque notification record from a batch
type Item struct {
	ID   string `json:"id"`
	Body []byte `json:"body"`
}

// ItemResult reports the outcome of one batch item
type ItemResult struct {
	ItemID       string `json:"item_id"`
	Processed    bool   `json:"processed"`
	Transitioned bool   `json:"transitioned"`
	Error        string `json:"error,omitempty"`
}

// Summary reports the outcome of a whole batch
type Summary struct {
	Processed int          `json:"processed"`
	Errors    int          `json:"errors"`
	Results   []ItemResult `json:"results"`
}

// Processor consumes batches of alarm notifications and maps each item to a
// transition engine call
type Processor struct {
	engine  *breaker.Engine
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewProcessor creates a new reconciliation processor
func NewProcessor(engine *breaker.Engine, logger *logging.Logger, m *metrics.Metrics) *Processor {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Processor{
		engine:  engine,
		logger:  logger,
		metrics: m,
	}
}

// ProcessBatch handles batch items independently: a malformed or failing
// item is reported in the summary and never aborts the rest of the batch.
// Increments already applied by earlier items stand regardless of later
// failures.
func (p *Processor) ProcessBatch(ctx context.Context, items []Item) *Summary {
	summary := &Summary{
		Results: make([]ItemResult, 0, len(items)),
	}

	for _, item := range items {
		result := p.processItem(ctx, item)
		if result.Processed {
			summary.Processed++
		} else {
			summary.Errors++
		}
		summary.Results = append(summary.Results, result)
	}

	p.logger.WithContext(ctx).WithFields(logrus.Fields{
		"items":     len(items),
		"processed": summary.Processed,
		"errors":    summary.Errors,
	}).Info("Notification batch processed")

	return summary
}

// FailBatch reports a total batch-level fault: every item counts as errored.
// State mutations already applied before the fault are not rolled back.
func (p *Processor) FailBatch(items []Item, cause error) *Summary {
	summary := &Summary{
		Errors:  len(items),
		Results: make([]ItemResult, 0, len(items)),
	}
	for _, item := range items {
		summary.Results = append(summary.Results, ItemResult{
			ItemID:    item.ID,
			Processed: false,
			Error:     cause.Error(),
		})
	}
	p.metrics.RecordNotificationError("batch_fault")
	return summary
}

func (p *Processor) processItem(ctx context.Context, item Item) ItemResult {
	alarm, err := ParseNotification(item.Body)
	if err != nil {
		p.metrics.RecordNotificationError("parse")
		p.logger.WithContext(ctx).WithError(err).WithField("item_id", item.ID).
			Warn("Dropping malformed alarm notification")
		return ItemResult{ItemID: item.ID, Processed: false, Error: err.Error()}
	}

	// A resolving alarm carries no new signal; only ALARM entries act
	if !alarm.EnteringAlarm {
		p.metrics.RecordNotification("not_entering")
		return ItemResult{ItemID: item.ID, Processed: true}
	}

	switch alarm.Class {
	case ClassFailure:
		result, err := p.engine.RecordFailure(ctx, alarm.ServiceType, alarm.ErrorType, alarm.ServiceLevel)
		if err != nil {
			p.metrics.RecordNotificationError("store")
			return ItemResult{ItemID: item.ID, Processed: false, Error: err.Error()}
		}
		p.metrics.RecordNotification(string(ClassFailure))
		return ItemResult{ItemID: item.ID, Processed: true, Transitioned: result.Transitioned}

	case ClassRecovery:
		result, err := p.engine.RecordSuccess(ctx, alarm.ServiceType, alarm.ServiceLevel, DefaultResponseTimeMs)
		if err != nil {
			p.metrics.RecordNotificationError("store")
			return ItemResult{ItemID: item.ID, Processed: false, Error: err.Error()}
		}
		p.metrics.RecordNotification(string(ClassRecovery))
		return ItemResult{ItemID: item.ID, Processed: true, Transitioned: result.Transitioned}

	default:
		p.metrics.RecordNotification(string(ClassUnknown))
		p.logger.WithContext(ctx).WithField("alarm", alarm.Notification.Name).
			Debug("Skipping alarm with unknown class")
		return ItemResult{ItemID: item.ID, Processed: true}
	}
}
