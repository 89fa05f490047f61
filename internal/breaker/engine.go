// Package breaker implements the three-level degradation state machine.
//
// The engine is the sole mutator of the state store. Both the synchronous
// routing path and the asynchronous reconciliation path funnel through
// RecordFailure and RecordSuccess, which append an event, apply the pure
// transition rule, and persist the result.
package breaker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shedgate/shedgate/internal/store"
	"github.com/shedgate/shedgate/pkg/logging"
	"github.com/shedgate/shedgate/pkg/metrics"
	"github.com/shedgate/shedgate/pkg/types"
)

// TransitionResult reports the state after a record operation
type TransitionResult struct {
	State        *types.DegradationState `json:"state"`
	Transitioned bool                    `json:"transitioned"`
}

// Engine applies the level-transition rules on top of the state store
type Engine struct {
	store   store.Store
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewEngine creates a new transition engine
func NewEngine(s store.Store, logger *logging.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Engine{
		store:   s,
		logger:  logger,
		metrics: m,
	}
}

// RecordFailure logs a failure event and applies the degradation rule.
//
// The transition is evaluated against the level stored in the state record,
// not the level parameter; the parameter only annotates the event. Any
// failure breaks the current success streak.
func (e *Engine) RecordFailure(ctx context.Context, serviceType, errorType string, level types.Level) (*TransitionResult, error) {
	event := types.NewFailureEvent(serviceType, errorType, level)
	if err := e.store.AppendEvent(ctx, event); err != nil {
		return nil, err
	}

	state, err := e.store.GetState(ctx)
	if err != nil {
		return nil, err
	}

	prevLevel := state.Level
	state.FailureCount++
	state.SuccessCount = 0

	transitioned := false
	switch {
	case prevLevel == types.LevelFull && state.FailureCount >= types.FailuresToDegraded:
		// The failure counter is deliberately not reset here: the 2->3
		// threshold counts failures since the last success, spanning both
		// levels.
		state.Level = types.LevelDegraded
		state.TransitionReason = fmt.Sprintf("Degraded from %s to %s after %d failures",
			prevLevel, state.Level, state.FailureCount)
		transitioned = true
	case prevLevel == types.LevelDegraded && state.FailureCount >= types.FailuresToMaintenance:
		state.Level = types.LevelMaintenance
		state.TransitionReason = fmt.Sprintf("Degraded from %s to %s after %d failures",
			prevLevel, state.Level, state.FailureCount)
		transitioned = true
	}

	if transitioned {
		now := time.Now()
		state.LastTransitionAt = &now
	}

	if err := e.store.PutState(ctx, state); err != nil {
		return nil, err
	}

	e.metrics.RecordFailure(serviceType, errorType)
	e.metrics.SetCurrentLevel(int(state.Level))
	if transitioned {
		e.metrics.RecordTransition(int(prevLevel), int(state.Level))
		e.logger.LogTransition(ctx, int(prevLevel), int(state.Level), state.TransitionReason, logrus.Fields{
			"service_type":  serviceType,
			"error_type":    errorType,
			"failure_count": state.FailureCount,
		})
	} else {
		e.logger.WithContext(ctx).WithFields(logrus.Fields{
			"service_type":  serviceType,
			"error_type":    errorType,
			"failure_count": state.FailureCount,
			"level":         int(state.Level),
		}).Debug("Failure recorded")
	}

	return &TransitionResult{State: state, Transitioned: transitioned}, nil
}

// RecordSuccess logs a success event and applies the recovery rule.
//
// A success always resets the failure streak. On a recovery transition the
// success streak is consumed as well.
func (e *Engine) RecordSuccess(ctx context.Context, serviceType string, level types.Level, responseTimeMs int64) (*TransitionResult, error) {
	event := types.NewSuccessEvent(serviceType, level, responseTimeMs)
	if err := e.store.AppendEvent(ctx, event); err != nil {
		return nil, err
	}

	state, err := e.store.GetState(ctx)
	if err != nil {
		return nil, err
	}

	prevLevel := state.Level
	state.SuccessCount++
	state.FailureCount = 0

	transitioned := false
	switch {
	case prevLevel == types.LevelMaintenance && state.SuccessCount >= types.SuccessesToDegraded:
		state.TransitionReason = fmt.Sprintf("Recovered from %s to %s after %d successes",
			prevLevel, types.LevelDegraded, state.SuccessCount)
		state.Level = types.LevelDegraded
		state.SuccessCount = 0
		transitioned = true
	case prevLevel == types.LevelDegraded && state.SuccessCount >= types.SuccessesToFull:
		state.TransitionReason = fmt.Sprintf("Recovered from %s to %s after %d successes",
			prevLevel, types.LevelFull, state.SuccessCount)
		state.Level = types.LevelFull
		state.SuccessCount = 0
		transitioned = true
	}

	if transitioned {
		now := time.Now()
		state.LastTransitionAt = &now
	}

	if err := e.store.PutState(ctx, state); err != nil {
		return nil, err
	}

	e.metrics.RecordSuccess(serviceType)
	e.metrics.SetCurrentLevel(int(state.Level))
	if transitioned {
		e.metrics.RecordTransition(int(prevLevel), int(state.Level))
		e.logger.LogTransition(ctx, int(prevLevel), int(state.Level), state.TransitionReason, logrus.Fields{
			"service_type":     serviceType,
			"response_time_ms": responseTimeMs,
		})
	} else {
		e.logger.WithContext(ctx).WithFields(logrus.Fields{
			"service_type":     serviceType,
			"success_count":    state.SuccessCount,
			"response_time_ms": responseTimeMs,
			"level":            int(state.Level),
		}).Debug("Success recorded")
	}

	return &TransitionResult{State: state, Transitioned: transitioned}, nil
}

// CurrentState returns the state without mutating it
func (e *Engine) CurrentState(ctx context.Context) (*types.DegradationState, error) {
	return e.store.GetState(ctx)
}
