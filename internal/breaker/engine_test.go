package breaker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shedgate/shedgate/internal/store"
	"github.com/shedgate/shedgate/pkg/types"
)

func newTestEngine(t *testing.T) (*Engine, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	return NewEngine(s, nil, nil), s
}

func seedState(t *testing.T, s *store.MemoryStore, level types.Level, failures, successes int) {
	t.Helper()
	state := types.NewDegradationState()
	state.Level = level
	state.FailureCount = failures
	state.SuccessCount = successes
	require.NoError(t, s.PutState(context.Background(), state))
}

func TestEngine_FiveFailuresDegrade(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	var result *TransitionResult
	var err error
	for i := 0; i < 5; i++ {
		result, err = engine.RecordFailure(ctx, "full-service", types.ErrorTypeService, types.LevelFull)
		require.NoError(t, err)
	}

	assert.Equal(t, types.LevelDegraded, result.State.Level)
	assert.Equal(t, 5, result.State.FailureCount)
	assert.Equal(t, 0, result.State.SuccessCount)
	assert.True(t, result.Transitioned)
	assert.NotNil(t, result.State.LastTransitionAt)
	assert.Contains(t, result.State.TransitionReason, "5 failures")
}

func TestEngine_FourFailuresDoNotDegrade(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	var result *TransitionResult
	var err error
	for i := 0; i < 4; i++ {
		result, err = engine.RecordFailure(ctx, "full-service", types.ErrorTypeService, types.LevelFull)
		require.NoError(t, err)
	}

	assert.Equal(t, types.LevelFull, result.State.Level)
	assert.Equal(t, 4, result.State.FailureCount)
	assert.False(t, result.Transitioned)
}

func TestEngine_SuccessResetsFailureStreak(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := engine.RecordFailure(ctx, "full-service", types.ErrorTypeService, types.LevelFull)
		require.NoError(t, err)
	}

	result, err := engine.RecordSuccess(ctx, "full-service", types.LevelFull, 42)
	require.NoError(t, err)
	assert.Equal(t, 0, result.State.FailureCount)
	assert.Equal(t, 1, result.State.SuccessCount)

	// Two more failures: the streak restarts, so no transition yet
	for i := 0; i < 2; i++ {
		result, err = engine.RecordFailure(ctx, "full-service", types.ErrorTypeService, types.LevelFull)
		require.NoError(t, err)
	}

	assert.Equal(t, types.LevelFull, result.State.Level)
	assert.Equal(t, 2, result.State.FailureCount)
	assert.Equal(t, 0, result.State.SuccessCount)
}

func TestEngine_CumulativeFailuresReachMaintenance(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	// The failure counter is not reset by the 1->2 transition, so ten
	// uninterrupted failures walk through both edges.
	var result *TransitionResult
	var err error
	for i := 0; i < 10; i++ {
		result, err = engine.RecordFailure(ctx, "full-service", types.ErrorTypeService, types.LevelFull)
		require.NoError(t, err)
	}

	assert.Equal(t, types.LevelMaintenance, result.State.Level)
	assert.Equal(t, 10, result.State.FailureCount)
	assert.True(t, result.Transitioned)
}

func TestEngine_NoDoubleStepPerCall(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	// Even with a seeded failure count past both thresholds, one call moves
	// one level at most.
	seedState(t, s, types.LevelFull, 20, 0)

	result, err := engine.RecordFailure(ctx, "full-service", types.ErrorTypeService, types.LevelFull)
	require.NoError(t, err)
	assert.Equal(t, types.LevelDegraded, result.State.Level)
}

func TestEngine_ThreeSuccessesRecoverFromMaintenance(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	seedState(t, s, types.LevelMaintenance, 10, 0)

	var result *TransitionResult
	var err error
	for i := 0; i < 3; i++ {
		result, err = engine.RecordSuccess(ctx, "maintenance-service", types.LevelMaintenance, 100)
		require.NoError(t, err)
	}

	assert.Equal(t, types.LevelDegraded, result.State.Level)
	assert.Equal(t, 0, result.State.FailureCount)
	assert.Equal(t, 0, result.State.SuccessCount)
	assert.True(t, result.Transitioned)
	assert.Contains(t, result.State.TransitionReason, "3 successes")
}

func TestEngine_FiveSuccessesRecoverToFull(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	seedState(t, s, types.LevelDegraded, 7, 0)

	var result *TransitionResult
	var err error
	for i := 0; i < 5; i++ {
		result, err = engine.RecordSuccess(ctx, "degraded-service", types.LevelDegraded, 100)
		require.NoError(t, err)
	}

	assert.Equal(t, types.LevelFull, result.State.Level)
	assert.Equal(t, 0, result.State.FailureCount)
	assert.Equal(t, 0, result.State.SuccessCount)
	assert.True(t, result.Transitioned)
}

func TestEngine_TransitionUsesStoredLevelNotParameter(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	seedState(t, s, types.LevelFull, 4, 0)

	// The level parameter only annotates the event; the rule evaluates the
	// stored level.
	result, err := engine.RecordFailure(ctx, "maintenance-service", types.ErrorTypeService, types.LevelMaintenance)
	require.NoError(t, err)
	assert.Equal(t, types.LevelDegraded, result.State.Level)
	assert.True(t, result.Transitioned)
}

func TestEngine_EventsAppendedPerCall(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.RecordFailure(ctx, "full-service", types.ErrorTypeService, types.LevelFull)
	require.NoError(t, err)
	_, err = engine.RecordSuccess(ctx, "full-service", types.LevelFull, 33)
	require.NoError(t, err)
	_, err = engine.RecordSuccess(ctx, "full-service", types.LevelFull, 34)
	require.NoError(t, err)

	assert.Equal(t, 1, s.EventCount(types.StreamFailure))
	assert.Equal(t, 2, s.EventCount(types.StreamSuccess))
}

func TestEngine_StoreFailurePropagates(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	s.FailState = true

	_, err := engine.RecordFailure(ctx, "full-service", types.ErrorTypeService, types.LevelFull)
	assert.Error(t, err)

	_, err = engine.RecordSuccess(ctx, "full-service", types.LevelFull, 10)
	assert.Error(t, err)
}
