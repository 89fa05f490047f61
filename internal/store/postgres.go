package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/shedgate/shedgate/internal/database"
	"github.com/shedgate/shedgate/pkg/errors"
	"github.com/shedgate/shedgate/pkg/types"
)

// PostgresStore implements Store on top of the shared database connection
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a new postgres-backed store
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetState retrieves the singleton state, creating the default record if absent
func (s *PostgresStore) GetState(ctx context.Context) (*types.DegradationState, error) {
	var state types.DegradationState
	query := `SELECT * FROM degradation_state WHERE id = $1`

	err := s.db.GetContext(ctx, &state, query, types.StateID)
	if err == nil {
		return &state, nil
	}
	if err != sql.ErrNoRows {
		return nil, errors.NewStoreUnavailableError("get_state", err)
	}

	initial := types.NewDegradationState()
	if err := s.PutState(ctx, initial); err != nil {
		return nil, err
	}
	return initial, nil
}

// PutState upserts the full state record, last writer wins
func (s *PostgresStore) PutState(ctx context.Context, state *types.DegradationState) error {
	if state == nil {
		return errors.NewValidationError("state cannot be nil")
	}

	state.LastUpdatedAt = time.Now()

	query := `
		INSERT INTO degradation_state (id, level, failure_count, success_count, transition_reason, last_transition_at, last_updated_at)
		VALUES (:id, :level, :failure_count, :success_count, :transition_reason, :last_transition_at, :last_updated_at)
		ON CONFLICT (id) DO UPDATE SET
			level = EXCLUDED.level,
			failure_count = EXCLUDED.failure_count,
			success_count = EXCLUDED.success_count,
			transition_reason = EXCLUDED.transition_reason,
			last_transition_at = EXCLUDED.last_transition_at,
			last_updated_at = EXCLUDED.last_updated_at`

	if _, err := s.db.NamedExecContext(ctx, query, state); err != nil {
		return errors.NewStoreUnavailableError("put_state", err)
	}

	return nil
}

// AppendEvent appends an immutable event to its stream
func (s *PostgresStore) AppendEvent(ctx context.Context, event *types.Event) error {
	if event == nil {
		return errors.NewValidationError("event cannot be nil")
	}

	query := `
		INSERT INTO degradation_events (id, stream, occurred_at, service_type, service_level, error_type, response_time_ms, expires_at)
		VALUES (:id, :stream, :occurred_at, :service_type, :service_level, :error_type, :response_time_ms, :expires_at)`

	if _, err := s.db.NamedExecContext(ctx, query, event); err != nil {
		return errors.NewStoreUnavailableError("append_event", err)
	}

	return nil
}

// QueryRecent returns all events in the stream within [now-window, now]
func (s *PostgresStore) QueryRecent(ctx context.Context, stream types.Stream, window time.Duration) ([]*types.Event, error) {
	var events []*types.Event
	query := `
		SELECT * FROM degradation_events
		WHERE stream = $1 AND occurred_at >= $2 AND occurred_at <= $3`

	now := time.Now()
	err := s.db.SelectContext(ctx, &events, query, stream, now.Add(-window), now)
	if err != nil {
		return nil, errors.NewStoreUnavailableError("query_recent", err)
	}

	return events, nil
}

// PurgeExpired deletes events past their retention boundary
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM degradation_events WHERE expires_at < $1`

	result, err := s.db.ExecContext(ctx, query, time.Now())
	if err != nil {
		return 0, errors.NewStoreUnavailableError("purge_expired", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewStoreUnavailableError("purge_expired", err)
	}

	return purged, nil
}

// Health reports whether the store is reachable
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}
