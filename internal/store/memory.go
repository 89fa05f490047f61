package store

import (
	"context"
	"sync"
	"time"

	"github.com/shedgate/shedgate/pkg/errors"
	"github.com/shedgate/shedgate/pkg/types"
)

// MemoryStore is an in-memory Store for tests and local development.
// It mirrors the postgres store's contract, including lazy creation of the
// singleton state and last-writer-wins upserts.
type MemoryStore struct {
	mu     sync.Mutex
	state  *types.DegradationState
	events map[types.Stream][]*types.Event

	// FailState, when set, makes every state operation fail. Tests use it to
	// exercise the store-unavailable paths.
	FailState bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[types.Stream][]*types.Event),
	}
}

// GetState returns the singleton state, creating the default if absent
func (s *MemoryStore) GetState(ctx context.Context) (*types.DegradationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailState {
		return nil, errors.NewStoreUnavailableError("get_state", context.DeadlineExceeded)
	}

	if s.state == nil {
		s.state = types.NewDegradationState()
	}

	copied := *s.state
	return &copied, nil
}

// PutState upserts the full state record, last writer wins
func (s *MemoryStore) PutState(ctx context.Context, state *types.DegradationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailState {
		return errors.NewStoreUnavailableError("put_state", context.DeadlineExceeded)
	}

	if state == nil {
		return errors.NewValidationError("state cannot be nil")
	}

	copied := *state
	copied.LastUpdatedAt = time.Now()
	s.state = &copied
	return nil
}

// AppendEvent appends an immutable event to its stream
func (s *MemoryStore) AppendEvent(ctx context.Context, event *types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailState {
		return errors.NewStoreUnavailableError("append_event", context.DeadlineExceeded)
	}

	if event == nil {
		return errors.NewValidationError("event cannot be nil")
	}

	copied := *event
	s.events[event.Stream] = append(s.events[event.Stream], &copied)
	return nil
}

// QueryRecent returns all events in the stream within [now-window, now]
func (s *MemoryStore) QueryRecent(ctx context.Context, stream types.Stream, window time.Duration) ([]*types.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailState {
		return nil, errors.NewStoreUnavailableError("query_recent", context.DeadlineExceeded)
	}

	now := time.Now()
	cutoff := now.Add(-window)

	var recent []*types.Event
	for _, event := range s.events[stream] {
		if !event.OccurredAt.Before(cutoff) && !event.OccurredAt.After(now) {
			copied := *event
			recent = append(recent, &copied)
		}
	}
	return recent, nil
}

// PurgeExpired deletes events past their retention boundary
func (s *MemoryStore) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailState {
		return 0, errors.NewStoreUnavailableError("purge_expired", context.DeadlineExceeded)
	}

	now := time.Now()
	var purged int64
	for stream, events := range s.events {
		kept := events[:0]
		for _, event := range events {
			if event.ExpiresAt.After(now) {
				kept = append(kept, event)
			} else {
				purged++
			}
		}
		s.events[stream] = kept
	}
	return purged, nil
}

// Health reports whether the store is reachable
func (s *MemoryStore) Health(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailState {
		return errors.NewStoreUnavailableError("health", context.DeadlineExceeded)
	}
	return nil
}

// EventCount returns the number of stored events in a stream
func (s *MemoryStore) EventCount(stream types.Stream) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events[stream])
}
