// Package store persists the singleton degradation state and the two
// append-only failure/success event streams.
package store

import (
	"context"
	"time"

	"github.com/shedgate/shedgate/pkg/types"
)

// Store is the external-store capability the transition engine depends on.
//
// GetState lazily creates and persists the default state when no record
// exists. PutState is a full-record upsert with last-writer-wins semantics:
// there is no version token, so two concurrent read-modify-write cycles can
// overwrite each other's counter increment.
type Store interface {
	// GetState returns the singleton state, creating the default record if absent
	GetState(ctx context.Context) (*types.DegradationState, error)

	// PutState upserts the full state record, last writer wins
	PutState(ctx context.Context, state *types.DegradationState) error

	// AppendEvent appends an immutable event to its stream
	AppendEvent(ctx context.Context, event *types.Event) error

	// QueryRecent returns all events in the stream with occurred_at within
	// [now-window, now]; order is unspecified
	QueryRecent(ctx context.Context, stream types.Stream, window time.Duration) ([]*types.Event, error)

	// PurgeExpired deletes events past their retention boundary and reports
	// how many rows were removed
	PurgeExpired(ctx context.Context) (int64, error)

	// Health reports whether the store is reachable
	Health(ctx context.Context) error
}
