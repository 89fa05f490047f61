package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Level represents a service degradation tier
type Level int

const (
	// LevelFull - all features available
	LevelFull Level = 1
	// LevelDegraded - reduced feature set
	LevelDegraded Level = 2
	// LevelMaintenance - minimal responses only
	LevelMaintenance Level = 3
)

func (l Level) String() string {
	switch l {
	case LevelFull:
		return "FULL"
	case LevelDegraded:
		return "DEGRADED"
	case LevelMaintenance:
		return "MAINTENANCE"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether l is one of the three defined tiers
func (l Level) Valid() bool {
	return l >= LevelFull && l <= LevelMaintenance
}

// ServiceName returns the fixed downstream service name for a level
func (l Level) ServiceName() string {
	switch l {
	case LevelFull:
		return "full-service"
	case LevelDegraded:
		return "degraded-service"
	case LevelMaintenance:
		return "maintenance-service"
	default:
		return "unknown-service"
	}
}

// ParseLevel converts an integer to a Level, rejecting values outside 1..3
func ParseLevel(n int) (Level, error) {
	l := Level(n)
	if !l.Valid() {
		return 0, fmt.Errorf("invalid degradation level: %d", n)
	}
	return l, nil
}

// Transition thresholds. Failure counts are cumulative across the 1->2 edge:
// the 2->3 threshold means ten failures since the last success, which may
// span both levels.
const (
	FailuresToDegraded    = 5
	FailuresToMaintenance = 10
	SuccessesToDegraded   = 3
	SuccessesToFull       = 5
)

// Thresholds describes the static transition threshold table
type Thresholds struct {
	FailuresToDegraded    int `json:"failures_to_degraded"`
	FailuresToMaintenance int `json:"failures_to_maintenance"`
	SuccessesToDegraded   int `json:"successes_to_degraded"`
	SuccessesToFull       int `json:"successes_to_full"`
}

// ThresholdTable returns the fixed threshold table exposed by status queries
func ThresholdTable() Thresholds {
	return Thresholds{
		FailuresToDegraded:    FailuresToDegraded,
		FailuresToMaintenance: FailuresToMaintenance,
		SuccessesToDegraded:   SuccessesToDegraded,
		SuccessesToFull:       SuccessesToFull,
	}
}

// Well-known error types recorded on failure events
const (
	ErrorTypeInvocation  = "InvocationError"
	ErrorTypeService     = "ServiceError"
	ErrorTypeTimeout     = "TimeoutError"
	ErrorTypeHighErrRate = "HighErrorRate"
	ErrorTypeSystem      = "SystemError"
)

// StateID is the key of the singleton degradation state row
const StateID = "global"

// EventRetention is how long failure/success events stay queryable
const EventRetention = 7 * 24 * time.Hour

// DegradationState is the singleton circuit breaker state record
type DegradationState struct {
	ID               string     `db:"id" json:"id"`
	Level            Level      `db:"level" json:"level"`
	FailureCount     int        `db:"failure_count" json:"failure_count"`
	SuccessCount     int        `db:"success_count" json:"success_count"`
	TransitionReason string     `db:"transition_reason" json:"transition_reason"`
	LastTransitionAt *time.Time `db:"last_transition_at" json:"last_transition_at,omitempty"`
	LastUpdatedAt    time.Time  `db:"last_updated_at" json:"last_updated_at"`
}

// NewDegradationState returns the default state created on first read
func NewDegradationState() *DegradationState {
	return &DegradationState{
		ID:               StateID,
		Level:            LevelFull,
		FailureCount:     0,
		SuccessCount:     0,
		TransitionReason: "Initial state",
		LastUpdatedAt:    time.Now(),
	}
}

// Stream identifies one of the two append-only event streams
type Stream string

const (
	StreamFailure Stream = "failure"
	StreamSuccess Stream = "success"
)

// Event is one immutable entry in a failure or success stream
type Event struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Stream         Stream    `db:"stream" json:"stream"`
	OccurredAt     time.Time `db:"occurred_at" json:"occurred_at"`
	ServiceType    string    `db:"service_type" json:"service_type"`
	ServiceLevel   Level     `db:"service_level" json:"service_level"`
	ErrorType      string    `db:"error_type" json:"error_type,omitempty"`
	ResponseTimeMs int64     `db:"response_time_ms" json:"response_time_ms,omitempty"`
	ExpiresAt      time.Time `db:"expires_at" json:"expires_at"`
}

// NewFailureEvent creates a failure stream event
func NewFailureEvent(serviceType, errorType string, level Level) *Event {
	now := time.Now()
	return &Event{
		ID:           uuid.New(),
		Stream:       StreamFailure,
		OccurredAt:   now,
		ServiceType:  serviceType,
		ServiceLevel: level,
		ErrorType:    errorType,
		ExpiresAt:    now.Add(EventRetention),
	}
}

// NewSuccessEvent creates a success stream event
func NewSuccessEvent(serviceType string, level Level, responseTimeMs int64) *Event {
	now := time.Now()
	return &Event{
		ID:             uuid.New(),
		Stream:         StreamSuccess,
		OccurredAt:     now,
		ServiceType:    serviceType,
		ServiceLevel:   level,
		ResponseTimeMs: responseTimeMs,
		ExpiresAt:      now.Add(EventRetention),
	}
}
