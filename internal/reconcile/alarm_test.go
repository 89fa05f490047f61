package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shedgate/shedgate/pkg/errors"
	"github.com/shedgate/shedgate/pkg/types"
)

func alarmJSON(t *testing.T, name, newState, oldState, reason string) []byte {
	t.Helper()
	raw, err := json.Marshal(AlarmNotification{
		Name:     name,
		NewState: newState,
		OldState: oldState,
		Reason:   reason,
	})
	require.NoError(t, err)
	return raw
}

func TestParseNotification_FailureClass(t *testing.T) {
	raw := alarmJSON(t, "shedgate-Level1-ErrorRate", StateAlarm, StateOK, "Error Rate exceeded")

	alarm, err := ParseNotification(raw)
	require.NoError(t, err)

	assert.Equal(t, types.LevelFull, alarm.ServiceLevel)
	assert.Equal(t, "full-service", alarm.ServiceType)
	assert.Equal(t, ClassFailure, alarm.Class)
	assert.Equal(t, types.ErrorTypeHighErrRate, alarm.ErrorType)
	assert.True(t, alarm.EnteringAlarm)
}

func TestParseNotification_RecoveryClass(t *testing.T) {
	raw := alarmJSON(t, "shedgate-Level3-Recovery", StateAlarm, StateOK, "service recovered")

	alarm, err := ParseNotification(raw)
	require.NoError(t, err)

	assert.Equal(t, types.LevelMaintenance, alarm.ServiceLevel)
	assert.Equal(t, "maintenance-service", alarm.ServiceType)
	assert.Equal(t, ClassRecovery, alarm.Class)
}

func TestParseNotification_UnknownClass(t *testing.T) {
	raw := alarmJSON(t, "shedgate-Level2-Latency", StateAlarm, StateOK, "p99 latency")

	alarm, err := ParseNotification(raw)
	require.NoError(t, err)
	assert.Equal(t, ClassUnknown, alarm.Class)
}

func TestParseNotification_ErrorTypeInference(t *testing.T) {
	tests := []struct {
		name      string
		reason    string
		errorType string
	}{
		{"timeout", "Timeout threshold crossed", types.ErrorTypeTimeout},
		{"rate", "Rate above 5%", types.ErrorTypeHighErrRate},
		{"fallback", "something else entirely", types.ErrorTypeSystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := alarmJSON(t, "svc-Level1-Failure", StateAlarm, StateOK, tt.reason)
			alarm, err := ParseNotification(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.errorType, alarm.ErrorType)
		})
	}
}

func TestParseNotification_EnvelopeUnwrap(t *testing.T) {
	inner := alarmJSON(t, "svc-Level2-Failure", StateAlarm, StateOK, "Timeout on upstream")
	wrapped, err := json.Marshal(map[string]string{
		"type":    "Notification",
		"message": string(inner),
	})
	require.NoError(t, err)

	alarm, err := ParseNotification(wrapped)
	require.NoError(t, err)
	assert.Equal(t, types.LevelDegraded, alarm.ServiceLevel)
	assert.Equal(t, ClassFailure, alarm.Class)
	assert.Equal(t, types.ErrorTypeTimeout, alarm.ErrorType)
}

func TestParseNotification_ResolvingAlarm(t *testing.T) {
	raw := alarmJSON(t, "svc-Level1-ErrorRate", StateOK, StateAlarm, "recovered")

	alarm, err := ParseNotification(raw)
	require.NoError(t, err)
	assert.False(t, alarm.EnteringAlarm)
}

func TestParseNotification_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"not json", []byte("{not json")},
		{"no name", []byte(`{"newState":"ALARM"}`)},
		{"no level digit", alarmJSON(t, "svc-ErrorRate", StateAlarm, StateOK, "x")},
		{"level out of range", alarmJSON(t, "svc-Level7-ErrorRate", StateAlarm, StateOK, "x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseNotification(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.IsParseError(err))
		})
	}
}
