package reconcile

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/shedgate/shedgate/pkg/errors"
	"github.com/shedgate/shedgate/pkg/types"
)

// AlarmClass is the decoded semantics of an alarm name
type AlarmClass string

const (
	ClassFailure  AlarmClass = "failure"
	ClassRecovery AlarmClass = "recovery"
	ClassUnknown  AlarmClass = "unknown"
)

// Alarm states as delivered by the external alerting system
const (
	StateAlarm = "ALARM"
	StateOK    = "OK"
)

// AlarmNotification is the wire shape of one alerting-system message
type AlarmNotification struct {
	Name     string `json:"name"`
	NewState string `json:"newState"`
	OldState string `json:"oldState"`
	Reason   string `json:"reason"`
}

// envelope is the optional outer wrapper some deliveries carry; its message
// field holds the JSON-encoded notification as a string
type envelope struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ParsedAlarm carries the derived fields the processor acts on
type ParsedAlarm struct {
	Notification  AlarmNotification
	ServiceLevel  types.Level
	ServiceType   string
	Class         AlarmClass
	ErrorType     string
	EnteringAlarm bool
}

var levelPattern = regexp.MustCompile(`Level(\d)`)

// ParseNotification decodes a raw notification payload, unwrapping the
// optional envelope layer, and derives the routing fields from the alarm
// name and reason. A payload without a decodable level digit is malformed.
func ParseNotification(raw []byte) (*ParsedAlarm, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
		raw = []byte(env.Message)
	}

	var notification AlarmNotification
	if err := json.Unmarshal(raw, &notification); err != nil {
		return nil, errors.NewParseError("malformed alarm notification").WithCause(err)
	}

	if notification.Name == "" {
		return nil, errors.NewParseError("alarm notification has no name")
	}

	match := levelPattern.FindStringSubmatch(notification.Name)
	if match == nil {
		return nil, errors.NewParseError("alarm name carries no level digit").
			WithDetail("name", notification.Name)
	}

	digit, _ := strconv.Atoi(match[1])
	level, err := types.ParseLevel(digit)
	if err != nil {
		return nil, errors.NewParseError("alarm name carries an invalid level").
			WithDetail("name", notification.Name).
			WithCause(err)
	}

	return &ParsedAlarm{
		Notification:  notification,
		ServiceLevel:  level,
		ServiceType:   level.ServiceName(),
		Class:         classify(notification.Name),
		ErrorType:     inferErrorType(notification.Reason),
		EnteringAlarm: strings.EqualFold(notification.NewState, StateAlarm),
	}, nil
}

// classify maps alarm-name keywords to a failure or recovery class
func classify(name string) AlarmClass {
	switch {
	case strings.Contains(name, "ErrorRate"), strings.Contains(name, "Failure"):
		return ClassFailure
	case strings.Contains(name, "Recovery"), strings.Contains(name, "Success"):
		return ClassRecovery
	default:
		return ClassUnknown
	}
}

// inferErrorType derives the recorded error type from the alarm reason text
func inferErrorType(reason string) string {
	switch {
	case strings.Contains(reason, "Timeout"):
		return types.ErrorTypeTimeout
	case strings.Contains(reason, "Rate"):
		return types.ErrorTypeHighErrRate
	default:
		return types.ErrorTypeSystem
	}
}
