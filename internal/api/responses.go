package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shedgate/shedgate/pkg/errors"
	"github.com/shedgate/shedgate/pkg/types"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError represents an API error with details support
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Routing metadata headers attached to every response on the routing path
const (
	HeaderDegradationLevel = "X-Degradation-Level"
	HeaderServedBy         = "X-Served-By"
)

func requestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}

// ErrorResponse sends an error response with the given status code
func ErrorResponse(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}

// AppErrorResponse sends an error response derived from an AppError
func AppErrorResponse(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	resp := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    errors.GetCode(err),
			Message: err.Error(),
		},
		RequestID: requestID(c),
		Timestamp: time.Now(),
	}

	if appErr, ok := err.(*errors.AppError); ok {
		resp.Error.Message = appErr.Message
		resp.Error.Details = appErr.Details
	}

	c.JSON(status, resp)
}

// MaintenanceFallback is the synthesized 503 body returned when the intended
// downstream target could not serve the request
type MaintenanceFallback struct {
	Level           int    `json:"level"`
	Status          string `json:"status"`
	Message         string `json:"message"`
	IntendedHandler string `json:"intended_handler"`
	IntendedLevel   int    `json:"intended_level,omitempty"`
	Diagnostic      string `json:"diagnostic,omitempty"`
}

// MaintenanceFallbackResponse sends the synthesized maintenance-mode 503,
// annotated with the originally intended target
func MaintenanceFallbackResponse(c *gin.Context, intended types.Level, diagnostic string) {
	c.Header(HeaderDegradationLevel, strconv.Itoa(int(types.LevelMaintenance)))
	c.Header(HeaderServedBy, "fallback")

	c.JSON(http.StatusServiceUnavailable, APIResponse{
		Success: false,
		Data: MaintenanceFallback{
			Level:           int(types.LevelMaintenance),
			Status:          "maintenance",
			Message:         "Service is temporarily operating in maintenance mode",
			IntendedHandler: intended.ServiceName(),
			IntendedLevel:   int(intended),
			Diagnostic:      diagnostic,
		},
		Error: &APIError{
			Code:    "SERVICE_UNAVAILABLE",
			Message: "The intended downstream handler could not serve the request",
		},
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}
