package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shedgate/shedgate/internal/queue"
	"github.com/shedgate/shedgate/internal/store"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	store store.Store
	redis *queue.RedisClient
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(s store.Store, redis *queue.RedisClient) *HealthHandler {
	return &HealthHandler{
		store: s,
		redis: redis,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]HealthCheck `json:"checks"`
}

// HealthCheck represents an individual health check
type HealthCheck struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency,omitempty"`
}

// Check handles the health check request
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]HealthCheck),
	}

	storeStart := time.Now()
	storeErr := h.store.Health(ctx)
	storeLatency := time.Since(storeStart)

	if storeErr != nil {
		response.Status = "unhealthy"
		response.Checks["store"] = HealthCheck{
			Status:  "unhealthy",
			Message: storeErr.Error(),
			Latency: storeLatency,
		}
	} else {
		response.Checks["store"] = HealthCheck{
			Status:  "healthy",
			Latency: storeLatency,
		}
	}

	if h.redis != nil {
		redisStart := time.Now()
		redisErr := h.redis.Health(ctx)
		redisLatency := time.Since(redisStart)

		if redisErr != nil {
			response.Status = "unhealthy"
			response.Checks["redis"] = HealthCheck{
				Status:  "unhealthy",
				Message: redisErr.Error(),
				Latency: redisLatency,
			}
		} else {
			response.Checks["redis"] = HealthCheck{
				Status:  "healthy",
				Latency: redisLatency,
			}
		}
	}

	statusCode := http.StatusOK
	if response.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
