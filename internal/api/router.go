package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shedgate/shedgate/internal/breaker"
	"github.com/shedgate/shedgate/internal/downstream"
	"github.com/shedgate/shedgate/internal/queue"
	"github.com/shedgate/shedgate/internal/reconcile"
	"github.com/shedgate/shedgate/internal/store"
	"github.com/shedgate/shedgate/pkg/config"
	"github.com/shedgate/shedgate/pkg/logging"
	"github.com/shedgate/shedgate/pkg/metrics"
)

// NewRouter creates and configures the API router
func NewRouter(cfg *config.Config, s store.Store, redis *queue.RedisClient, engine *breaker.Engine, invoker downstream.Invoker, notifQueue *queue.NotificationQueue, processor *reconcile.Processor, logger *logging.Logger, m *metrics.Metrics) *gin.Engine {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true

	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(logger))
	router.Use(ErrorHandlingMiddleware(logger))
	router.Use(CORSMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(m.PrometheusMiddleware())

	router.NoMethod(func(c *gin.Context) {
		c.Header("Allow", "GET, POST, OPTIONS")
		ErrorResponse(c, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	healthHandler := NewHealthHandler(s, redis)
	router.GET("/health", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	routingHandler := NewRoutingHandler(engine, s, invoker, logger, m)
	notificationsHandler := NewNotificationsHandler(notifQueue, processor, logger, m)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/route", routingHandler.Route)
		v1.GET("/route", routingHandler.Status)

		v1.POST("/notifications", notificationsHandler.Enqueue)
		v1.POST("/reconcile", notificationsHandler.Reconcile)
	}

	return router
}
