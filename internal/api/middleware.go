package api

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shedgate/shedgate/pkg/logging"
)

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)

		ctx := context.WithValue(c.Request.Context(), logging.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	})
}

// LoggingMiddleware provides structured logging for requests
func LoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.LogRequest(c.Request.Context(), c.Request.Method, c.Request.URL.Path,
			c.ClientIP(), c.Writer.Status(), time.Since(start))
	})
}

// ErrorHandlingMiddleware recovers panics into a well-formed 500 response
func ErrorHandlingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered while handling request",
			"panic", recovered,
			"path", c.Request.URL.Path,
		)
		ErrorResponse(c, 500, "INTERNAL_ERROR", "An unexpected error occurred")
		c.Abort()
	})
}

// CORSMiddleware handles CORS headers
func CORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept", "Origin", "X-Request-ID"},
		ExposeHeaders:    []string{HeaderDegradationLevel, HeaderServedBy, "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}

// SecurityHeadersMiddleware adds security headers
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})
}
