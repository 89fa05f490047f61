package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/shedgate/shedgate/internal/breaker"
	"github.com/shedgate/shedgate/internal/downstream"
	"github.com/shedgate/shedgate/internal/store"
	"github.com/shedgate/shedgate/pkg/logging"
	"github.com/shedgate/shedgate/pkg/metrics"
	"github.com/shedgate/shedgate/pkg/types"
)

// RecentActivityWindow is the range-scan window for status queries
const RecentActivityWindow = 5 * time.Minute

// RoutingHandler is the synchronous request entry point: it reads the
// current level, dispatches to the matching downstream handler, classifies
// the outcome, and records it through the transition engine.
type RoutingHandler struct {
	engine  *breaker.Engine
	store   store.Store
	invoker downstream.Invoker
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewRoutingHandler creates a new routing handler
func NewRoutingHandler(engine *breaker.Engine, s store.Store, invoker downstream.Invoker, logger *logging.Logger, m *metrics.Metrics) *RoutingHandler {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &RoutingHandler{
		engine:  engine,
		store:   s,
		invoker: invoker,
		logger:  logger,
		metrics: m,
	}
}

// Route handles POST requests: level lookup, downstream dispatch, outcome
// classification, state update, annotated response.
//
// Exactly one state mutation happens per request. When the store itself is
// unreachable the request degrades to a synthesized maintenance response
// with no mutation at all, since the store is the thing that failed.
func (h *RoutingHandler) Route(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := c.GetRawData()
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "INVALID_BODY", "Failed to read request body")
		return
	}

	state, err := h.store.GetState(ctx)
	if err != nil {
		h.metrics.RecordError("routing", "store_unavailable")
		h.logger.WithContext(ctx).WithError(err).Error("State store unreachable, serving maintenance fallback")
		MaintenanceFallbackResponse(c, types.LevelMaintenance, "state store unavailable")
		return
	}

	level := state.Level
	handlerName := level.ServiceName()

	start := time.Now()
	resp, err := h.invoker.Invoke(ctx, level, body)
	elapsed := time.Since(start)
	h.metrics.RecordDownstreamDuration(handlerName, elapsed)

	if err != nil {
		// Unreachable, timed out, or transport fault: record one failure and
		// synthesize the fallback locally.
		h.metrics.RecordRoutingOutcome(handlerName, "unavailable")
		h.logger.LogRoutingEvent(ctx, "downstream_unavailable", handlerName, int(level), logrus.Fields{
			"error": err.Error(),
		})

		if _, recErr := h.engine.RecordFailure(ctx, handlerName, types.ErrorTypeInvocation, level); recErr != nil {
			h.logger.WithContext(ctx).WithError(recErr).Error("Failed to record downstream failure")
		}

		MaintenanceFallbackResponse(c, level, "downstream handler unreachable or timed out")
		return
	}

	if resp.IsError() {
		h.metrics.RecordRoutingOutcome(handlerName, "error")
		h.logger.LogRoutingEvent(ctx, "downstream_error", handlerName, int(level), logrus.Fields{
			"status_code": resp.StatusCode,
		})

		if _, recErr := h.engine.RecordFailure(ctx, handlerName, types.ErrorTypeService, level); recErr != nil {
			h.logger.WithContext(ctx).WithError(recErr).Error("Failed to record downstream error")
		}

		h.passThrough(c, level, handlerName, resp)
		return
	}

	h.metrics.RecordRoutingOutcome(handlerName, "success")
	if _, recErr := h.engine.RecordSuccess(ctx, handlerName, level, elapsed.Milliseconds()); recErr != nil {
		h.logger.WithContext(ctx).WithError(recErr).Error("Failed to record downstream success")
	}

	h.passThrough(c, level, handlerName, resp)
}

// passThrough relays the downstream response, annotated with the effective
// level at dispatch time and the handler that served it
func (h *RoutingHandler) passThrough(c *gin.Context, level types.Level, handlerName string, resp *downstream.Response) {
	c.Header(HeaderDegradationLevel, strconv.Itoa(int(level)))
	c.Header(HeaderServedBy, handlerName)

	contentType := resp.Headers["Content-Type"]
	if contentType == "" {
		contentType = "application/json"
	}

	c.Data(resp.StatusCode, contentType, resp.Body)
}

// StatusSnapshot is the read-only state view returned by status queries
type StatusSnapshot struct {
	State          *types.DegradationState `json:"state"`
	Thresholds     types.Thresholds        `json:"thresholds"`
	RecentActivity RecentActivity          `json:"recent_activity"`
}

// RecentActivity holds event counts over the status window
type RecentActivity struct {
	WindowSeconds int `json:"window_seconds"`
	Failures      int `json:"failures"`
	Successes     int `json:"successes"`
}

// Status handles GET requests with a read-only snapshot: current state,
// the static threshold table, and recent activity counts. This path never
// records failures or successes.
func (h *RoutingHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	state, err := h.store.GetState(ctx)
	if err != nil {
		h.metrics.RecordError("status", "store_unavailable")
		MaintenanceFallbackResponse(c, types.LevelMaintenance, "state store unavailable")
		return
	}

	failures, err := h.store.QueryRecent(ctx, types.StreamFailure, RecentActivityWindow)
	if err != nil {
		AppErrorResponse(c, err)
		return
	}

	successes, err := h.store.QueryRecent(ctx, types.StreamSuccess, RecentActivityWindow)
	if err != nil {
		AppErrorResponse(c, err)
		return
	}

	c.Header(HeaderDegradationLevel, strconv.Itoa(int(state.Level)))

	SuccessResponse(c, StatusSnapshot{
		State:      state,
		Thresholds: types.ThresholdTable(),
		RecentActivity: RecentActivity{
			WindowSeconds: int(RecentActivityWindow.Seconds()),
			Failures:      len(failures),
			Successes:     len(successes),
		},
	})
}
