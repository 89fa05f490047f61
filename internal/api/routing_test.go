package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shedgate/shedgate/internal/breaker"
	"github.com/shedgate/shedgate/internal/downstream"
	"github.com/shedgate/shedgate/internal/store"
	"github.com/shedgate/shedgate/pkg/config"
	"github.com/shedgate/shedgate/pkg/types"
)

func newRoutingTestServer(t *testing.T, s *store.MemoryStore, downstreamURL string, invokeTimeout time.Duration) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	invoker := downstream.NewHTTPInvoker(&config.DownstreamConfig{
		FullURL:        downstreamURL,
		DegradedURL:    downstreamURL,
		MaintenanceURL: downstreamURL,
		InvokeTimeout:  invokeTimeout,
	})

	engine := breaker.NewEngine(s, nil, nil)
	handler := NewRoutingHandler(engine, s, invoker, nil, nil)

	router := gin.New()
	router.POST("/route", handler.Route)
	router.GET("/route", handler.Status)
	return router
}

func TestRoute_SuccessPassThrough(t *testing.T) {
	downstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"level":1,"status":"ok","message":"full service"}`))
	}))
	defer downstreamSrv.Close()

	s := store.NewMemoryStore()
	router := newRoutingTestServer(t, s, downstreamSrv.URL, 5*time.Second)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/route", strings.NewReader(`{"error":false}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get(HeaderDegradationLevel))
	assert.Equal(t, "full-service", w.Header().Get(HeaderServedBy))
	assert.Contains(t, w.Body.String(), "full service")

	state, err := s.GetState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, state.FailureCount)
	assert.Equal(t, 1, state.SuccessCount)
	assert.Equal(t, 1, s.EventCount(types.StreamSuccess))
}

func TestRoute_DownstreamErrorRecordsFailure(t *testing.T) {
	downstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"level":1,"status":"error","message":"boom"}`))
	}))
	defer downstreamSrv.Close()

	s := store.NewMemoryStore()
	router := newRoutingTestServer(t, s, downstreamSrv.URL, 5*time.Second)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/route", nil)
	router.ServeHTTP(w, req)

	// The handler's own response passes through, annotated
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "full-service", w.Header().Get(HeaderServedBy))
	assert.Contains(t, w.Body.String(), "boom")

	state, err := s.GetState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, state.FailureCount)
	assert.Equal(t, 1, s.EventCount(types.StreamFailure))
	assert.Equal(t, 0, s.EventCount(types.StreamSuccess))
}

func TestRoute_TimeoutSynthesizesFallback(t *testing.T) {
	downstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer downstreamSrv.Close()

	s := store.NewMemoryStore()
	router := newRoutingTestServer(t, s, downstreamSrv.URL, 50*time.Millisecond)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/route", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "full-service")

	// Exactly one failure recorded, no success
	state, err := s.GetState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, state.FailureCount)
	assert.Equal(t, 0, state.SuccessCount)
	assert.Equal(t, 1, s.EventCount(types.StreamFailure))
	assert.Equal(t, 0, s.EventCount(types.StreamSuccess))

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
}

func TestRoute_UnreachableRecordsInvocationError(t *testing.T) {
	s := store.NewMemoryStore()
	// A closed server: connection refused
	downstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := downstreamSrv.URL
	downstreamSrv.Close()

	router := newRoutingTestServer(t, s, url, time.Second)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/route", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	events, err := s.QueryRecent(context.Background(), types.StreamFailure, time.Minute)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.ErrorTypeInvocation, events[0].ErrorType)
}

func TestRoute_DispatchFollowsStoredLevel(t *testing.T) {
	var gotPath []string
	downstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = append(gotPath, r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer downstreamSrv.Close()

	s := store.NewMemoryStore()
	seeded := types.NewDegradationState()
	seeded.Level = types.LevelMaintenance
	require.NoError(t, s.PutState(context.Background(), seeded))

	router := newRoutingTestServer(t, s, downstreamSrv.URL, 5*time.Second)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/route", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get(HeaderDegradationLevel))
	assert.Equal(t, "maintenance-service", w.Header().Get(HeaderServedBy))
	assert.Len(t, gotPath, 1)
}

func TestRoute_StoreFailureNoMutation(t *testing.T) {
	downstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("downstream must not be invoked when the store is down")
	}))
	defer downstreamSrv.Close()

	s := store.NewMemoryStore()
	s.FailState = true
	router := newRoutingTestServer(t, s, downstreamSrv.URL, time.Second)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/route", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s.FailState = false
	assert.Equal(t, 0, s.EventCount(types.StreamFailure))
	assert.Equal(t, 0, s.EventCount(types.StreamSuccess))
}

func TestStatus_Snapshot(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.AppendEvent(ctx, types.NewFailureEvent("full-service", types.ErrorTypeService, types.LevelFull)))
	require.NoError(t, s.AppendEvent(ctx, types.NewSuccessEvent("full-service", types.LevelFull, 12)))
	require.NoError(t, s.AppendEvent(ctx, types.NewSuccessEvent("full-service", types.LevelFull, 15)))

	router := newRoutingTestServer(t, s, "http://localhost:0", time.Second)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/route", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool           `json:"success"`
		Data    StatusSnapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.Equal(t, types.LevelFull, resp.Data.State.Level)
	assert.Equal(t, types.FailuresToDegraded, resp.Data.Thresholds.FailuresToDegraded)
	assert.Equal(t, types.FailuresToMaintenance, resp.Data.Thresholds.FailuresToMaintenance)
	assert.Equal(t, 1, resp.Data.RecentActivity.Failures)
	assert.Equal(t, 2, resp.Data.RecentActivity.Successes)
	assert.Equal(t, 300, resp.Data.RecentActivity.WindowSeconds)

	// The status path never records outcomes
	assert.Equal(t, 1, s.EventCount(types.StreamFailure))
	assert.Equal(t, 2, s.EventCount(types.StreamSuccess))
}
