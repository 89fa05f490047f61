package downstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shedgate/shedgate/pkg/config"
	"github.com/shedgate/shedgate/pkg/errors"
	"github.com/shedgate/shedgate/pkg/types"
)

func newTestInvoker(url string, timeout time.Duration) *HTTPInvoker {
	return NewHTTPInvoker(&config.DownstreamConfig{
		FullURL:        url,
		DegradedURL:    url,
		MaintenanceURL: url,
		InvokeTimeout:  timeout,
	})
}

func TestHTTPInvoker_RelaysResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"ok"}`))
	}))
	defer server.Close()

	inv := newTestInvoker(server.URL, time.Second)
	resp, err := inv.Invoke(context.Background(), types.LevelFull, []byte(`{"q":1}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, resp.IsError())
	assert.JSONEq(t, `{"message":"ok"}`, string(resp.Body))
}

func TestHTTPInvoker_ErrorStatusIsNotATransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer server.Close()

	inv := newTestInvoker(server.URL, time.Second)
	resp, err := inv.Invoke(context.Background(), types.LevelDegraded, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.True(t, resp.IsError())
}

func TestHTTPInvoker_TimeoutSurfacesAsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	inv := newTestInvoker(server.URL, 20*time.Millisecond)
	_, err := inv.Invoke(context.Background(), types.LevelFull, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeDownstreamUnavailable, errors.GetType(err))
}

func TestHTTPInvoker_UnreachableEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	inv := newTestInvoker(server.URL, time.Second)
	_, err := inv.Invoke(context.Background(), types.LevelMaintenance, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeDownstreamUnavailable, errors.GetType(err))
}

func TestHTTPInvoker_WrapsNonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text"))
	}))
	defer server.Close()

	inv := newTestInvoker(server.URL, time.Second)
	resp, err := inv.Invoke(context.Background(), types.LevelFull, nil)
	require.NoError(t, err)

	var wrapped map[string]string
	require.NoError(t, json.Unmarshal(resp.Body, &wrapped))
	assert.Equal(t, "plain text", wrapped["raw"])
}
