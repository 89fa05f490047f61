// Package downstream invokes the three external level handlers.
package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/shedgate/shedgate/pkg/config"
	"github.com/shedgate/shedgate/pkg/errors"
	"github.com/shedgate/shedgate/pkg/types"
)

// Response is the downstream handler's reply, passed through by the router
type Response struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       json.RawMessage   `json:"body"`
}

// IsError reports whether the handler answered with an error status
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

// Invoker dispatches a request to the handler serving a degradation level
type Invoker interface {
	Invoke(ctx context.Context, level types.Level, body []byte) (*Response, error)
}

// HTTPInvoker invokes the level handlers over HTTP with a bounded timeout
type HTTPInvoker struct {
	endpoints map[types.Level]string
	client    *http.Client
}

// NewHTTPInvoker creates an invoker from the downstream configuration
func NewHTTPInvoker(cfg *config.DownstreamConfig) *HTTPInvoker {
	timeout := cfg.InvokeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPInvoker{
		endpoints: map[types.Level]string{
			types.LevelFull:        cfg.FullURL,
			types.LevelDegraded:    cfg.DegradedURL,
			types.LevelMaintenance: cfg.MaintenanceURL,
		},
		client: &http.Client{Timeout: timeout},
	}
}

// Invoke sends the request body to the handler for the given level.
// A transport fault or timeout surfaces as a DownstreamUnavailable error;
// an error status from the handler is returned as a normal response for the
// caller to classify.
func (i *HTTPInvoker) Invoke(ctx context.Context, level types.Level, body []byte) (*Response, error) {
	endpoint, ok := i.endpoints[level]
	if !ok {
		return nil, errors.NewValidationError("no endpoint configured for level " + level.String())
	}

	if body == nil {
		body = []byte("{}")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewInternalError("failed to build downstream request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, errors.NewDownstreamUnavailableError(level.ServiceName(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewDownstreamUnavailableError(level.ServiceName(), err)
	}

	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	if !json.Valid(respBody) {
		respBody, _ = json.Marshal(map[string]string{"raw": string(respBody)})
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       respBody,
	}, nil
}
