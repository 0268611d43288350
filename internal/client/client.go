// Package client invokes remote task workers over HTTP. A RemoteHandler
// plugs a worker endpoint into the task registry, so a flow task can be
// served by another process
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/flumeworks/flume/internal/engine"
	"github.com/flumeworks/flume/pkg/api"
	"github.com/flumeworks/flume/pkg/log"
)

type (
	// HTTPClient posts task requests to worker endpoints
	HTTPClient struct {
		httpClient *http.Client
	}

	// RemoteHandler serves a single task by delegating to a worker endpoint
	RemoteHandler struct {
		client   *HTTPClient
		name     api.TaskName
		endpoint string
	}
)

const userAgent = "Flume-Engine/1.0"

var (
	ErrTaskUnsuccessful = errors.New("task returned success=false")
	ErrHTTPStatus       = errors.New("task endpoint returned HTTP error")
)

var _ engine.Handler = (*RemoteHandler)(nil)

func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewRemoteHandler binds a task name to a worker endpoint
func NewRemoteHandler(
	c *HTTPClient, name api.TaskName, endpoint string,
) *RemoteHandler {
	return &RemoteHandler{
		client:   c,
		name:     name,
		endpoint: endpoint,
	}
}

// Execute posts the execution context to the worker and returns its data
func (h *RemoteHandler) Execute(
	ctx context.Context, ec api.Context,
) (any, error) {
	return h.client.Invoke(ctx, h.endpoint, h.name, ec)
}

// Invoke posts a task request to an endpoint and returns the worker's
// result data. A worker reply with success=false becomes an error, which
// the run loop records as a task failure
func (c *HTTPClient) Invoke(
	ctx context.Context, endpoint string, name api.TaskName, ec api.Context,
) (any, error) {
	request := api.TaskRequest{
		Task:    name,
		Context: ec,
	}

	body, err := json.Marshal(request)
	if err != nil {
		slog.Error("Failed to marshal task request",
			log.TaskName(name),
			log.Error(err))
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, endpoint, bytes.NewReader(body),
	)
	if err != nil {
		slog.Error("Failed to create HTTP request",
			log.TaskName(name),
			log.Error(err))
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	dur := time.Since(start)

	if err != nil {
		slog.Error("Task request failed",
			log.TaskName(name),
			slog.Duration("duration", dur),
			log.Error(err))
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("Failed to read worker response",
			log.TaskName(name),
			log.Error(err))
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("Worker returned HTTP error",
			log.TaskName(name),
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(respBody)))
		return nil, fmt.Errorf("%w: HTTP %d", ErrHTTPStatus, resp.StatusCode)
	}

	var response api.TaskResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		slog.Error("Failed to unmarshal worker response",
			log.TaskName(name),
			log.Error(err))
		return nil, err
	}

	if !response.Success {
		if response.Error == "" {
			return nil, ErrTaskUnsuccessful
		}
		return nil, fmt.Errorf(
			"%w: %s", ErrTaskUnsuccessful, response.Error,
		)
	}
	return response.Data, nil
}
