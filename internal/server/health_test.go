package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flumeworks/flume/internal/assert/helpers"
	"github.com/flumeworks/flume/internal/engine"
	"github.com/flumeworks/flume/pkg/api"
)

const healthWait = 2 * time.Second

func TestHealthEndpoint(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	router := env.Server.SetupRoutes()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var res api.HealthResponse
	err := json.Unmarshal(w.Body.Bytes(), &res)
	assert.NoError(t, err)
	assert.Equal(t, "healthy", res.Status)
	assert.Equal(t, "flume", res.Service)
}

func TestTaskHealthEmpty(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()

	req := httptest.NewRequest("GET", "/health/tasks", nil)
	w := httptest.NewRecorder()

	router := env.Server.SetupRoutes()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var res api.TaskHealthListResponse
	err := json.Unmarshal(w.Body.Bytes(), &res)
	assert.NoError(t, err)
	assert.Equal(t, 0, res.Count)
}

func TestTaskHealthNotFound(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()

	req := httptest.NewRequest("GET", "/health/tasks/missing", nil)
	w := httptest.NewRecorder()

	router := env.Server.SetupRoutes()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskHealthDegraded(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()
	env.Server.Start()
	defer env.Server.Stop()

	err := env.Registry.Register("work", helpers.FailingHandler("db offline"))
	assert.NoError(t, err)
	err = env.Engine.RegisterFlow(helpers.NewTestFlow("hc-flow"))
	assert.NoError(t, err)

	ctx := context.Background()
	for range 3 {
		_, err = env.Engine.Execute(ctx, "hc-flow", api.NewContext())
		assert.NoError(t, err)
	}

	router := env.Server.SetupRoutes()
	assert.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		router.ServeHTTP(w,
			httptest.NewRequest("GET", "/health/tasks/work", nil))
		if w.Code != http.StatusOK {
			return false
		}
		var th api.TaskHealth
		if json.Unmarshal(w.Body.Bytes(), &th) != nil {
			return false
		}
		return th.Status == api.HealthDegraded && th.Consecutive == 3
	}, healthWait, 10*time.Millisecond)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var res api.HealthResponse
	err = json.Unmarshal(w.Body.Bytes(), &res)
	assert.NoError(t, err)
	assert.Equal(t, "degraded", res.Status)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health/tasks", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var list api.TaskHealthListResponse
	err = json.Unmarshal(w.Body.Bytes(), &list)
	assert.NoError(t, err)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, api.TaskName("work"), list.Tasks[0].Task)
	assert.Equal(t, "db offline", list.Tasks[0].LastError)
}

func TestTaskHealthRecovery(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()
	env.Server.Start()
	defer env.Server.Stop()

	calls := 0
	flaky := engine.HandlerFunc(
		func(context.Context, api.Context) (any, error) {
			calls++
			if calls <= 3 {
				return nil, errors.New("warming up")
			}
			return map[string]any{"ok": true}, nil
		},
	)
	err := env.Registry.Register("flaky", flaky)
	assert.NoError(t, err)
	err = env.Engine.RegisterFlow(helpers.NewLinearFlow("flaky-flow", "flaky"))
	assert.NoError(t, err)

	ctx := context.Background()
	for range 4 {
		_, err = env.Engine.Execute(ctx, "flaky-flow", api.NewContext())
		assert.NoError(t, err)
	}

	router := env.Server.SetupRoutes()
	assert.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		router.ServeHTTP(w,
			httptest.NewRequest("GET", "/health/tasks/flaky", nil))
		if w.Code != http.StatusOK {
			return false
		}
		var th api.TaskHealth
		if json.Unmarshal(w.Body.Bytes(), &th) != nil {
			return false
		}
		return th.Status == api.HealthHealthy &&
			th.Consecutive == 0 &&
			th.Failures == 3 &&
			th.Successes == 1
	}, healthWait, 10*time.Millisecond)
}
