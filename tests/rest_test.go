package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flumeworks/flume/internal/assert/helpers"
	"github.com/flumeworks/flume/internal/server"
	"github.com/flumeworks/flume/internal/tasks"
	"github.com/flumeworks/flume/pkg/api"
)

// restEnv runs the full service over a real listener: engine, REST routes,
// health and metrics consumers, and the WebSocket endpoint
type restEnv struct {
	*helpers.TestEngineEnv
	Server *server.Server
	HTTP   *httptest.Server
}

func newRESTEnv(t *testing.T) *restEnv {
	t.Helper()

	env := helpers.NewTestEngine(t)
	require.NoError(t, env.Registry.RegisterAll(tasks.Handlers()))

	srv := server.NewServer(env.Engine, env.Config)
	srv.Start()
	ts := httptest.NewServer(srv.SetupRoutes())

	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
		env.Cleanup()
	})
	return &restEnv{
		TestEngineEnv: env,
		Server:        srv,
		HTTP:          ts,
	}
}

func (e *restEnv) postJSON(
	t *testing.T, path string, body, out any,
) int {
	t.Helper()

	b, err := json.Marshal(body)
	require.NoError(t, err)
	res, err := http.Post(
		e.HTTP.URL+path, "application/json", bytes.NewReader(b),
	)
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func (e *restEnv) getJSON(t *testing.T, path string, out any) int {
	t.Helper()

	res, err := http.Get(e.HTTP.URL + path)
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

// TestServiceJourney tests the whole service surface the way a client would
// use it: register a flow, run it, query the record, and check the
// operational endpoints
func TestServiceJourney(t *testing.T) {
	env := newRESTEnv(t)

	// Step A: register the pipeline flow over the wire
	doc := api.CreateFlowRequest{
		FlowData: api.FlowDocument{Flow: helpers.NewPipelineFlow("pipeline")},
	}
	var created api.FlowRegisteredResponse
	code := env.postJSON(t, "/flows", doc, &created)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, api.FlowID("pipeline"), created.FlowID)

	// Step B: the id is now taken
	code = env.postJSON(t, "/flows", doc, nil)
	assert.Equal(t, http.StatusConflict, code)

	var flows api.FlowsListResponse
	code = env.getJSON(t, "/flows", &flows)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, flows.Count)

	// Step C: execute it and get the terminal state back
	var st api.ExecutionState
	code = env.postJSON(t, "/flows/execute", api.ExecuteRequest{
		FlowID:  "pipeline",
		Context: api.NewContext().Set("source", "users-db"),
	}, &st)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, api.ExecutionCompleted, st.Status)
	assert.Equal(t, []api.TaskName{
		"fetch_data", "process_data", "store_data",
	}, st.TaskResults.Names())
	assert.Equal(t, "users-db", st.Context.GetString("source", ""))

	// Step D: the execution record is queryable afterwards
	var executions api.ExecutionsListResponse
	code = env.getJSON(t, "/executions?flow_id=pipeline", &executions)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, executions.Count)
	assert.Equal(t, st.ExecutionID, executions.Executions[0].ExecutionID)

	var fetched api.ExecutionState
	code = env.getJSON(
		t, "/executions/"+string(st.ExecutionID), &fetched,
	)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, api.ExecutionCompleted, fetched.Status)

	code = env.getJSON(t, "/executions/no-such-execution", nil)
	assert.Equal(t, http.StatusNotFound, code)

	// Step E: a clean run leaves the service healthy
	var health api.HealthResponse
	code = env.getJSON(t, "/health", &health)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "flume", health.Service)

	// Step F: metrics caught up with the activity
	assert.Eventually(t, func() bool {
		res, err := http.Get(env.HTTP.URL + "/metrics")
		if err != nil {
			return false
		}
		defer func() { _ = res.Body.Close() }()
		b, err := io.ReadAll(res.Body)
		if err != nil {
			return false
		}
		body := string(b)
		return strings.Contains(body,
			"flume_flows_registered_total 1") &&
			strings.Contains(body,
				`flume_executions_total{status="COMPLETED"} 1`)
	}, 2*time.Second, 25*time.Millisecond)
}

// TestExecutionProgressOverWebSocket tests that a subscribed socket sees a
// run's full event trail, from registration through completion
func TestExecutionProgressOverWebSocket(t *testing.T) {
	env := newRESTEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.HTTP.URL, "http") + "/engine/ws"
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if res != nil {
		_ = res.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	// Step A: watch everything the pipeline flow does
	require.NoError(t, conn.WriteJSON(api.SubscribeRequest{
		Type: "subscribe",
		Data: api.ClientSubscription{FlowID: "pipeline"},
	}))
	var ack api.SubscribedResult
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, "subscribed", ack.Type)

	// Step B: register and run the flow while the socket is open
	code := env.postJSON(t, "/flows", api.CreateFlowRequest{
		FlowData: api.FlowDocument{Flow: helpers.NewPipelineFlow("pipeline")},
	}, nil)
	require.Equal(t, http.StatusCreated, code)

	var st api.ExecutionState
	code = env.postJSON(t, "/flows/execute", api.ExecuteRequest{
		FlowID:  "pipeline",
		Context: api.NewContext(),
	}, &st)
	require.Equal(t, http.StatusOK, code)

	// Step C: the event trail arrives in publish order, ending with the
	// terminal event for this execution
	require.NoError(t,
		conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var trail []api.EventType
	for {
		var ev api.Event
		require.NoError(t, conn.ReadJSON(&ev))
		trail = append(trail, ev.Type)
		if ev.Type.Terminal() {
			assert.Equal(t, api.EventTypeExecutionCompleted, ev.Type)
			assert.Equal(t, st.ExecutionID, ev.ExecutionID)
			break
		}
	}

	assert.Equal(t, api.EventTypeFlowRegistered, trail[0])
	assert.Contains(t, trail, api.EventTypeExecutionStarted)
	assert.Contains(t, trail, api.EventTypeTaskStarted)
	assert.Contains(t, trail, api.EventTypeTaskCompleted)
}
