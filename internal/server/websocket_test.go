package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"github.com/flumeworks/flume/internal/assert/helpers"
	"github.com/flumeworks/flume/pkg/api"
)

type testWebSocketEnv struct {
	*testServerEnv
	HTTP *httptest.Server
	Conn *websocket.Conn
}

const (
	wsReadTimeout  = 2 * time.Second
	wsQuietTimeout = 300 * time.Millisecond
)

func (e *testWebSocketEnv) Close() {
	if e.Conn != nil {
		_ = e.Conn.Close()
	}
	if e.HTTP != nil {
		e.HTTP.Close()
	}
	e.Cleanup()
}

func testWebSocket(t *testing.T) *testWebSocketEnv {
	t.Helper()

	env := testServer(t)
	srv := httptest.NewServer(env.Server.SetupRoutes())

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/engine/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.NoError(t, err)

	return &testWebSocketEnv{
		testServerEnv: env,
		HTTP:          srv,
		Conn:          conn,
	}
}

func subscribe(
	t *testing.T, env *testWebSocketEnv, data api.ClientSubscription,
) api.SubscribedResult {
	t.Helper()

	err := env.Conn.WriteJSON(api.SubscribeRequest{
		Type: "subscribe",
		Data: data,
	})
	assert.NoError(t, err)

	_ = env.Conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	var res api.SubscribedResult
	err = env.Conn.ReadJSON(&res)
	assert.NoError(t, err)
	assert.Equal(t, "subscribed", res.Type)
	return res
}

func TestSocketSilentUntilSubscribed(t *testing.T) {
	env := testWebSocket(t)
	defer env.Close()

	err := env.Engine.RegisterFlow(helpers.NewTestFlow("quiet-flow"))
	assert.NoError(t, err)

	_ = env.Conn.SetReadDeadline(time.Now().Add(wsQuietTimeout))
	_, _, err = env.Conn.ReadMessage()
	assert.Error(t, err)
}

func TestSocketReceivesEvents(t *testing.T) {
	env := testWebSocket(t)
	defer env.Close()

	subscribe(t, env, api.ClientSubscription{})

	err := env.Engine.RegisterFlow(helpers.NewTestFlow("watched-flow"))
	assert.NoError(t, err)

	_ = env.Conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	var event api.Event
	err = env.Conn.ReadJSON(&event)
	assert.NoError(t, err)
	assert.Equal(t, api.EventTypeFlowRegistered, event.Type)
	assert.Equal(t, api.FlowID("watched-flow"), event.FlowID)
}

func TestSocketFlowFilter(t *testing.T) {
	env := testWebSocket(t)
	defer env.Close()

	subscribe(t, env, api.ClientSubscription{FlowID: "watched-flow"})

	err := env.Engine.RegisterFlow(helpers.NewTestFlow("ignored-flow"))
	assert.NoError(t, err)
	err = env.Engine.RegisterFlow(helpers.NewTestFlow("watched-flow"))
	assert.NoError(t, err)

	_ = env.Conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	var event api.Event
	err = env.Conn.ReadJSON(&event)
	assert.NoError(t, err)
	assert.Equal(t, api.FlowID("watched-flow"), event.FlowID)
}

func TestSocketEventTypeFilter(t *testing.T) {
	env := testWebSocket(t)
	defer env.Close()

	subscribe(t, env, api.ClientSubscription{
		EventTypes: []api.EventType{api.EventTypeExecutionCompleted},
	})

	err := env.Registry.Register(
		"work", helpers.StaticHandler(map[string]any{"ok": true}),
	)
	assert.NoError(t, err)
	err = env.Engine.RegisterFlow(helpers.NewTestFlow("typed-flow"))
	assert.NoError(t, err)

	st, err := env.Engine.Execute(
		context.Background(), "typed-flow", api.NewContext(),
	)
	assert.NoError(t, err)

	_ = env.Conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	var event api.Event
	err = env.Conn.ReadJSON(&event)
	assert.NoError(t, err)
	assert.Equal(t, api.EventTypeExecutionCompleted, event.Type)
	assert.Equal(t, st.ExecutionID, event.ExecutionID)
}

func TestSocketSubscribeExecutionState(t *testing.T) {
	env := testWebSocket(t)
	defer env.Close()

	err := env.Registry.Register(
		"work", helpers.StaticHandler(map[string]any{"ok": true}),
	)
	assert.NoError(t, err)
	err = env.Engine.RegisterFlow(helpers.NewTestFlow("state-flow"))
	assert.NoError(t, err)

	st, err := env.Engine.Execute(
		context.Background(), "state-flow", api.NewContext(),
	)
	assert.NoError(t, err)

	res := subscribe(t, env, api.ClientSubscription{
		ExecutionID: st.ExecutionID,
	})
	assert.NotEmpty(t, res.Data)

	var got api.ExecutionState
	err = json.Unmarshal(res.Data, &got)
	assert.NoError(t, err)
	assert.Equal(t, st.ExecutionID, got.ExecutionID)
	assert.Equal(t, api.ExecutionCompleted, got.Status)
}

func TestSocketClientLimit(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()
	env.Config.MaxClients = 1

	srv := httptest.NewServer(env.Server.SetupRoutes())
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/engine/ws"

	first, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.NoError(t, err)
	defer func() { _ = first.Close() }()

	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	_ = res.Body.Close()
}

func TestSocketIgnoresInvalidMessages(t *testing.T) {
	env := testWebSocket(t)
	defer env.Close()

	err := env.Conn.WriteMessage(websocket.TextMessage, []byte("not-json"))
	assert.NoError(t, err)
	err = env.Conn.WriteJSON(api.SubscribeRequest{Type: "noise"})
	assert.NoError(t, err)

	err = env.Engine.RegisterFlow(helpers.NewTestFlow("unseen-flow"))
	assert.NoError(t, err)

	_ = env.Conn.SetReadDeadline(time.Now().Add(wsQuietTimeout))
	_, _, err = env.Conn.ReadMessage()
	assert.Error(t, err)
}
