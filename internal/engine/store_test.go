package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flumeworks/flume/internal/assert/helpers"
	"github.com/flumeworks/flume/internal/engine"
	"github.com/flumeworks/flume/pkg/api"
)

func TestFlowStoreInsert(t *testing.T) {
	store := engine.NewFlowStore()

	require.NoError(t, store.Insert(helpers.NewTestFlow("flow-1")))
	require.NoError(t, store.Insert(helpers.NewTestFlow("flow-2")))
	assert.Equal(t, 2, store.Len())

	flow, ok := store.Get("flow-1")
	require.True(t, ok)
	assert.Equal(t, api.FlowID("flow-1"), flow.ID)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestFlowStoreDuplicate(t *testing.T) {
	store := engine.NewFlowStore()

	require.NoError(t, store.Insert(helpers.NewTestFlow("flow-1")))
	err := store.Insert(helpers.NewTestFlow("flow-1"))
	assert.ErrorIs(t, err, engine.ErrFlowExists)
	assert.Equal(t, 1, store.Len())
}

func TestFlowStoreOrder(t *testing.T) {
	store := engine.NewFlowStore()

	for _, id := range []api.FlowID{"charlie", "alpha", "bravo"} {
		require.NoError(t, store.Insert(helpers.NewTestFlow(id)))
	}

	flows := store.List()
	require.Len(t, flows, 3)
	assert.Equal(t, api.FlowID("charlie"), flows[0].ID)
	assert.Equal(t, api.FlowID("alpha"), flows[1].ID)
	assert.Equal(t, api.FlowID("bravo"), flows[2].ID)
}

func TestExecutionStorePut(t *testing.T) {
	store := engine.NewExecutionStore()
	flow := helpers.NewTestFlow("flow-1")

	st := api.NewExecutionState(flow, api.Context{})
	store.Put(st)

	got, ok := store.Get(st.ExecutionID)
	require.True(t, ok)
	assert.Same(t, st, got)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestExecutionStoreReplace(t *testing.T) {
	store := engine.NewExecutionStore()
	flow := helpers.NewTestFlow("flow-1")

	st := api.NewExecutionState(flow, api.Context{})
	store.Put(st)

	updated := st.SetStatus(api.ExecutionCompleted)
	store.Put(updated)

	assert.Equal(t, 1, store.Len())
	got, ok := store.Get(st.ExecutionID)
	require.True(t, ok)
	assert.Equal(t, api.ExecutionCompleted, got.Status)
}

func TestExecutionStoreOrder(t *testing.T) {
	store := engine.NewExecutionStore()
	flow := helpers.NewTestFlow("flow-1")

	first := api.NewExecutionState(flow, api.Context{})
	second := api.NewExecutionState(flow, api.Context{})
	third := api.NewExecutionState(flow, api.Context{})

	store.Put(first)
	store.Put(second)
	store.Put(third)

	// replacing a snapshot must not disturb creation order
	store.Put(first.SetStatus(api.ExecutionFailed))

	states := store.List()
	require.Len(t, states, 3)
	assert.Equal(t, first.ExecutionID, states[0].ExecutionID)
	assert.Equal(t, second.ExecutionID, states[1].ExecutionID)
	assert.Equal(t, third.ExecutionID, states[2].ExecutionID)
}
