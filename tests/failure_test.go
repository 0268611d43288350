package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flumeworks/flume/internal/assert/helpers"
	"github.com/flumeworks/flume/pkg/api"
)

// TestFailureRoutedToEnd tests that a condition can declare a failure as an
// acceptable terminal outcome, completing the flow without visiting the
// remaining tasks
func TestFailureRoutedToEnd(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		// Step A: the first task fails; the rest would succeed
		rec := &helpers.Recorder{}
		assert.NoError(t, env.Registry.Register("t1",
			rec.FailingHandler("t1", "upstream offline")))
		assert.NoError(t, env.Registry.Register("t2",
			rec.Handler("t2", map[string]any{"ok": true})))
		assert.NoError(t, env.Registry.Register("t3",
			rec.Handler("t3", map[string]any{"ok": true})))

		flow := helpers.NewLinearFlow("short-circuit", "t1", "t2", "t3")
		assert.NoError(t, env.Engine.RegisterFlow(flow))

		// Step B: the failure edge routes straight to the end sentinel
		st, err := env.Engine.Execute(
			context.Background(), "short-circuit", api.NewContext(),
		)
		assert.NoError(t, err)

		assert.Equal(t, api.ExecutionCompleted, st.Status)
		assert.Nil(t, st.CurrentTask)
		assert.Equal(t, []api.TaskName{"t1"}, rec.Names())
		assert.Equal(t, []api.TaskName{"t1"}, st.TaskResults.Names())

		result, ok := st.TaskResults.Get("t1")
		assert.True(t, ok)
		assert.Equal(t, api.TaskFailure, result.Status)
		assert.Equal(t, "upstream offline", result.Error)

		// A failed task merges nothing into the context
		assert.False(t, st.Context.Has(api.ResultKey("t1")))
		assert.False(t, st.Context.Has("error"))
	})
}

// TestFailureRoutedToRecovery tests that a failure edge can route to a
// compensating task instead of the end sentinel
func TestFailureRoutedToRecovery(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		rec := &helpers.Recorder{}
		assert.NoError(t, env.Registry.Register("charge",
			rec.FailingHandler("charge", "card declined")))
		assert.NoError(t, env.Registry.Register("fulfill",
			rec.Handler("fulfill", map[string]any{"shipped": true})))
		assert.NoError(t, env.Registry.Register("notify",
			rec.Handler("notify", map[string]any{"notified": true})))

		flow := &api.Flow{
			ID:        "order",
			Name:      "Order Flow",
			StartTask: "charge",
			Tasks: []*api.Task{
				{Name: "charge"},
				{Name: "fulfill"},
				{Name: "notify"},
			},
			Conditions: []*api.Condition{
				{
					Name:              "after-charge",
					SourceTask:        "charge",
					TargetTaskSuccess: "fulfill",
					TargetTaskFailure: "notify",
				},
			},
		}
		assert.NoError(t, env.Engine.RegisterFlow(flow))

		st, err := env.Engine.Execute(
			context.Background(), "order", api.NewContext(),
		)
		assert.NoError(t, err)

		// The compensating task ran; the success branch never did
		assert.Equal(t, api.ExecutionCompleted, st.Status)
		assert.Equal(t, []api.TaskName{"charge", "notify"}, rec.Names())
		assert.True(t, st.Context.Has(api.ResultKey("notify")))
		assert.False(t, st.Context.Has(api.ResultKey("fulfill")))
	})
}

// TestFailureWithoutCondition tests that a task failure with no declared
// route fails the whole execution
func TestFailureWithoutCondition(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		rec := &helpers.Recorder{}
		assert.NoError(t, env.Registry.Register("t1",
			rec.Handler("t1", map[string]any{"ok": true})))
		assert.NoError(t, env.Registry.Register("t2",
			rec.FailingHandler("t2", "disk full")))

		flow := helpers.NewLinearFlow("halting", "t1", "t2")
		assert.NoError(t, env.Engine.RegisterFlow(flow))

		st, err := env.Engine.Execute(
			context.Background(), "halting", api.NewContext(),
		)
		assert.NoError(t, err)

		assert.Equal(t, api.ExecutionFailed, st.Status)
		assert.Nil(t, st.CurrentTask)
		assert.NotNil(t, st.EndTime)
		assert.Equal(t, []api.TaskName{"t1", "t2"}, rec.Names())

		result, ok := st.TaskResults.Get("t2")
		assert.True(t, ok)
		assert.Equal(t, api.TaskFailure, result.Status)
		assert.Equal(t, "disk full", result.Error)

		// The first task still contributed its result
		assert.True(t, st.Context.Has(api.ResultKey("t1")))
		assert.False(t, st.Context.Has(api.ResultKey("t2")))
	})
}

// TestHandlerPanicBecomesFailure tests that a panicking handler is recorded
// as a task failure rather than unwinding the engine
func TestHandlerPanicBecomesFailure(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		assert.NoError(t, env.Registry.Register("work",
			helpers.PanickyHandler("nil map write")))
		assert.NoError(t, env.Engine.RegisterFlow(helpers.NewTestFlow("panics")))

		st, err := env.Engine.Execute(
			context.Background(), "panics", api.NewContext(),
		)
		assert.NoError(t, err)

		assert.Equal(t, api.ExecutionFailed, st.Status)
		result, ok := st.TaskResults.Get("work")
		assert.True(t, ok)
		assert.Equal(t, api.TaskFailure, result.Status)
		assert.Contains(t, result.Error, "task panic")
		assert.Contains(t, result.Error, "nil map write")
	})
}

// TestMissingHandlerIsEngineFault tests that a flow referencing a task with
// no registered handler terminates with ERROR status at execution time
func TestMissingHandlerIsEngineFault(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		// Registration succeeds; handlers resolve when the run reaches them
		assert.NoError(t, env.Engine.RegisterFlow(helpers.NewTestFlow("orphan")))

		st, err := env.Engine.Execute(
			context.Background(), "orphan", api.NewContext(),
		)
		assert.NoError(t, err)

		assert.Equal(t, api.ExecutionError, st.Status)
		assert.Nil(t, st.CurrentTask)
		assert.Equal(t, 0, st.TaskResults.Len())

		msg := st.Context.GetString("error", "")
		assert.Contains(t, msg, "no function registered for task")
		assert.Contains(t, msg, "work")
	})
}

// TestFailureThenRecoverySeesPriorResults tests that a compensating task
// observes the successful results accumulated before the failure
func TestFailureThenRecoverySeesPriorResults(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		assert.NoError(t, env.Registry.Register("reserve",
			helpers.StaticHandler(map[string]any{"reservation": "r-100"})))
		assert.NoError(t, env.Registry.Register("charge",
			helpers.FailingHandler("card declined")))
		assert.NoError(t, env.Registry.Register("release",
			helpers.StaticHandler(map[string]any{"released": true})))

		flow := &api.Flow{
			ID:        "reserve-charge",
			Name:      "Reserve and Charge",
			StartTask: "reserve",
			Tasks: []*api.Task{
				{Name: "reserve"},
				{Name: "charge"},
				{Name: "release"},
			},
			Conditions: []*api.Condition{
				{
					Name:              "after-reserve",
					SourceTask:        "reserve",
					TargetTaskSuccess: "charge",
					TargetTaskFailure: api.End,
				},
				{
					Name:              "after-charge",
					SourceTask:        "charge",
					TargetTaskSuccess: api.End,
					TargetTaskFailure: "release",
				},
			},
		}
		assert.NoError(t, env.Engine.RegisterFlow(flow))

		st, err := env.Engine.Execute(
			context.Background(), "reserve-charge", api.NewContext(),
		)
		assert.NoError(t, err)

		assert.Equal(t, api.ExecutionCompleted, st.Status)
		assert.Equal(t, []api.TaskName{
			"reserve", "charge", "release",
		}, st.TaskResults.Names())

		// The reservation made before the failure is still in the context
		reserved, ok := st.Context.Get(api.ResultKey("reserve"))
		assert.True(t, ok)
		assert.Equal(t, "r-100", reserved.(map[string]any)["reservation"])
	})
}
