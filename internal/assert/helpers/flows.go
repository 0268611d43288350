package helpers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/flumeworks/flume/internal/engine"
	"github.com/flumeworks/flume/pkg/api"
)

// Recorder captures the order in which task handlers are invoked
type Recorder struct {
	mu    sync.Mutex
	names []api.TaskName
}

// NewTestFlow creates a minimal single-task flow with the given id
func NewTestFlow(id api.FlowID) *api.Flow {
	return &api.Flow{
		ID:        id,
		Name:      "Test Flow",
		StartTask: "work",
		Tasks: []*api.Task{
			{Name: "work"},
		},
	}
}

// NewLinearFlow creates a flow that chains the given tasks in order. Each
// task routes to the next on success and to the end sentinel on failure;
// the final task has no condition
func NewLinearFlow(id api.FlowID, tasks ...api.TaskName) *api.Flow {
	flow := &api.Flow{
		ID:        id,
		Name:      "Linear Flow",
		StartTask: tasks[0],
	}
	for _, name := range tasks {
		flow.Tasks = append(flow.Tasks, &api.Task{Name: name})
	}
	for i, name := range tasks[:len(tasks)-1] {
		flow.Conditions = append(flow.Conditions, &api.Condition{
			Name:              fmt.Sprintf("%s-next", name),
			SourceTask:        name,
			TargetTaskSuccess: tasks[i+1],
			TargetTaskFailure: api.End,
		})
	}
	return flow
}

// NewPipelineFlow creates the canonical fetch/process/store flow used by
// the demo handlers
func NewPipelineFlow(id api.FlowID) *api.Flow {
	return NewLinearFlow(id, "fetch_data", "process_data", "store_data")
}

// StaticHandler creates a handler that always succeeds with the given data
func StaticHandler(data any) engine.Handler {
	return engine.HandlerFunc(
		func(context.Context, api.Context) (any, error) {
			return data, nil
		},
	)
}

// FailingHandler creates a handler that always fails with the given message
func FailingHandler(msg string) engine.Handler {
	return engine.HandlerFunc(
		func(context.Context, api.Context) (any, error) {
			return nil, errors.New(msg)
		},
	)
}

// PanickyHandler creates a handler that panics with the given value
func PanickyHandler(v any) engine.Handler {
	return engine.HandlerFunc(
		func(context.Context, api.Context) (any, error) {
			panic(v)
		},
	)
}

// Handler creates a recording handler that succeeds with the given data
func (r *Recorder) Handler(name api.TaskName, data any) engine.Handler {
	return engine.HandlerFunc(
		func(context.Context, api.Context) (any, error) {
			r.record(name)
			return data, nil
		},
	)
}

// FailingHandler creates a recording handler that fails with the given
// message
func (r *Recorder) FailingHandler(
	name api.TaskName, msg string,
) engine.Handler {
	return engine.HandlerFunc(
		func(context.Context, api.Context) (any, error) {
			r.record(name)
			return nil, errors.New(msg)
		},
	)
}

// Names returns the recorded task names in invocation order
func (r *Recorder) Names() []api.TaskName {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]api.TaskName, len(r.names))
	copy(res, r.names)
	return res
}

func (r *Recorder) record(name api.TaskName) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
}
