// Package builder provides a fluent interface for assembling flow
// definitions
package builder

import (
	"fmt"
	"slices"

	"github.com/flumeworks/flume/pkg/api"
)

// Flow is a builder for flow definitions. Builders are immutable; every
// method returns a derived builder, so partial definitions can be shared
// and extended independently
type Flow struct {
	id         api.FlowID
	name       string
	start      api.TaskName
	tasks      []*api.Task
	conditions []*api.Condition
}

// NewFlow creates a new flow builder with the specified ID. The flow name
// defaults to the ID until WithName overrides it
func NewFlow(id api.FlowID) *Flow {
	return &Flow{
		id:   id,
		name: string(id),
	}
}

func (f *Flow) WithName(name string) *Flow {
	res := *f
	res.name = name
	return &res
}

// StartingAt overrides the start task. By default execution starts at the
// first task added
func (f *Flow) StartingAt(name api.TaskName) *Flow {
	res := *f
	res.start = name
	return &res
}

// WithTask adds a task to the definition
func (f *Flow) WithTask(name api.TaskName) *Flow {
	return f.appendTask(&api.Task{Name: name})
}

// WithDescribedTask adds a task carrying a description, which the task
// registry can match handlers against
func (f *Flow) WithDescribedTask(name api.TaskName, desc string) *Flow {
	return f.appendTask(&api.Task{
		Name:        name,
		Description: desc,
	})
}

// WithTasks adds several tasks in order
func (f *Flow) WithTasks(names ...api.TaskName) *Flow {
	res := f
	for _, name := range names {
		res = res.WithTask(name)
	}
	return res
}

// WithRoute declares both outcomes for a task. Declaring a route for a
// source that already has one replaces it
func (f *Flow) WithRoute(source, onSuccess, onFailure api.TaskName) *Flow {
	cond := &api.Condition{
		Name:              fmt.Sprintf("%s-route", source),
		SourceTask:        source,
		TargetTaskSuccess: onSuccess,
		TargetTaskFailure: onFailure,
	}

	res := *f
	at := slices.IndexFunc(f.conditions, func(c *api.Condition) bool {
		return c.SourceTask == source
	})
	res.conditions = slices.Clone(f.conditions)
	if at >= 0 {
		res.conditions[at] = cond
		return &res
	}
	res.conditions = append(res.conditions, cond)
	return &res
}

// OnSuccess routes source to target when it succeeds; a failure ends the
// flow
func (f *Flow) OnSuccess(source, target api.TaskName) *Flow {
	return f.WithRoute(source, target, api.End)
}

// Chain adds tasks routed success-to-next, with any failure ending the
// flow. The final task is left without a route
func (f *Flow) Chain(names ...api.TaskName) *Flow {
	res := f.WithTasks(names...)
	for i, name := range names[:max(len(names)-1, 0)] {
		res = res.OnSuccess(name, names[i+1])
	}
	return res
}

// Build assembles the flow definition. The result is independent of the
// builder; validation happens at registration
func (f *Flow) Build() *api.Flow {
	start := f.start
	if start == "" && len(f.tasks) > 0 {
		start = f.tasks[0].Name
	}
	return &api.Flow{
		ID:         f.id,
		Name:       f.name,
		StartTask:  start,
		Tasks:      slices.Clone(f.tasks),
		Conditions: slices.Clone(f.conditions),
	}
}

func (f *Flow) appendTask(task *api.Task) *Flow {
	res := *f
	res.tasks = append(slices.Clone(f.tasks), task)
	return &res
}
