package wait

import (
	"testing"
	"time"

	"github.com/flumeworks/flume/internal/engine"
	"github.com/flumeworks/flume/pkg/api"
	"github.com/flumeworks/flume/pkg/util"
)

type (
	// Wait consumes events from an engine subscription until expected
	// events arrive or a timeout expires
	Wait struct {
		t        *testing.T
		consumer engine.EventConsumer
		timeout  time.Duration
	}

	Predicate[T any] func(T) bool

	EventFilter Predicate[*api.Event]
)

const DefaultTimeout = time.Second * 5

func On(t *testing.T, consumer engine.EventConsumer) *Wait {
	return &Wait{
		t:        t,
		consumer: consumer,
		timeout:  DefaultTimeout,
	}
}

func (w *Wait) WithTimeout(timeout time.Duration) *Wait {
	res := *w
	res.timeout = timeout
	return &res
}

// ForEvents waits for matching events from the consumer
func (w *Wait) ForEvents(count int, filter EventFilter) {
	w.t.Helper()

	deadline := time.NewTimer(w.timeout)
	defer deadline.Stop()

	for seen := 0; seen < count; {
		select {
		case ev, ok := <-w.consumer.Receive():
			if !ok {
				w.t.Fatalf(
					"event consumer closed before receiving %d events", count,
				)
			}
			if !filter(ev) {
				continue
			}
			seen++
		case <-deadline.C:
			w.t.Fatalf("timeout waiting for %d events", count)
		}
	}
}

// ForEvent waits for a single matching event
func (w *Wait) ForEvent(filter EventFilter) {
	w.ForEvents(1, filter)
}

// And composes event filters and returns true when all match
func And(filters ...EventFilter) EventFilter {
	return func(ev *api.Event) bool {
		for _, filter := range filters {
			if !filter(ev) {
				return false
			}
		}
		return true
	}
}

// Type creates a filter for a single event type
func Type(eventType api.EventType) EventFilter {
	return Types(eventType)
}

// Types creates a filter for the given event types
func Types(eventTypes ...api.EventType) EventFilter {
	if len(eventTypes) == 0 {
		return func(*api.Event) bool { return false }
	}
	lookup := make(util.Set[api.EventType], len(eventTypes))
	for _, et := range eventTypes {
		lookup.Add(et)
	}
	return func(ev *api.Event) bool {
		return lookup.Contains(ev.Type)
	}
}

// FlowID matches events for the provided flow ID
func FlowID(id api.FlowID) EventFilter {
	return FlowIDs(id)
}

// FlowIDs matches events for the provided flow IDs, each at most once
func FlowIDs(ids ...api.FlowID) EventFilter {
	expected := make(util.Set[api.FlowID], len(ids))
	for _, flowID := range ids {
		expected.Add(flowID)
	}
	return func(ev *api.Event) bool {
		if expected.Contains(ev.FlowID) {
			expected.Remove(ev.FlowID)
			return true
		}
		return false
	}
}

// ExecutionID matches events for the provided execution ID
func ExecutionID(id api.ExecutionID) EventFilter {
	return func(ev *api.Event) bool {
		return ev.ExecutionID == id
	}
}

// Task matches events for the provided task names, each at most once
func Task(names ...api.TaskName) EventFilter {
	expected := make(util.Set[api.TaskName], len(names))
	for _, name := range names {
		expected.Add(name)
	}
	return func(ev *api.Event) bool {
		if expected.Contains(ev.Task) {
			expected.Remove(ev.Task)
			return true
		}
		return false
	}
}

// FlowRegistered matches flow registered events for the provided flow IDs
func FlowRegistered(ids ...api.FlowID) EventFilter {
	return And(Type(api.EventTypeFlowRegistered), FlowIDs(ids...))
}

// ExecutionStarted matches execution started events for the provided
// execution ID
func ExecutionStarted(id api.ExecutionID) EventFilter {
	return And(Type(api.EventTypeExecutionStarted), ExecutionID(id))
}

// ExecutionTerminal matches terminal execution events for the provided
// execution ID
func ExecutionTerminal(id api.ExecutionID) EventFilter {
	return And(
		Types(
			api.EventTypeExecutionCompleted,
			api.EventTypeExecutionFailed,
			api.EventTypeExecutionError,
		),
		ExecutionID(id),
	)
}

// TaskStarted matches task started events for the provided task names
func TaskStarted(names ...api.TaskName) EventFilter {
	return And(Type(api.EventTypeTaskStarted), Task(names...))
}

// TaskTerminal matches task completed or failed events for the provided
// task names
func TaskTerminal(names ...api.TaskName) EventFilter {
	return And(
		Types(api.EventTypeTaskCompleted, api.EventTypeTaskFailed),
		Task(names...),
	)
}
