package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flumeworks/flume/pkg/api"
	"github.com/flumeworks/flume/pkg/log"
)

// errorContextKey receives the message of an engine fault that terminates
// a run with ERROR status
const errorContextKey = "error"

// maxSteps bounds the run loop for a flow. A validated flow is acyclic, so
// the bound only trips on validation regressions
func maxSteps(flow *api.Flow) int {
	return len(flow.Tasks) + 1
}

// run drives one execution to a terminal status on the calling goroutine.
// The loop owns the state exclusively; each mutation replaces the stored
// snapshot so concurrent readers observe whole steps
func (e *Engine) run(
	ctx context.Context, flow *api.Flow, st *api.ExecutionState,
) *api.ExecutionState {
	for steps := 0; ; steps++ {
		if st.CurrentTask == nil || st.CurrentTask.IsEnd() {
			return e.finish(st, api.ExecutionCompleted, nil)
		}
		if steps >= maxSteps(flow) {
			return e.finish(st, api.ExecutionError,
				fmt.Errorf("%w: %d", ErrMaxStepsExceeded, maxSteps(flow)))
		}

		current := *st.CurrentTask
		task, ok := flow.Task(current)
		if !ok {
			return e.finish(st, api.ExecutionError,
				fmt.Errorf("%w: %s", ErrTaskNotFound, current))
		}

		handler, ok := e.registry.Resolve(task)
		if !ok {
			return e.finish(st, api.ExecutionError,
				fmt.Errorf("%w: %s", ErrTaskFunctionMissing, current))
		}

		e.hub.Publish(&api.Event{
			Type:        api.EventTypeTaskStarted,
			FlowID:      st.FlowID,
			ExecutionID: st.ExecutionID,
			Task:        current,
		})

		result := invokeHandler(ctx, handler, st.Context)
		st = st.SetTaskResult(current, result)
		if result.Succeeded() {
			st = st.SetContext(
				st.Context.Set(api.ResultKey(current), result.Data),
			)
		}
		e.execs.Put(st)
		e.publishTaskResult(st, current, result)

		cond, ok := flow.ConditionFor(current)
		if !ok {
			if result.Succeeded() {
				return e.finish(st, api.ExecutionCompleted, nil)
			}
			return e.finish(st, api.ExecutionFailed, nil)
		}

		next := cond.TargetTaskFailure
		if result.Succeeded() {
			next = cond.TargetTaskSuccess
		}
		st = st.SetCurrentTask(next)
		e.execs.Put(st)
	}
}

// invokeHandler calls a task handler with a snapshot of the execution
// context, timing the call. A raised error becomes a failed result; a
// panic is captured the same way rather than unwinding the run
func invokeHandler(
	ctx context.Context, h Handler, snapshot api.Context,
) (res *api.TaskResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = &api.TaskResult{
				Status:        api.TaskFailure,
				Error:         fmt.Sprintf("task panic: %v", r),
				ExecutionTime: time.Since(start).Seconds(),
			}
		}
	}()

	data, err := h.Execute(ctx, snapshot)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		return &api.TaskResult{
			Status:        api.TaskFailure,
			Error:         err.Error(),
			ExecutionTime: elapsed,
		}
	}
	return &api.TaskResult{
		Status:        api.TaskSuccess,
		Data:          data,
		ExecutionTime: elapsed,
	}
}

func (e *Engine) publishTaskResult(
	st *api.ExecutionState, name api.TaskName, result *api.TaskResult,
) {
	if result.Succeeded() {
		slog.Info("Task completed",
			log.FlowID(st.FlowID),
			log.ExecutionID(st.ExecutionID),
			log.TaskName(name),
			slog.Float64("duration", result.ExecutionTime))

		e.hub.Publish(&api.Event{
			Type:        api.EventTypeTaskCompleted,
			FlowID:      st.FlowID,
			ExecutionID: st.ExecutionID,
			Task:        name,
			Duration:    result.ExecutionTime,
		})
		return
	}

	slog.Warn("Task failed",
		log.FlowID(st.FlowID),
		log.ExecutionID(st.ExecutionID),
		log.TaskName(name),
		log.ErrorString(result.Error))

	e.hub.Publish(&api.Event{
		Type:        api.EventTypeTaskFailed,
		FlowID:      st.FlowID,
		ExecutionID: st.ExecutionID,
		Task:        name,
		Duration:    result.ExecutionTime,
		Error:       result.Error,
	})
}

// finish moves an execution to a terminal status, recording a fault
// message in the context when one terminated the run
func (e *Engine) finish(
	st *api.ExecutionState, status api.ExecutionStatus, fault error,
) *api.ExecutionState {
	if !executionTransitions.CanTransition(st.Status, status) {
		slog.Error("Invalid execution status transition",
			log.ExecutionID(st.ExecutionID),
			log.Status(st.Status),
			slog.String("target", string(status)))
		return st
	}

	if fault != nil {
		st = st.SetContext(st.Context.Set(errorContextKey, fault.Error()))
		slog.Error("Execution fault",
			log.FlowID(st.FlowID),
			log.ExecutionID(st.ExecutionID),
			log.Error(fault))
	}

	st = st.SetStatus(status).
		ClearCurrentTask().
		SetEndTime(time.Now().UTC())
	e.execs.Put(st)

	slog.Info("Execution finished",
		log.FlowID(st.FlowID),
		log.ExecutionID(st.ExecutionID),
		log.Status(st.Status))

	e.hub.Publish(terminalEvent(st, fault))
	return st
}

func terminalEvent(st *api.ExecutionState, fault error) *api.Event {
	ev := &api.Event{
		FlowID:      st.FlowID,
		ExecutionID: st.ExecutionID,
		Status:      st.Status,
	}
	switch st.Status {
	case api.ExecutionCompleted:
		ev.Type = api.EventTypeExecutionCompleted
	case api.ExecutionFailed:
		ev.Type = api.EventTypeExecutionFailed
	default:
		ev.Type = api.EventTypeExecutionError
	}
	if fault != nil {
		ev.Error = fault.Error()
	}
	return ev
}
