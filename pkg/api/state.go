package api

import "time"

type (
	// ExecutionStatus represents the current state of a flow execution
	ExecutionStatus string

	// ExecutionState contains the complete state of a flow execution. State
	// updates replace the stored value rather than mutating it, so a
	// pointer handed to a reader is a consistent snapshot
	ExecutionState struct {
		ExecutionID ExecutionID     `json:"execution_id"`
		FlowID      FlowID          `json:"flow_id"`
		Status      ExecutionStatus `json:"status"`
		CurrentTask *TaskName       `json:"current_task"`
		TaskResults TaskResults     `json:"task_results"`
		Context     Context         `json:"context"`
		StartTime   time.Time       `json:"start_time"`
		EndTime     *time.Time      `json:"end_time"`
	}
)

const (
	ExecutionRunning   ExecutionStatus = "RUNNING"
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	ExecutionFailed    ExecutionStatus = "FAILED"
	ExecutionError     ExecutionStatus = "ERROR"
)

// NewExecutionState creates a running execution positioned at the flow's
// start task, with its own copy of the initial context
func NewExecutionState(flow *Flow, initial Context) *ExecutionState {
	start := flow.StartTask
	return &ExecutionState{
		ExecutionID: NewExecutionID(),
		FlowID:      flow.ID,
		Status:      ExecutionRunning,
		CurrentTask: &start,
		Context:     initial.Clone(),
		StartTime:   time.Now().UTC(),
	}
}

// IsTerminal returns true once the execution has reached a final status
func (s ExecutionStatus) IsTerminal() bool {
	return s != ExecutionRunning
}

// SetStatus returns a new ExecutionState with the updated status
func (st *ExecutionState) SetStatus(s ExecutionStatus) *ExecutionState {
	res := *st
	res.Status = s
	return &res
}

// SetCurrentTask returns a new ExecutionState positioned at the given task
func (st *ExecutionState) SetCurrentTask(name TaskName) *ExecutionState {
	res := *st
	res.CurrentTask = &name
	return &res
}

// ClearCurrentTask returns a new ExecutionState with no current task
func (st *ExecutionState) ClearCurrentTask() *ExecutionState {
	res := *st
	res.CurrentTask = nil
	return &res
}

// SetTaskResult returns a new ExecutionState with the named result recorded
func (st *ExecutionState) SetTaskResult(
	name TaskName, result *TaskResult,
) *ExecutionState {
	res := *st
	res.TaskResults = st.TaskResults.Set(name, result)
	return &res
}

// SetContext returns a new ExecutionState with the replaced context
func (st *ExecutionState) SetContext(c Context) *ExecutionState {
	res := *st
	res.Context = c
	return &res
}

// SetEndTime returns a new ExecutionState with the end timestamp set
func (st *ExecutionState) SetEndTime(t time.Time) *ExecutionState {
	res := *st
	res.EndTime = &t
	return &res
}
