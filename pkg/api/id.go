package api

import "github.com/google/uuid"

type (
	// FlowID is a unique identifier for a flow definition
	FlowID string

	// ExecutionID is a unique identifier for a single flow execution
	ExecutionID string

	// TaskName identifies a task within a flow definition
	TaskName string
)

// End is the sentinel task name that terminates an execution. It never
// refers to a real task; routing a condition to End stops the run
const End TaskName = "end"

// NewExecutionID generates a unique identifier for a new execution
func NewExecutionID() ExecutionID {
	return ExecutionID(uuid.NewString())
}

// IsEnd returns true if the task name is the End sentinel or empty
func (n TaskName) IsEnd() bool {
	return n == End || n == ""
}
