package api

import "time"

type (
	// EventType identifies the kind of engine event
	EventType string

	// Event is the envelope published to the engine's event topic and
	// delivered to WebSocket subscribers. Fields not relevant to an event
	// type are omitted
	Event struct {
		Type        EventType       `json:"type"`
		FlowID      FlowID          `json:"flow_id,omitempty"`
		ExecutionID ExecutionID     `json:"execution_id,omitempty"`
		Task        TaskName        `json:"task,omitempty"`
		Status      ExecutionStatus `json:"status,omitempty"`
		Duration    float64         `json:"duration,omitempty"`
		Error       string          `json:"error,omitempty"`
		Timestamp   time.Time       `json:"timestamp"`
	}
)

const (
	EventTypeFlowRegistered     EventType = "flow_registered"
	EventTypeExecutionStarted   EventType = "execution_started"
	EventTypeTaskStarted        EventType = "task_started"
	EventTypeTaskCompleted      EventType = "task_completed"
	EventTypeTaskFailed         EventType = "task_failed"
	EventTypeExecutionCompleted EventType = "execution_completed"
	EventTypeExecutionFailed    EventType = "execution_failed"
	EventTypeExecutionError     EventType = "execution_error"
)

// Terminal returns true for events that mark the end of an execution
func (t EventType) Terminal() bool {
	switch t {
	case EventTypeExecutionCompleted,
		EventTypeExecutionFailed,
		EventTypeExecutionError:
		return true
	}
	return false
}
