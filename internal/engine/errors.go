package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flumeworks/flume/pkg/api"
)

type (
	// ValidationError collects every structural violation found in a flow
	// definition. Validation reports the full set in one pass rather than
	// stopping at the first problem
	ValidationError struct {
		Violations []string
	}

	// CycleError reports a cycle in a flow's condition graph, including
	// the tasks along the cycle path
	CycleError struct {
		Path []api.TaskName
	}

	// UnreachableError names the tasks that no condition path from the
	// start task can reach
	UnreachableError struct {
		Tasks []api.TaskName
	}
)

var (
	ErrFlowNotFound        = errors.New("flow not found")
	ErrFlowExists          = errors.New("flow exists")
	ErrExecutionNotFound   = errors.New("execution not found")
	ErrTaskNotFound        = errors.New("task not found in flow")
	ErrTaskFunctionMissing = errors.New("no function registered for task")
	ErrMaxStepsExceeded    = errors.New("maximum execution steps exceeded")
	ErrInvalidTransition   = errors.New("invalid execution status transition")
	ErrContextTooLarge     = errors.New("context exceeds maximum size")
	ErrInvalidTaskName     = errors.New("invalid task name")
	ErrNilHandler          = errors.New("nil task handler")
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf(
		"invalid flow: %s", strings.Join(e.Violations, "; "),
	)
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Path))
	for i, n := range e.Path {
		names[i] = string(n)
	}
	return fmt.Sprintf(
		"cycle detected in flow: %s", strings.Join(names, " -> "),
	)
}

func (e *UnreachableError) Error() string {
	names := make([]string, len(e.Tasks))
	for i, n := range e.Tasks {
		names[i] = string(n)
	}
	return fmt.Sprintf(
		"unreachable tasks: %s", strings.Join(names, ", "),
	)
}

// IsValidationError reports whether an error represents a rejected flow or
// context, as opposed to an engine fault
func IsValidationError(err error) bool {
	var ve *ValidationError
	var ce *CycleError
	var ue *UnreachableError
	return errors.As(err, &ve) || errors.As(err, &ce) ||
		errors.As(err, &ue) || errors.Is(err, ErrContextTooLarge) ||
		errors.Is(err, api.ErrNotJSONObject)
}
