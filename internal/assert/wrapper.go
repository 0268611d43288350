package assert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flumeworks/flume/internal/config"
	"github.com/flumeworks/flume/internal/engine"
	"github.com/flumeworks/flume/pkg/api"
)

// Wrapper wraps testify assertions with Flume-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
	Require *assert.Assertions
}

// DefaultRetryInterval is the default polling interval for Eventually checks
const DefaultRetryInterval = 100 * time.Millisecond

// New creates a new test assertion wrapper with both assert and require from
// testify plus Flume-specific helpers
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
		Require:    assert.New(t),
	}
}

// ExecutionStatus asserts the status of an execution
func (w *Wrapper) ExecutionStatus(
	st *api.ExecutionState, expected api.ExecutionStatus,
) {
	w.Helper()
	w.Equal(expected, st.Status)
}

// ExecutionTerminal asserts that an execution has finished: a terminal
// status, no current task, and an end time
func (w *Wrapper) ExecutionTerminal(st *api.ExecutionState) {
	w.Helper()
	w.True(st.Status.IsTerminal(), "execution should be terminal, is %s",
		st.Status)
	w.Nil(st.CurrentTask, "terminal execution should have no current task")
	w.NotNil(st.EndTime, "terminal execution should have an end time")
}

// TaskSucceeded asserts that a task recorded a success result and that its
// data was merged into the context
func (w *Wrapper) TaskSucceeded(st *api.ExecutionState, name api.TaskName) {
	w.Helper()
	result, ok := st.TaskResults.Get(name)
	w.True(ok, "execution should have a result for task: %s", name)
	if !ok {
		return
	}
	w.Equal(api.TaskSuccess, result.Status)
	w.Empty(result.Error)
	w.True(st.Context.Has(api.ResultKey(name)),
		"context should have merged result for task: %s", name)
}

// TaskFailed asserts that a task recorded a failure result whose error
// message contains the provided fragment
func (w *Wrapper) TaskFailed(
	st *api.ExecutionState, name api.TaskName, contains string,
) {
	w.Helper()
	result, ok := st.TaskResults.Get(name)
	w.True(ok, "execution should have a result for task: %s", name)
	if !ok {
		return
	}
	w.Equal(api.TaskFailure, result.Status)
	w.NotEmpty(result.Error)
	if contains != "" {
		w.Contains(result.Error, contains)
	}
}

// ContextHasKeys asserts that the execution context has specific keys
func (w *Wrapper) ContextHasKeys(st *api.ExecutionState, keys ...string) {
	w.Helper()
	for _, key := range keys {
		w.True(st.Context.Has(key), "context should have key: %s", key)
	}
}

// ContextEquals asserts that a context key has the expected value
func (w *Wrapper) ContextEquals(
	st *api.ExecutionState, key string, expected any,
) {
	w.Helper()
	val, ok := st.Context.Get(key)
	w.True(ok, "context should have key: %s", key)
	w.Equal(expected, val)
}

// FlowInvalid asserts that an error is a flow validation failure whose
// message contains each of the provided fragments
func (w *Wrapper) FlowInvalid(err error, contains ...string) {
	w.Helper()
	w.Error(err)
	if err == nil {
		return
	}
	w.True(engine.IsValidationError(err),
		"expected a validation error, got: %v", err)
	for _, c := range contains {
		w.Contains(err.Error(), c)
	}
}

// ConfigValid asserts that a configuration is valid
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
	w.True(cfg.APIPort > 0 && cfg.APIPort <= 65535)
	w.True(cfg.MaxContextBytes > 0)
}

// ConfigInvalid asserts that a configuration is invalid
func (w *Wrapper) ConfigInvalid(cfg *config.Config, contains string) {
	w.Helper()
	err := cfg.Validate()
	w.Error(err)
	if contains != "" {
		w.Contains(err.Error(), contains)
	}
}

// Eventually runs a condition repeatedly until it passes or times out
func (w *Wrapper) Eventually(
	condition func() bool, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(DefaultRetryInterval)
	}
	w.Fail(msg, args...)
}

// EventuallyWithError runs a condition that returns an error until it succeeds
// or times out
func (w *Wrapper) EventuallyWithError(
	condition func() error, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		err := condition()
		if err == nil {
			return
		}
		lastErr = err
		time.Sleep(DefaultRetryInterval)
	}
	if lastErr != nil {
		w.Fail(msg+": last error: "+lastErr.Error(), args...)
		return
	}
	w.Fail(msg, args...)
}
