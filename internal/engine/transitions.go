package engine

import (
	"github.com/flumeworks/flume/pkg/api"
	"github.com/flumeworks/flume/pkg/util"
)

// executionTransitions validates execution status changes. RUNNING is the
// only non-terminal status; every terminal status admits no further change
var executionTransitions = util.StateTransitions[api.ExecutionStatus]{
	api.ExecutionRunning: util.SetOf(
		api.ExecutionCompleted,
		api.ExecutionFailed,
		api.ExecutionError,
	),
	api.ExecutionCompleted: {},
	api.ExecutionFailed:    {},
	api.ExecutionError:     {},
}
