package engine

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/flumeworks/flume/pkg/api"
)

// ExecutionFilter narrows an execution listing. Zero-valued fields match
// everything; Path is a gjson expression evaluated against the execution's
// serialized context, optionally compared to Value
type ExecutionFilter struct {
	FlowID api.FlowID
	Status api.ExecutionStatus
	Path   string
	Value  string
}

// QueryExecutions returns the executions matching the filter, in creation
// order
func (e *Engine) QueryExecutions(
	filter ExecutionFilter,
) []*api.ExecutionState {
	var res []*api.ExecutionState
	for _, st := range e.execs.List() {
		if matchesFilter(st, filter) {
			res = append(res, st)
		}
	}
	return res
}

func matchesFilter(st *api.ExecutionState, filter ExecutionFilter) bool {
	if filter.FlowID != "" && st.FlowID != filter.FlowID {
		return false
	}
	if filter.Status != "" && st.Status != filter.Status {
		return false
	}
	if filter.Path != "" {
		return matchesPath(st, filter.Path, filter.Value)
	}
	return true
}

func matchesPath(st *api.ExecutionState, path, value string) bool {
	jsonBytes, err := json.Marshal(st.Context)
	if err != nil {
		return false
	}

	result := gjson.ParseBytes(jsonBytes).Get(path)
	if !result.Exists() {
		return false
	}
	if value == "" {
		return true
	}
	return result.String() == value
}
