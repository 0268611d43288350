package api

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
)

type (
	// TaskStatus is the outcome of a single task invocation
	TaskStatus string

	// TaskResult records the outcome of one task invocation within an
	// execution. Data is merged into the context only on success
	TaskResult struct {
		Status        TaskStatus `json:"status"`
		Data          any        `json:"data"`
		Error         string     `json:"error,omitempty"`
		ExecutionTime float64    `json:"execution_time"`
	}

	// TaskResults maps task names to their results, preserving the order
	// in which tasks were visited
	TaskResults struct {
		names   []TaskName
		results map[TaskName]*TaskResult
	}
)

const (
	TaskSuccess TaskStatus = "success"
	TaskFailure TaskStatus = "failure"
)

// Succeeded returns true if the result has success status
func (r *TaskResult) Succeeded() bool {
	return r.Status == TaskSuccess
}

// Set returns a new TaskResults with the named result recorded. A task
// already present keeps its position
func (r TaskResults) Set(name TaskName, result *TaskResult) TaskResults {
	res := TaskResults{
		names:   r.names,
		results: maps.Clone(r.results),
	}
	if res.results == nil {
		res.results = map[TaskName]*TaskResult{}
	}
	if _, ok := res.results[name]; !ok {
		res.names = append(slices.Clone(r.names), name)
	}
	res.results[name] = result
	return res
}

// Get retrieves the result recorded for a task
func (r TaskResults) Get(name TaskName) (*TaskResult, bool) {
	res, ok := r.results[name]
	return res, ok
}

// Names returns the task names in visitation order
func (r TaskResults) Names() []TaskName {
	return slices.Clone(r.names)
}

// Len returns the number of recorded results
func (r TaskResults) Len() int {
	return len(r.names)
}

// MarshalJSON serializes the results as a JSON object with task names in
// visitation order
func (r TaskResults) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.results[name])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON deserializes a JSON object of task results, preserving its
// key order
func (r *TaskResults) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*r = TaskResults{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return ErrNotJSONObject
	}

	var res TaskResults
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name := TaskName(keyTok.(string))

		var result TaskResult
		if err := dec.Decode(&result); err != nil {
			return err
		}
		res = res.Set(name, &result)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = res
	return nil
}
