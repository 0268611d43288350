package api

type (
	// Task is a named unit of work within a flow. The work itself is
	// resolved at execution time through the task registry
	Task struct {
		Name        TaskName `json:"name"`
		Description string   `json:"description,omitempty"`
	}

	// Condition routes execution after a task completes. The Outcome field
	// is descriptive metadata; routing always follows the actual task
	// result status to TargetTaskSuccess or TargetTaskFailure
	Condition struct {
		Name              string     `json:"name"`
		Description       string     `json:"description,omitempty"`
		SourceTask        TaskName   `json:"source_task"`
		Outcome           TaskStatus `json:"outcome,omitempty"`
		TargetTaskSuccess TaskName   `json:"target_task_success"`
		TargetTaskFailure TaskName   `json:"target_task_failure"`
	}

	// Flow is a validated, immutable definition of a task graph. Execution
	// starts at StartTask and follows conditions until a terminal state
	Flow struct {
		ID         FlowID       `json:"id"`
		Name       string       `json:"name"`
		StartTask  TaskName     `json:"start_task"`
		Tasks      []*Task      `json:"tasks"`
		Conditions []*Condition `json:"conditions"`
	}
)

// Task returns the named task, or false if the flow does not define it
func (f *Flow) Task(name TaskName) (*Task, bool) {
	for _, t := range f.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// TaskNames returns the task names in definition order
func (f *Flow) TaskNames() []TaskName {
	res := make([]TaskName, len(f.Tasks))
	for i, t := range f.Tasks {
		res[i] = t.Name
	}
	return res
}

// ConditionFor returns the condition whose source is the named task, or
// false if the task has no outgoing condition. Validation guarantees at
// most one condition per source task
func (f *Flow) ConditionFor(source TaskName) (*Condition, bool) {
	for _, c := range f.Conditions {
		if c.SourceTask == source {
			return c, true
		}
	}
	return nil, false
}

// Targets returns the condition's outgoing task names, excluding the End
// sentinel
func (c *Condition) Targets() []TaskName {
	var res []TaskName
	if !c.TargetTaskSuccess.IsEnd() {
		res = append(res, c.TargetTaskSuccess)
	}
	if !c.TargetTaskFailure.IsEnd() {
		res = append(res, c.TargetTaskFailure)
	}
	return res
}
