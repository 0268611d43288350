package engine

import (
	"encoding/json"
	"fmt"

	"github.com/flumeworks/flume/pkg/api"
	"github.com/flumeworks/flume/pkg/util"
	"github.com/flumeworks/flume/pkg/util/call"
)

// ValidateFlow runs the full validation pipeline over a flow definition.
// Structural checks run first and report every violation; graph logic
// checks run only on a structurally sound flow
func ValidateFlow(flow *api.Flow) error {
	return call.Perform(
		call.WithArg(ValidateStructure, flow),
		call.WithArg(ValidateLogic, flow),
	)
}

// ValidateStructure checks a flow definition for structural violations,
// collecting the full set rather than stopping at the first
func ValidateStructure(flow *api.Flow) error {
	if flow == nil {
		return &ValidationError{
			Violations: []string{"missing flow definition"},
		}
	}

	var violations []string
	report := func(format string, args ...any) {
		violations = append(violations, fmt.Sprintf(format, args...))
	}

	if flow.ID == "" {
		report("field 'id' must be a non-empty string")
	}
	if flow.Name == "" {
		report("field 'name' must be a non-empty string")
	}
	if flow.StartTask == "" {
		report("field 'start_task' must be a non-empty string")
	}
	if len(flow.Tasks) == 0 {
		report("field 'tasks' must be a non-empty list")
	}

	names := util.Set[api.TaskName]{}
	for i, task := range flow.Tasks {
		if task == nil {
			report("task %d is missing", i)
			continue
		}
		if task.Name == "" {
			report("task %d 'name' must be a non-empty string", i)
			continue
		}
		if names.Contains(task.Name) {
			report("duplicate task name: '%s'", task.Name)
			continue
		}
		names.Add(task.Name)
	}

	if flow.StartTask != "" && !names.Contains(flow.StartTask) {
		report("start_task '%s' not found in tasks", flow.StartTask)
	}

	sources := util.Set[api.TaskName]{}
	for i, c := range flow.Conditions {
		if c == nil {
			report("condition %d is missing", i)
			continue
		}
		if c.Name == "" {
			report("condition %d 'name' must be a non-empty string", i)
		}
		switch {
		case c.SourceTask == "":
			report(
				"condition %d 'source_task' must be a non-empty string", i,
			)
		case !names.Contains(c.SourceTask):
			report(
				"condition %d uses unknown source_task: '%s'",
				i, c.SourceTask,
			)
		case sources.Contains(c.SourceTask):
			report(
				"multiple conditions declared for source_task: '%s'",
				c.SourceTask,
			)
		default:
			sources.Add(c.SourceTask)
		}
		if c.Outcome != "" &&
			c.Outcome != api.TaskSuccess && c.Outcome != api.TaskFailure {
			report(
				"condition %d has invalid outcome: '%s' "+
					"(expected 'success' or 'failure')",
				i, c.Outcome,
			)
		}
		checkConditionTarget(
			report, names, i, "target_task_success", c.TargetTaskSuccess,
		)
		checkConditionTarget(
			report, names, i, "target_task_failure", c.TargetTaskFailure,
		)
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

func checkConditionTarget(
	report func(string, ...any), names util.Set[api.TaskName],
	idx int, field string, target api.TaskName,
) {
	if target == "" {
		report("condition %d field '%s' must be a non-empty string",
			idx, field,
		)
		return
	}
	if target != api.End && !names.Contains(target) {
		report("condition %d uses unknown %s: '%s'", idx, field, target)
	}
}

// ValidateContext checks that an execution context serializes to JSON
// within the configured size limit. Key type safety is enforced by the
// Context type itself
func ValidateContext(ec api.Context, maxBytes int) error {
	b, err := json.Marshal(ec)
	if err != nil {
		return fmt.Errorf("context not serializable: %w", err)
	}
	if len(b) > maxBytes {
		return fmt.Errorf(
			"%w: %d bytes (limit %d)", ErrContextTooLarge, len(b), maxBytes,
		)
	}
	return nil
}
