package engine

import (
	"errors"
	"slices"

	"github.com/flumeworks/flume/pkg/api"
	"github.com/flumeworks/flume/pkg/util"
)

// ValidateLogic checks a structurally sound flow for graph defects: a
// cycle anywhere along the condition graph, and tasks that no condition
// path from the start task can reach. Both checks run even when the first
// fails, so one registration call reports maximal diagnostics
func ValidateLogic(flow *api.Flow) error {
	adj := buildAdjacency(flow)

	var errs []error
	if path, found := findCycle(flow.StartTask, adj); found {
		errs = append(errs, &CycleError{Path: path})
	}
	if unreachable := findUnreachable(flow, adj); len(unreachable) > 0 {
		errs = append(errs, &UnreachableError{Tasks: unreachable})
	}
	return errors.Join(errs...)
}

// buildAdjacency maps each source task to its outgoing targets, in
// condition declaration order. End targets are not edges
func buildAdjacency(flow *api.Flow) map[api.TaskName][]api.TaskName {
	adj := map[api.TaskName][]api.TaskName{}
	for _, c := range flow.Conditions {
		adj[c.SourceTask] = append(adj[c.SourceTask], c.Targets()...)
	}
	return adj
}

// findCycle runs a depth-first search from the start task, tracking the
// path in progress. Revisiting a task already on the path is a cycle; the
// returned path runs from the repeated task back around to itself
func findCycle(
	start api.TaskName, adj map[api.TaskName][]api.TaskName,
) ([]api.TaskName, bool) {
	visited := util.Set[api.TaskName]{}
	onPath := util.Set[api.TaskName]{}
	var path []api.TaskName
	var cycle []api.TaskName

	var visit func(api.TaskName) bool
	visit = func(node api.TaskName) bool {
		if onPath.Contains(node) {
			at := slices.Index(path, node)
			cycle = append(slices.Clone(path[at:]), node)
			return true
		}
		if visited.Contains(node) {
			return false
		}

		visited.Add(node)
		onPath.Add(node)
		path = append(path, node)

		for _, next := range adj[node] {
			if visit(next) {
				return true
			}
		}

		onPath.Remove(node)
		path = path[:len(path)-1]
		return false
	}

	if visit(start) {
		return cycle, true
	}
	return nil, false
}

// findUnreachable sweeps the condition graph from the start task and
// returns the declared tasks left unvisited, in declaration order
func findUnreachable(
	flow *api.Flow, adj map[api.TaskName][]api.TaskName,
) []api.TaskName {
	reachable := util.Set[api.TaskName]{}
	stack := []api.TaskName{flow.StartTask}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reachable.Contains(current) {
			continue
		}
		reachable.Add(current)
		stack = append(stack, adj[current]...)
	}

	var res []api.TaskName
	for _, task := range flow.Tasks {
		if !reachable.Contains(task.Name) {
			res = append(res, task.Name)
		}
	}
	return res
}
