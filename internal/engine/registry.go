package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/flumeworks/flume/pkg/api"
)

type (
	// Handler implements the work behind a single named task. It receives
	// a snapshot of the execution context and produces the task's result
	// data, or an error to signal failure
	Handler interface {
		Execute(ctx context.Context, ec api.Context) (any, error)
	}

	// HandlerFunc adapts a plain function to the Handler interface
	HandlerFunc func(ctx context.Context, ec api.Context) (any, error)

	// Registry maps task names to their handlers. The engine consults it
	// at execution time; a missing registration is a runtime condition,
	// not a registration-time failure
	Registry struct {
		mu       sync.RWMutex
		handlers map[api.TaskName]Handler
	}
)

// descriptionKeywords maps well-known keywords in task descriptions to
// handler names, used to auto-bind demo handlers to freshly created flows.
// Earlier entries win when a description mentions several keywords
var descriptionKeywords = []struct {
	keyword string
	name    api.TaskName
}{
	{"fetch", "fetch_data"},
	{"process", "process_data"},
	{"store", "store_data"},
}

// Execute calls the wrapped function
func (f HandlerFunc) Execute(ctx context.Context, ec api.Context) (any, error) {
	return f(ctx, ec)
}

// NewRegistry creates an empty task registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: map[api.TaskName]Handler{},
	}
}

// Register binds a handler to a task name, replacing any previous binding
func (r *Registry) Register(name api.TaskName, h Handler) error {
	if name.IsEnd() {
		return fmt.Errorf("%w: %q", ErrInvalidTaskName, name)
	}
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNilHandler, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
	return nil
}

// RegisterAll binds a set of handlers atomically. Every entry is validated
// before any is registered, so a bad entry leaves the registry untouched
func (r *Registry) RegisterAll(handlers map[api.TaskName]Handler) error {
	for name, h := range handlers {
		if name.IsEnd() {
			return fmt.Errorf("%w: %q", ErrInvalidTaskName, name)
		}
		if h == nil {
			return fmt.Errorf("%w: %s", ErrNilHandler, name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, h := range handlers {
		r.handlers[name] = h
	}
	return nil
}

// Lookup returns the handler bound to a task name
func (r *Registry) Lookup(name api.TaskName) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered task names in sorted order
func (r *Registry) Names() []api.TaskName {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]api.TaskName, 0, len(r.handlers))
	for name := range r.handlers {
		res = append(res, name)
	}
	slices.Sort(res)
	return res
}

// Resolve finds the handler for a task: an exact name binding wins, then a
// keyword match against the task's description
func (r *Registry) Resolve(task *api.Task) (Handler, bool) {
	if h, ok := r.Lookup(task.Name); ok {
		return h, true
	}
	return r.MatchByDescription(task.Description)
}

// MatchByDescription finds a handler by scanning a task description for
// well-known keywords
func (r *Registry) MatchByDescription(desc string) (Handler, bool) {
	lower := strings.ToLower(desc)
	for _, entry := range descriptionKeywords {
		if strings.Contains(lower, entry.keyword) {
			if h, ok := r.Lookup(entry.name); ok {
				return h, true
			}
		}
	}
	return nil, false
}
