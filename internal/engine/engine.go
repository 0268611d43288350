package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flumeworks/flume/internal/config"
	"github.com/flumeworks/flume/pkg/api"
	"github.com/flumeworks/flume/pkg/log"
)

// Engine is the core flow execution engine. It owns the flow and execution
// stores, consults an injected task registry, and publishes events to its
// hub for the server's WebSocket clients and metrics
type Engine struct {
	flows    *FlowStore
	execs    *ExecutionStore
	registry *Registry
	scripts  *ScriptRegistry
	hub      *Hub
	config   *config.Config
}

// New creates an engine with the supplied configuration and task registry
func New(cfg *config.Config, reg *Registry) *Engine {
	return &Engine{
		flows:    NewFlowStore(),
		execs:    NewExecutionStore(),
		registry: reg,
		scripts:  NewScriptRegistry(),
		hub:      NewHub(),
		config:   cfg,
	}
}

// Registry returns the engine's task registry
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Scripts returns the engine's script registry
func (e *Engine) Scripts() *ScriptRegistry {
	return e.scripts
}

// Subscribe returns a consumer receiving engine events published after the
// call. The caller owns the consumer and must Close it
func (e *Engine) Subscribe() EventConsumer {
	return e.hub.NewConsumer()
}

// Close shuts down the engine's event hub
func (e *Engine) Close() {
	e.hub.Close()
}

// RegisterFlow validates a flow definition and stores it. Validation
// reports every structural violation at once; a duplicate flow id is
// rejected, since registered flows are immutable
func (e *Engine) RegisterFlow(flow *api.Flow) error {
	if err := ValidateFlow(flow); err != nil {
		return err
	}
	if err := e.flows.Insert(flow); err != nil {
		return err
	}

	slog.Info("Flow registered",
		log.FlowID(flow.ID),
		slog.Int("tasks", len(flow.Tasks)),
		slog.Int("conditions", len(flow.Conditions)))

	e.hub.Publish(&api.Event{
		Type:   api.EventTypeFlowRegistered,
		FlowID: flow.ID,
	})
	return nil
}

// Flow returns the flow registered under the given id
func (e *Engine) Flow(id api.FlowID) (*api.Flow, error) {
	flow, ok := e.flows.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, id)
	}
	return flow, nil
}

// Flows returns all registered flows in registration order
func (e *Engine) Flows() []*api.Flow {
	return e.flows.List()
}

// Execute runs a registered flow to completion with the given initial
// context, on the calling goroutine. Engine faults during the run are
// captured into the returned state as ERROR, not returned as errors; only
// an invalid context or unknown flow id fails the call itself
func (e *Engine) Execute(
	ctx context.Context, flowID api.FlowID, initial api.Context,
) (*api.ExecutionState, error) {
	if err := ValidateContext(initial, e.config.MaxContextBytes); err != nil {
		return nil, err
	}

	flow, ok := e.flows.Get(flowID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
	}

	st := api.NewExecutionState(flow, initial)
	e.execs.Put(st)

	slog.Info("Execution started",
		log.FlowID(flow.ID),
		log.ExecutionID(st.ExecutionID))

	e.hub.Publish(&api.Event{
		Type:        api.EventTypeExecutionStarted,
		FlowID:      flow.ID,
		ExecutionID: st.ExecutionID,
	})

	return e.run(ctx, flow, st), nil
}

// Execution returns the latest snapshot for the given execution id
func (e *Engine) Execution(id api.ExecutionID) (*api.ExecutionState, error) {
	st, ok := e.execs.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}
	return st, nil
}

// Executions returns the latest snapshot of every execution
func (e *Engine) Executions() []*api.ExecutionState {
	return e.execs.List()
}
