package engine

import (
	"fmt"
	"sync"

	"github.com/flumeworks/flume/pkg/api"
)

type (
	// FlowStore holds registered flow definitions. Flows are immutable
	// once registered; a duplicate id is rejected rather than replaced
	FlowStore struct {
		mu    sync.RWMutex
		flows map[api.FlowID]*api.Flow
		order []api.FlowID
	}

	// ExecutionStore holds execution states keyed by execution id. Updates
	// replace the stored pointer, so readers always observe a consistent
	// snapshot without locking the state itself
	ExecutionStore struct {
		mu     sync.RWMutex
		states map[api.ExecutionID]*api.ExecutionState
		order  []api.ExecutionID
	}
)

// NewFlowStore creates an empty flow store
func NewFlowStore() *FlowStore {
	return &FlowStore{
		flows: map[api.FlowID]*api.Flow{},
	}
}

// Insert adds a flow definition, rejecting a duplicate id
func (s *FlowStore) Insert(flow *api.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flows[flow.ID]; ok {
		return fmt.Errorf("%w: %s", ErrFlowExists, flow.ID)
	}
	s.flows[flow.ID] = flow
	s.order = append(s.order, flow.ID)
	return nil
}

// Get returns the flow registered under the given id
func (s *FlowStore) Get(id api.FlowID) (*api.Flow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flow, ok := s.flows[id]
	return flow, ok
}

// List returns all registered flows in registration order
func (s *FlowStore) List() []*api.Flow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*api.Flow, len(s.order))
	for i, id := range s.order {
		res[i] = s.flows[id]
	}
	return res
}

// Len returns the number of registered flows
func (s *FlowStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// NewExecutionStore creates an empty execution store
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{
		states: map[api.ExecutionID]*api.ExecutionState{},
	}
}

// Put stores an execution state, replacing any previous snapshot for the
// same execution id
func (s *ExecutionStore) Put(state *api.ExecutionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.states[state.ExecutionID]; !ok {
		s.order = append(s.order, state.ExecutionID)
	}
	s.states[state.ExecutionID] = state
}

// Get returns the latest snapshot for the given execution id
func (s *ExecutionStore) Get(id api.ExecutionID) (*api.ExecutionState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[id]
	return state, ok
}

// List returns the latest snapshot of every execution in creation order
func (s *ExecutionStore) List() []*api.ExecutionState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*api.ExecutionState, len(s.order))
	for i, id := range s.order {
		res[i] = s.states[id]
	}
	return res
}

// Len returns the number of stored executions
func (s *ExecutionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
