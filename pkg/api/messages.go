package api

type (
	// FlowDocument wraps a flow definition as it appears on the wire
	FlowDocument struct {
		Flow *Flow `json:"flow"`
	}

	// CreateFlowRequest contains a flow definition to register
	CreateFlowRequest struct {
		FlowData FlowDocument `json:"flow_data"`
	}

	// ExecuteRequest contains parameters for executing a registered flow
	ExecuteRequest struct {
		FlowID  FlowID  `json:"flow_id"`
		Context Context `json:"context"`
	}

	// FlowRegisteredResponse is returned when a flow registration succeeds
	FlowRegisteredResponse struct {
		Message string `json:"message"`
		FlowID  FlowID `json:"flow_id"`
	}

	// FlowsListResponse contains the registered flow definitions
	FlowsListResponse struct {
		Flows []*Flow `json:"flows"`
		Count int     `json:"count"`
	}

	// ExecutionsListResponse contains a list of execution states
	ExecutionsListResponse struct {
		Executions []*ExecutionState `json:"executions"`
		Count      int               `json:"count"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}

	// TaskRequest is posted to a remote task worker. It carries the task
	// name so one endpoint can serve several tasks
	TaskRequest struct {
		Task    TaskName `json:"task"`
		Context Context  `json:"context"`
	}

	// TaskResponse is a remote task worker's reply. Data is merged into the
	// execution context on success
	TaskResponse struct {
		Data    any    `json:"data,omitempty"`
		Error   string `json:"error,omitempty"`
		Success bool   `json:"success"`
	}
)
