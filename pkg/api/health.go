package api

import "time"

type (
	// HealthStatus classifies the recent outcome history of a task
	HealthStatus string

	// TaskHealth summarizes the observed outcomes of a single task across
	// all executions since the server started
	TaskHealth struct {
		Task        TaskName     `json:"task"`
		Status      HealthStatus `json:"status"`
		Successes   int          `json:"successes"`
		Failures    int          `json:"failures"`
		Consecutive int          `json:"consecutive_failures"`
		LastSuccess *time.Time   `json:"last_success,omitempty"`
		LastFailure *time.Time   `json:"last_failure,omitempty"`
		LastError   string       `json:"last_error,omitempty"`
	}

	// TaskHealthListResponse contains health entries for observed tasks
	TaskHealthListResponse struct {
		Tasks []*TaskHealth `json:"tasks"`
		Count int           `json:"count"`
	}
)

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
)
