package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/flumeworks/flume/internal/engine"
	"github.com/flumeworks/flume/pkg/api"
	"github.com/flumeworks/flume/pkg/builder"
)

// The demo handlers implement the canonical fetch/process/store pipeline.
// They simulate I/O latency and pass their results downstream through the
// execution context

const (
	fetchDelay   = 200 * time.Millisecond
	processDelay = 300 * time.Millisecond
	storeDelay   = 100 * time.Millisecond
)

var (
	ErrNoFetchedData   = errors.New("no data to process")
	ErrNoProcessedData = errors.New("no processed data to store")
)

// Handlers returns the demo task handlers keyed by the task names the
// pipeline flow references
func Handlers() map[api.TaskName]engine.Handler {
	return map[api.TaskName]engine.Handler{
		"fetch_data":   engine.HandlerFunc(FetchData),
		"process_data": engine.HandlerFunc(ProcessData),
		"store_data":   engine.HandlerFunc(StoreData),
	}
}

// PipelineFlow returns the demo flow definition wired to the handlers
// above, so a fresh install has something to execute
func PipelineFlow() *api.Flow {
	return builder.NewFlow("demo_pipeline").
		WithName("Demo Pipeline").
		Chain("fetch_data", "process_data", "store_data").
		Build()
}

// FetchData produces a small set of user records
func FetchData(context.Context, api.Context) (any, error) {
	time.Sleep(fetchDelay)
	return map[string]any{
		"users": []any{
			map[string]any{"id": 1, "name": "John"},
			map[string]any{"id": 2, "name": "Jane"},
		},
	}, nil
}

// ProcessData counts the records fetched upstream. It fails when the
// context holds no fetch result
func ProcessData(_ context.Context, ec api.Context) (any, error) {
	raw, ok := ec.Get(api.ResultKey("fetch_data"))
	if !ok {
		return nil, ErrNoFetchedData
	}
	fetched, ok := raw.(map[string]any)
	if !ok {
		return nil, ErrNoFetchedData
	}

	time.Sleep(processDelay)
	count := 0
	if users, ok := fetched["users"].([]any); ok {
		count = len(users)
	}
	return map[string]any{
		"processed_users": count,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// StoreData persists the processed result under a fresh record id. It
// fails when the context holds no process result
func StoreData(_ context.Context, ec api.Context) (any, error) {
	if !ec.Has(api.ResultKey("process_data")) {
		return nil, ErrNoProcessedData
	}

	time.Sleep(storeDelay)
	return map[string]any{
		"stored":    true,
		"record_id": uuid.NewString(),
	}, nil
}
