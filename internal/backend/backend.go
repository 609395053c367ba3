package backend

import (
	"context"
	"time"

	"github.com/seantiz/benchkit/internal/model"
)

// Instance is a materialized, runnable benchmark. The orchestrator treats it
// as opaque and only hands it to an Executor.
type Instance interface {
	// Kind names the backend able to run the instance.
	Kind() string
}

// Executor runs one instance under a wall-clock timeout.
//
// Implementations must return model.Timeout (not an error) when the deadline
// is exceeded and model.Success with a non-negative duration on normal
// completion. Any other problem may be reported either as model.Failure or as
// a returned error; the orchestrator converts errors into failures.
type Executor interface {
	Execute(ctx context.Context, inst Instance, timeout time.Duration) (model.Result, error)
}

// ExecutorFunc adapts an ordinary function to the Executor interface.
type ExecutorFunc func(ctx context.Context, inst Instance, timeout time.Duration) (model.Result, error)

// Execute calls f(ctx, inst, timeout).
func (f ExecutorFunc) Execute(ctx context.Context, inst Instance, timeout time.Duration) (model.Result, error) {
	return f(ctx, inst, timeout)
}

// Backend is an Executor that can describe itself to the registry.
type Backend interface {
	Executor

	// Capabilities reports what the backend runs.
	Capabilities() Capabilities
}

// Capabilities describes a backend.
type Capabilities struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
