package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/seantiz/benchkit/internal/model"
)

// Compile-time interface satisfaction check.
var _ Executor = (*Registry)(nil)

// BackendInfo pairs an instance kind with the capabilities of its backend.
type BackendInfo struct {
	Kind         string       `json:"kind"`
	Capabilities Capabilities `json:"capabilities"`
}

// Registry holds registered backends and dispatches each instance to the
// backend registered for its kind. A Registry is itself an Executor.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
	}
}

// Register adds a backend to the registry for the given instance kind,
// replacing any backend already registered for it.
func (r *Registry) Register(kind string, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[kind] = b
}

// Resolve returns the backend registered for kind.
func (r *Registry) Resolve(kind string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[kind]
	if !ok {
		return nil, fmt.Errorf("no backend registered for instance kind %q", kind)
	}
	return b, nil
}

// Execute resolves the backend for inst and runs inst on it.
func (r *Registry) Execute(ctx context.Context, inst Instance, timeout time.Duration) (model.Result, error) {
	if inst == nil {
		return nil, fmt.Errorf("execute: nil instance")
	}
	b, err := r.Resolve(inst.Kind())
	if err != nil {
		return nil, err
	}
	return b.Execute(ctx, inst, timeout)
}

// List returns information about all registered backends, sorted by kind.
func (r *Registry) List() []BackendInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]BackendInfo, 0, len(r.backends))
	for kind, b := range r.backends {
		infos = append(infos, BackendInfo{
			Kind:         kind,
			Capabilities: b.Capabilities(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Kind < infos[j].Kind
	})
	return infos
}
