// Package registry holds the flow-name-to-Flow mapping consulted by the
// executor's worker. It is populated before the executor starts and
// treated as read-only during execution, though it tolerates concurrent
// access since nothing in the core actually enforces that read-only-ness.
package registry

import (
	"errors"
	"sync"

	"github.com/flowrun/flowengine/pkg/flow"
)

// ErrUnknownFlow is returned by Get (and surfaces from Submit) when no flow
// is registered under the requested name.
var ErrUnknownFlow = errors.New("flowengine: unknown flow")

// Registry is a name -> Flow lookup table.
type Registry struct {
	mu    sync.RWMutex
	flows map[string]flow.Flow
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{flows: make(map[string]flow.Flow)}
}

// Register adds f under f.Name(), overwriting any prior registration for
// that name.
func (r *Registry) Register(f flow.Flow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows[f.Name()] = f
}

// Get looks up a flow by name, returning ErrUnknownFlow if absent.
func (r *Registry) Get(name string) (flow.Flow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.flows[name]
	if !ok {
		return nil, ErrUnknownFlow
	}
	return f, nil
}
