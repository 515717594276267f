// Package registry maps oracle adapter names to constructors so callers (the
// CLI in particular) can select a transport by name.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/arborlabs/arbor/pkg/ports"
)

// OracleFactory constructs a ready-to-use oracle adapter. Factories that
// spawn external resources (subprocesses, connections) should tie their
// lifetime to ctx.
type OracleFactory func(ctx context.Context) (ports.Oracle, error)

// Registry manages the available oracle adapters.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]OracleFactory
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]OracleFactory),
	}
}

// Register adds an oracle factory under the given name.
// If a factory with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn OracleFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = fn
}

// Open looks up a factory by name and constructs the oracle.
// Returns an error if the name is not registered.
func (r *Registry) Open(ctx context.Context, name string) (ports.Oracle, error) {
	r.mu.RLock()
	fn, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown oracle %q (available: %v)", name, r.Names())
	}

	return fn(ctx)
}

// Names returns the registered adapter names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
