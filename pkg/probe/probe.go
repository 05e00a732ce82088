// Package probe provides external tools that execution stars invoke in
// place of a model call. Probes take and return loose key-value maps;
// implementations decode their arguments into typed structs.
package probe

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rishimeka/astro/pkg/domain"
)

// Probe is an external tool an execution star can call.
type Probe interface {
	// Name returns the identifier stars bind to.
	Name() string

	// Call executes the probe with the given input.
	Call(ctx context.Context, input map[string]any) (map[string]any, error)
}

// Registry manages the available probes.
type Registry struct {
	mu     sync.RWMutex
	probes map[string]Probe
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		probes: make(map[string]Probe),
	}
}

// Register adds a probe to the registry.
// If a probe with the same name exists, it is overwritten.
func (r *Registry) Register(p Probe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probes[p.Name()] = p
}

// Resolve looks up a probe by name.
func (r *Registry) Resolve(name string) (Probe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.probes[name]
	return p, ok
}

// Execute looks up a probe by name and calls it.
// Returns domain.ErrProbeNotFound if no probe is registered under name.
func (r *Registry) Execute(ctx context.Context, name string, input map[string]any) (map[string]any, error) {
	p, ok := r.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProbeNotFound, name)
	}
	return p.Call(ctx, input)
}

// Names returns the registered probe names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.probes))
	for name := range r.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Func adapts a plain function into a Probe.
type Func struct {
	name string
	fn   func(ctx context.Context, input map[string]any) (map[string]any, error)
}

// NewFunc wraps fn as a probe with the given name.
func NewFunc(name string, fn func(ctx context.Context, input map[string]any) (map[string]any, error)) *Func {
	return &Func{name: name, fn: fn}
}

// Name returns the probe identifier.
func (f *Func) Name() string { return f.name }

// Call executes the wrapped function.
func (f *Func) Call(ctx context.Context, input map[string]any) (map[string]any, error) {
	return f.fn(ctx, input)
}
