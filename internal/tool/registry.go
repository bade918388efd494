package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// HandlerFunc executes one tool call. The returned string is the
// result payload fed back to the model; a returned error marks the
// call as failed but is never propagated as an exception.
type HandlerFunc func(ctx context.Context, params map[string]string) (string, error)

// Definition registers a tool under a unique name. Required lists the
// parameter keys that must be present; names are matched exactly, with
// no aliasing, so that error messages can name the expected key.
type Definition struct {
	Name        string
	Description string
	Required    []string
	Handler     HandlerFunc
}

// Registry is a strict tool registry keyed by exact tool name.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a tool definition. Registering a duplicate name or a
// nil handler is a programming error and fails loudly.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool definition missing name")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %q has no handler", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("tool %q already registered", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Get looks up a tool by exact name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
