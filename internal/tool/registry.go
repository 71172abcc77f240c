package tool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// entry pairs a descriptor with its compiled argument schema.
type entry struct {
	desc     Descriptor
	resolved *jsonschema.Resolved
}

// Registry holds the registered tools. Register at startup, then share
// freely: Lookup and Descriptors are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a tool, compiling its argument schema. Registering a
// duplicate name, a nil handler, or an uncompilable schema is an error.
func (r *Registry) Register(desc Descriptor) error {
	if desc.Name == "" {
		return fmt.Errorf("tool: descriptor has empty name")
	}
	if desc.Handler == nil {
		return fmt.Errorf("tool: %s: descriptor has nil handler", desc.Name)
	}
	if desc.InputSchema == nil {
		return fmt.Errorf("tool: %s: descriptor has nil input schema", desc.Name)
	}

	resolved, err := desc.InputSchema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("tool: %s: compiling input schema: %w", desc.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[desc.Name]; exists {
		return fmt.Errorf("tool: %s: already registered", desc.Name)
	}
	r.entries[desc.Name] = &entry{desc: desc, resolved: resolved}
	return nil
}

// Lookup returns the descriptor for name, or false when it is not registered.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Descriptor{}, false
	}
	return e.desc, true
}

// Descriptors returns all registered descriptors sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// lookupEntry returns the full entry including the compiled schema.
func (r *Registry) lookupEntry(name string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}
