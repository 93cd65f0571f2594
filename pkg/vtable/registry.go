package vtable

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Factory makes a descriptor for a registered table
type Factory func() (Descriptor, error)

// Registry maps table names to descriptor factories. It is populated at startup and read-only
// during query execution, but safe for concurrent use anyway.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// DefaultRegistry is the process-wide registry used by Register and MustRegister
var DefaultRegistry = NewRegistry()

// NewRegistry makes an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a table factory. Empty and duplicate names are rejected.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return errors.New("empty table name")
	}
	if f == nil {
		return fmt.Errorf("nil factory for table %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("table %s already registered", name)
	}
	r.factories[name] = f
	return nil
}

// RegisterDescriptor registers a factory returning the given descriptor under its name
func (r *Registry) RegisterDescriptor(d Descriptor) error {
	if d == nil {
		return errors.New("nil descriptor")
	}
	return r.Register(d.Name(), func() (Descriptor, error) { return d, nil })
}

// Get returns factory for the table name
func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns all registered table names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]string, 0, len(r.factories))
	for name := range r.factories {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// Register adds a table factory to the default registry
func Register(name string, f Factory) error {
	return DefaultRegistry.Register(name, f)
}

// MustRegister adds a table factory to the default registry and panics on failure,
// made for init-time registration
func MustRegister(name string, f Factory) {
	if err := DefaultRegistry.Register(name, f); err != nil {
		panic(err)
	}
}
