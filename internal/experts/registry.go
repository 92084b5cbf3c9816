package experts

import (
	"sync"

	"consilium/pkg/errors"
	"consilium/pkg/logger"
)

// Registry is the authoritative catalog of active expert modules. Every
// registered module is a mandatory contributor to consensus: there is no
// quorum concept, because omitting a voter changes what "consensus" means.
//
// Registration is an administrative, startup-time operation; request-time
// access is read-only and safe under concurrent readers.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
	order   []string // registration order, for reproducible weighting diagnostics
	log     *logger.Logger
}

// NewRegistry constructs an empty module registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]Module),
		log:     logger.Get().With("component", "module_registry"),
	}
}

// Register adds a module to the catalog. Fails with errors.ErrDuplicateModule
// when a module with the same name is already present.
func (r *Registry) Register(m Module) error {
	desc := m.Descriptor()
	if desc.Name == "" {
		return errors.Wrap(errors.ErrInvalidInput, "module name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[desc.Name]; exists {
		return errors.Wrapf(errors.ErrDuplicateModule, "name %q", desc.Name)
	}

	r.modules[desc.Name] = m
	r.order = append(r.order, desc.Name)

	r.log.Infof("Module registered: %s v%s", desc.Name, desc.Version)
	return nil
}

// Unregister removes a module by name. Rare, administrative.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[name]; !exists {
		return errors.Wrapf(errors.ErrModuleNotFound, "name %q", name)
	}

	delete(r.modules, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.log.Infof("Module unregistered: %s", name)
	return nil
}

// Get retrieves a module by name.
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// All returns every registered module in registration order.
func (r *Registry) All() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Module, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.modules[name])
	}
	return out
}

// Names returns registered module names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Descriptors returns every module's descriptor in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.modules[name].Descriptor())
	}
	return out
}

// Len is the mandatory contribution count: how many opinions a valid
// consensus computation must include.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}
