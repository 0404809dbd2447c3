package bot

import (
	"slices"
	"sync"
)

// Registry collects modules before the bot starts. Modules add themselves
// from init() functions, which may run from any imported package, so
// registration is synchronized even though it normally happens before
// main.
type Registry struct {
	mu      sync.RWMutex
	modules []Module
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a module. Load order is registration order, and
// Shutdown later walks the same order.
func (r *Registry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules = append(r.modules, m)
}

// Modules returns a copy of the registered modules; callers can range
// over it without holding the registry lock.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.modules)
}

// The package-level registry backs blank-import self-registration:
// importing a module package for side effects is all main.go does to
// enable a feature.
var globalRegistry = NewRegistry()

// Register adds a module to the package-level registry. Called from
// module init() functions.
func Register(m Module) {
	globalRegistry.Register(m)
}

// Modules lists everything registered so far.
func Modules() []Module {
	return globalRegistry.Modules()
}

// ResetGlobalRegistry swaps in an empty registry. Only tests use this;
// init() registrations from imported modules would otherwise leak
// between test cases.
func ResetGlobalRegistry() {
	globalRegistry = NewRegistry()
}
