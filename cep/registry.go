package cep

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs a Runtime from an adapter-specific options map.
type Factory func(options map[string]any) (Runtime, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterRuntime makes a runtime adapter available under a name,
// typically from the adapter package's init. Registering twice under the
// same name panics, like database/sql drivers.
func RegisterRuntime(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if name == "" || factory == nil {
		panic("cep: RegisterRuntime with empty name or nil factory")
	}
	if _, dup := factories[name]; dup {
		panic("cep: RegisterRuntime called twice for " + name)
	}
	factories[name] = factory
}

// NewRuntime constructs the named runtime adapter.
func NewRuntime(name string, options map[string]any) (Runtime, error) {
	factoriesMu.RLock()
	factory, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("cep: unknown runtime %q (linked adapters: %v)", name, Runtimes())
	}
	return factory(options)
}

// Runtimes lists the registered adapter names, sorted.
func Runtimes() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
