// internal/operators/registry.go

package operators

import (
	"fmt"
	"sort"
	"sync"
)

// Func is a binary predicate comparing a fact value against the value a condition expects.
// A returned error means the operator could not be applied to the given values.
type Func func(factValue, expected interface{}) (bool, error)

// UnknownOperatorError is returned when a condition names an operator that was never registered.
type UnknownOperatorError struct {
	Name string
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown operator: %s", e.Name)
}

// Registry maps operator names to predicates. It is safe for concurrent use, so one
// registry may back any number of sessions.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns a registry seeded with the built-in operators.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	for name, fn := range builtins {
		r.funcs[name] = fn
	}
	return r
}

// NewEmptyRegistry returns a registry without any operators.
func NewEmptyRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register installs fn under name, replacing any previous registration.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Get returns the operator registered under name.
func (r *Registry) Get(name string) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	if !ok {
		return nil, &UnknownOperatorError{Name: name}
	}
	return fn, nil
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[name]
	return ok
}

// Names returns the registered operator names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply resolves name and invokes it. A panic inside the operator is recovered and
// returned as an error.
func (r *Registry) Apply(name string, factValue, expected interface{}) (ok bool, err error) {
	fn, err := r.Get(name)
	if err != nil {
		return false, err
	}
	defer func() {
		if p := recover(); p != nil {
			ok = false
			if perr, isErr := p.(error); isErr {
				err = fmt.Errorf("operator %s panicked: %w", name, perr)
				return
			}
			err = fmt.Errorf("operator %s panicked: %v", name, p)
		}
	}()
	return fn(factValue, expected)
}
