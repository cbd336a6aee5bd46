// internal/actions/registry.go

package actions

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"

	"rgehrsitz/expert/internal/facts"
)

// Params are the named arguments an action passes to its handler.
type Params map[string]interface{}

// Context is what a handler sees while a rule fires. Results is the session's result
// state; Facts is read-only.
type Context struct {
	Rule    string
	Facts   facts.Reader
	Results map[string]interface{}
	Logger  zerolog.Logger
}

// Handler executes one action type against the evaluation context.
type Handler func(ctx *Context, params Params) error

// Validator checks an action's parameters before any session runs.
type Validator func(params Params) error

// UnknownActionTypeError is returned when an action names a type with no registered handler.
type UnknownActionTypeError struct {
	Type string
}

func (e *UnknownActionTypeError) Error() string {
	return fmt.Sprintf("unknown action type: %s", e.Type)
}

type entry struct {
	handler  Handler
	validate Validator
}

// Registry maps action types to handlers. It has no built-in entries.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register installs handler for actionType, replacing any previous registration.
func (r *Registry) Register(actionType string, handler Handler) {
	r.RegisterValidated(actionType, handler, nil)
}

// RegisterValidated installs handler together with a parameter validator used by Validate.
func (r *Registry) RegisterValidated(actionType string, handler Handler, validate Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[actionType] = entry{handler: handler, validate: validate}
}

// Get returns the handler registered for actionType.
func (r *Registry) Get(actionType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[actionType]
	if !ok {
		return nil, &UnknownActionTypeError{Type: actionType}
	}
	return e.handler, nil
}

func (r *Registry) Has(actionType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[actionType]
	return ok
}

// Validate checks that actionType is registered and, when the handler was registered
// with a validator, that params have the shape it expects.
func (r *Registry) Validate(actionType string, params Params) error {
	r.mu.RLock()
	e, ok := r.entries[actionType]
	r.mu.RUnlock()
	if !ok {
		return &UnknownActionTypeError{Type: actionType}
	}
	if e.validate == nil {
		return nil
	}
	if err := e.validate(params); err != nil {
		return fmt.Errorf("invalid parameters for action %s: %w", actionType, err)
	}
	return nil
}

// Names returns the registered action types in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decode copies params into the struct pointed to by out. Keys without a matching
// field are an error, as is a fractional number bound for an integer field.
func Decode(params Params, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  wholeNumberHook,
		ErrorUnused: true,
		Result:      out,
		TagName:     "param",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(map[string]interface{}(params))
}

func wholeNumberHook(from, to reflect.Kind, data interface{}) (interface{}, error) {
	if from != reflect.Float32 && from != reflect.Float64 {
		return data, nil
	}
	switch to {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f := reflect.ValueOf(data).Float()
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("%v is not a whole number", data)
		}
	}
	return data, nil
}

// Typed adapts a handler taking a decoded parameter struct into a Handler and a
// Validator sharing the same decoding.
func Typed[T any](fn func(ctx *Context, params T) error) (Handler, Validator) {
	handler := func(ctx *Context, params Params) error {
		var decoded T
		if err := Decode(params, &decoded); err != nil {
			return err
		}
		return fn(ctx, decoded)
	}
	validate := func(params Params) error {
		var decoded T
		return Decode(params, &decoded)
	}
	return handler, validate
}
