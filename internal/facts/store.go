// internal/facts/store.go

package facts

import (
	"reflect"

	"github.com/mohae/deepcopy"
)

// Reader is the read-only view of a fact store handed to conditions and action handlers.
type Reader interface {
	Get(name string, fallback interface{}) interface{}
	Lookup(name string) (interface{}, bool)
	Has(name string) bool
	All() map[string]interface{}
}

// Store holds the named facts of one evaluation session.
// A Store is not safe for concurrent writes; each session owns its own Store.
type Store struct {
	facts map[string]interface{}
}

// NewStore creates an empty fact store.
func NewStore() *Store {
	return &Store{facts: make(map[string]interface{})}
}

// Set stores value under name. When overwrite is false the call is a no-op only if
// a truthy value is already stored: a stored nil, false, zero number, empty string or
// empty collection counts as absent and is replaced.
func (s *Store) Set(name string, value interface{}, overwrite bool) {
	if !overwrite && Truthy(s.facts[name]) {
		return
	}
	s.facts[name] = value
}

// Get returns the fact stored under name, or fallback when there is none.
func (s *Store) Get(name string, fallback interface{}) interface{} {
	if v, ok := s.facts[name]; ok {
		return v
	}
	return fallback
}

// Lookup returns the fact stored under name and whether it exists.
func (s *Store) Lookup(name string) (interface{}, bool) {
	v, ok := s.facts[name]
	return v, ok
}

func (s *Store) Has(name string) bool {
	_, ok := s.facts[name]
	return ok
}

// Update sets every entry of facts, always overwriting.
func (s *Store) Update(facts map[string]interface{}) {
	for name, value := range facts {
		s.facts[name] = value
	}
}

// Clear removes all facts.
func (s *Store) Clear() {
	s.facts = make(map[string]interface{})
}

func (s *Store) Len() int {
	return len(s.facts)
}

// All returns a deep copy of the stored facts.
func (s *Store) All() map[string]interface{} {
	return deepcopy.Copy(s.facts).(map[string]interface{})
}

// Truthy reports whether v would count as present for non-overwriting writes.
func Truthy(v interface{}) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	default:
		return true
	}
}
