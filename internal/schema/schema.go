// Package schema describes the facts a domain expects and loads fact records against
// that description.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"rgehrsitz/expert/internal/preprocessor"
)

// Type is the semantic type of a fact.
type Type string

const (
	TypeNumber  Type = "number"
	TypeString  Type = "string"
	TypeBoolean Type = "boolean"
	TypeEnum    Type = "enum"
	TypeDate    Type = "date"
	TypeArray   Type = "array"
)

// DateLayout is the layout dates are written in.
const DateLayout = "2006-01-02"

func (t Type) valid() bool {
	switch t {
	case TypeNumber, TypeString, TypeBoolean, TypeEnum, TypeDate, TypeArray:
		return true
	}
	return false
}

// FactError reports a fact value that does not satisfy its definition.
type FactError struct {
	Fact string
	Msg  string
}

func (e *FactError) Error() string {
	return fmt.Sprintf("fact '%s' %s", e.Fact, e.Msg)
}

// Definition describes one fact.
type Definition struct {
	Name        string      `json:"-" yaml:"-"`
	Type        Type        `json:"type" yaml:"type"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool        `json:"required,omitempty" yaml:"required,omitempty"`
	Default     interface{} `json:"default,omitempty" yaml:"default,omitempty"`
	Min         *float64    `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64    `json:"max,omitempty" yaml:"max,omitempty"`
	Values      []string    `json:"values,omitempty" yaml:"values,omitempty"`
	Unit        string      `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// Validate checks value against the definition. A nil value is valid unless the fact is required.
func (d *Definition) Validate(value interface{}) error {
	if value == nil {
		if d.Required {
			return &FactError{Fact: d.Name, Msg: "is required"}
		}
		return nil
	}

	switch d.Type {
	case TypeNumber:
		n, ok := number(value)
		if !ok {
			return &FactError{Fact: d.Name, Msg: "must be a number"}
		}
		if d.Min != nil && n < *d.Min {
			return &FactError{Fact: d.Name, Msg: fmt.Sprintf("must be >= %v", *d.Min)}
		}
		if d.Max != nil && n > *d.Max {
			return &FactError{Fact: d.Name, Msg: fmt.Sprintf("must be <= %v", *d.Max)}
		}
	case TypeString:
		if _, ok := value.(string); !ok {
			return &FactError{Fact: d.Name, Msg: "must be a string"}
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return &FactError{Fact: d.Name, Msg: "must be a boolean"}
		}
	case TypeEnum:
		s, _ := value.(string)
		for _, allowed := range d.Values {
			if s == allowed {
				return nil
			}
		}
		return &FactError{Fact: d.Name, Msg: fmt.Sprintf("must be one of %v", d.Values)}
	case TypeDate:
		switch v := value.(type) {
		case time.Time:
		case string:
			if _, err := time.Parse(DateLayout, v); err != nil {
				return &FactError{Fact: d.Name, Msg: "must be a date (YYYY-MM-DD)"}
			}
		default:
			return &FactError{Fact: d.Name, Msg: "must be a date"}
		}
	case TypeArray:
		if k := reflect.ValueOf(value).Kind(); k != reflect.Slice && k != reflect.Array {
			return &FactError{Fact: d.Name, Msg: "must be an array"}
		}
	}
	return nil
}

func number(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// Schema is the set of facts a domain knows about.
type Schema struct {
	Metadata map[string]interface{}
	Facts    map[string]*Definition
}

func New() *Schema {
	return &Schema{Metadata: map[string]interface{}{}, Facts: map[string]*Definition{}}
}

func (s *Schema) Add(def *Definition) {
	s.Facts[def.Name] = def
}

// Get returns the definition of name, or nil.
func (s *Schema) Get(name string) *Definition {
	return s.Facts[name]
}

// Validate checks every defined fact and rejects facts the schema does not define.
// Errors are ordered by fact name.
func (s *Schema) Validate(data map[string]interface{}) []error {
	var errs []error
	for _, name := range sortedKeys(s.Facts) {
		if err := s.Facts[name].Validate(data[name]); err != nil {
			errs = append(errs, err)
		}
	}
	for _, name := range sortedKeys(data) {
		if _, ok := s.Facts[name]; !ok {
			errs = append(errs, &FactError{Fact: name, Msg: "is not defined"})
		}
	}
	return errs
}

// ApplyDefaults returns a copy of data with defaults filled in for absent facts.
func (s *Schema) ApplyDefaults(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	for name, def := range s.Facts {
		if _, ok := out[name]; !ok && def.Default != nil {
			out[name] = def.Default
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type document struct {
	Metadata map[string]interface{} `json:"metadata" yaml:"metadata"`
	Facts    map[string]*Definition `json:"facts" yaml:"facts"`
}

// LoadSchema reads a JSON or YAML schema file.
func LoadSchema(path string) (*Schema, error) {
	format, err := preprocessor.FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return ParseSchema(data, format)
}

// ParseSchema decodes a schema document. A fact without a type is a string.
func ParseSchema(data []byte, format preprocessor.Format) (*Schema, error) {
	var doc document
	switch format {
	case preprocessor.FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal schema JSON: %w", err)
		}
	case preprocessor.FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal schema YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format for fact schema: %s", format)
	}

	s := New()
	if doc.Metadata != nil {
		s.Metadata = doc.Metadata
	}
	for name, def := range doc.Facts {
		if def == nil {
			def = &Definition{}
		}
		def.Name = name
		if def.Type == "" {
			def.Type = TypeString
		}
		if !def.Type.valid() {
			return nil, fmt.Errorf("fact '%s' has unknown type '%s'", name, def.Type)
		}
		s.Add(def)
	}
	return s, nil
}
