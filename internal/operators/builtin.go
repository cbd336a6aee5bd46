// internal/operators/builtin.go

package operators

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

const (
	OperatorGreaterThanOrEqual = "gte"
	OperatorLessThanOrEqual    = "lte"
	OperatorGreaterThan        = "gt"
	OperatorLessThan           = "lt"
	OperatorBetween            = "between"
	OperatorEqual              = "eq"
	OperatorNotEqual           = "neq"
	OperatorIn                 = "in"
	OperatorContains           = "contains"
)

var SupportedOperators = []string{
	OperatorGreaterThanOrEqual,
	OperatorLessThanOrEqual,
	OperatorGreaterThan,
	OperatorLessThan,
	OperatorBetween,
	OperatorEqual,
	OperatorNotEqual,
	OperatorIn,
	OperatorContains,
}

var (
	// ErrIncomparable is returned when two values have no ordering between them.
	ErrIncomparable = errors.New("values are not comparable")
	// ErrBadRange is returned when a between operand is not a two-element sequence.
	ErrBadRange = errors.New("range must be a two-element sequence")
	// ErrNotCollection is returned when membership is tested against a non-collection.
	ErrNotCollection = errors.New("value is not a collection")
)

var builtins = map[string]Func{
	OperatorGreaterThanOrEqual: ordered(func(c int) bool { return c >= 0 }),
	OperatorLessThanOrEqual:    ordered(func(c int) bool { return c <= 0 }),
	OperatorGreaterThan:        ordered(func(c int) bool { return c > 0 }),
	OperatorLessThan:           ordered(func(c int) bool { return c < 0 }),
	OperatorBetween:            Between,
	OperatorEqual: func(a, b interface{}) (bool, error) {
		return Equal(a, b), nil
	},
	OperatorNotEqual: func(a, b interface{}) (bool, error) {
		return !Equal(a, b), nil
	},
	OperatorIn: In,
	OperatorContains: func(a, b interface{}) (bool, error) {
		return In(b, a)
	},
}

func ordered(test func(int) bool) Func {
	return func(a, b interface{}) (bool, error) {
		c, err := Compare(a, b)
		if err != nil {
			return false, err
		}
		return test(c), nil
	}
}

// Between reports whether min <= value < max for a two-element bounds sequence.
func Between(value, bounds interface{}) (bool, error) {
	rv := reflect.ValueOf(bounds)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Len() != 2 {
		return false, fmt.Errorf("%w: got %v", ErrBadRange, bounds)
	}
	lo, err := Compare(rv.Index(0).Interface(), value)
	if err != nil {
		return false, err
	}
	hi, err := Compare(value, rv.Index(1).Interface())
	if err != nil {
		return false, err
	}
	return lo <= 0 && hi < 0, nil
}

// Compare orders a against b, returning -1, 0 or 1. Numbers of any Go numeric kind
// compare by value, strings lexically and times chronologically. A date string
// compared with a time is parsed first.
func Compare(a, b interface{}) (int, error) {
	a, b = alignTimes(a, b)
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return cmp(fa < fb, fa > fb), nil
		}
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), nil
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return cmp(av.Before(bv), av.After(bv)), nil
		}
	}
	return 0, fmt.Errorf("%w: %T and %T", ErrIncomparable, a, b)
}

func cmp(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	default:
		return 0
	}
}

// Equal reports structural equality. Numbers compare by value regardless of kind,
// sequences element-wise and maps key by key with the same rule.
func Equal(a, b interface{}) bool {
	a, b = alignTimes(a, b)
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if isSequence(ra) && isSequence(rb) {
		if ra.Len() != rb.Len() {
			return false
		}
		for i := 0; i < ra.Len(); i++ {
			if !Equal(ra.Index(i).Interface(), rb.Index(i).Interface()) {
				return false
			}
		}
		return true
	}
	if ra.IsValid() && rb.IsValid() && ra.Kind() == reflect.Map && rb.Kind() == reflect.Map {
		if ra.Len() != rb.Len() {
			return false
		}
		iter := ra.MapRange()
		for iter.Next() {
			other, ok := mapIndex(rb, iter.Key().Interface())
			if !ok || !Equal(iter.Value().Interface(), other) {
				return false
			}
		}
		return true
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

// In reports whether item is an element of a slice or array, a key of a map, or a
// substring of a string collection.
func In(item, collection interface{}) (bool, error) {
	rv := reflect.ValueOf(collection)
	switch {
	case isSequence(rv):
		for i := 0; i < rv.Len(); i++ {
			if Equal(item, rv.Index(i).Interface()) {
				return true, nil
			}
		}
		return false, nil
	case rv.Kind() == reflect.Map:
		for _, key := range rv.MapKeys() {
			if Equal(item, key.Interface()) {
				return true, nil
			}
		}
		return false, nil
	case rv.Kind() == reflect.String:
		s, ok := item.(string)
		if !ok {
			return false, fmt.Errorf("%w: cannot search %T in a string", ErrIncomparable, item)
		}
		return strings.Contains(rv.String(), s), nil
	}
	return false, fmt.Errorf("%w: %T", ErrNotCollection, collection)
}

// mapIndex looks key up in m, matching keys with Equal so that 2 and 2.0 name the same entry.
func mapIndex(m reflect.Value, key interface{}) (interface{}, bool) {
	iter := m.MapRange()
	for iter.Next() {
		if Equal(key, iter.Key().Interface()) {
			return iter.Value().Interface(), true
		}
	}
	return nil, false
}

// timeLayouts are the string forms accepted when a string meets a time.Time.
var timeLayouts = []string{"2006-01-02", time.RFC3339Nano}

// alignTimes parses whichever side is a string when the other is a time.Time, so a
// date loaded from CSV or YAML compares with one written as text in JSON.
func alignTimes(a, b interface{}) (interface{}, interface{}) {
	switch av := a.(type) {
	case time.Time:
		if bs, ok := b.(string); ok {
			if bt, ok := parseTime(bs); ok {
				return av, bt
			}
		}
	case string:
		if bt, ok := b.(time.Time); ok {
			if at, ok := parseTime(av); ok {
				return at, bt
			}
		}
	}
	return a, b
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isSequence(rv reflect.Value) bool {
	return rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
