package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGet(t *testing.T) {
	s := NewStore()
	s.Set("gpa", 3.7, true)

	assert.True(t, s.Has("gpa"))
	assert.Equal(t, 3.7, s.Get("gpa", nil))
	assert.Equal(t, "none", s.Get("missing", "none"))
	assert.False(t, s.Has("missing"))

	s.Set("gpa", 3.9, true)
	assert.Equal(t, 3.9, s.Get("gpa", nil))
}

func TestSetWithoutOverwrite(t *testing.T) {
	s := NewStore()
	s.Set("status", "admitted", true)
	s.Set("status", "rejected", false)
	assert.Equal(t, "admitted", s.Get("status", nil))

	s.Set("new", "value", false)
	assert.Equal(t, "value", s.Get("new", nil))
}

// Falsy stored values count as absent when overwrite is false.
func TestSetWithoutOverwriteReplacesFalsyValues(t *testing.T) {
	for _, falsy := range []interface{}{0, 0.0, "", false, nil, []interface{}{}, map[string]interface{}{}} {
		s := NewStore()
		s.Set("x", falsy, true)
		s.Set("x", "replacement", false)
		assert.Equal(t, "replacement", s.Get("x", nil), "stored %#v", falsy)
	}
}

func TestUpdateClearAndLen(t *testing.T) {
	s := NewStore()
	s.Set("a", 1, true)
	s.Update(map[string]interface{}{"a": 2, "b": 3})
	assert.Equal(t, 2, s.Get("a", nil))
	assert.Equal(t, 2, s.Len())

	s.Clear()
	assert.Zero(t, s.Len())
	assert.False(t, s.Has("a"))
}

func TestAllReturnsDeepCopy(t *testing.T) {
	s := NewStore()
	s.Set("subjects", []interface{}{"math"}, true)

	all := s.All()
	all["subjects"].([]interface{})[0] = "art"
	all["injected"] = true

	assert.Equal(t, []interface{}{"math"}, s.Get("subjects", nil))
	assert.False(t, s.Has("injected"))
}

func TestTruthy(t *testing.T) {
	assert.True(t, Truthy(1))
	assert.True(t, Truthy("x"))
	assert.True(t, Truthy([]int{1}))
	assert.True(t, Truthy(struct{}{}))
	assert.False(t, Truthy(uint(0)))
	assert.False(t, Truthy((*int)(nil)))
}
