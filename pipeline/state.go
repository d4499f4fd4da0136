// ABOUTME: Shared state carried between pipeline steps and the Update type steps return.
// ABOUTME: Merging is shallow and key-wise: a key in an update replaces the running value.
package pipeline

import (
	"maps"
	"slices"
)

// Update is the partial state a step returns. Only the keys it names are touched.
type Update map[string]any

// State is the keyed data threaded through a run. A run owns its State exclusively,
// so it carries no locking; Clone before sharing it with another goroutine.
type State struct {
	values map[string]any
}

// NewState creates a State seeded with a copy of initial. The caller's map is never retained.
func NewState(initial map[string]any) State {
	values := make(map[string]any, len(initial))
	maps.Copy(values, initial)
	return State{values: values}
}

// Get returns the value stored under key and whether it was present.
func (s State) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether key is present.
func (s State) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// GetString returns the string under key, or defaultVal if it is missing or not a string.
func (s State) GetString(key, defaultVal string) string {
	if v, ok := s.values[key].(string); ok {
		return v
	}
	return defaultVal
}

// GetBool returns the bool under key, or false.
func (s State) GetBool(key string) bool {
	v, _ := s.values[key].(bool)
	return v
}

// Lookup returns the value under key converted to T. The second result is false when the
// key is missing or holds a different type.
func Lookup[T any](s State, key string) (T, bool) {
	v, ok := s.values[key].(T)
	return v, ok
}

// Len returns the number of keys.
func (s State) Len() int { return len(s.values) }

// Keys returns the state's keys in sorted order.
func (s State) Keys() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// Snapshot returns a shallow copy of the underlying map.
func (s State) Snapshot() map[string]any {
	out := make(map[string]any, len(s.values))
	maps.Copy(out, s.values)
	return out
}

// Clone returns an independent State with the same keys and values.
func (s State) Clone() State {
	return NewState(s.values)
}

// Merge returns a new State with every key of u overwriting the running value.
// Keys absent from u are left as they were; nothing is ever removed.
func (s State) Merge(u Update) State {
	next := s.Clone()
	maps.Copy(next.values, u)
	return next
}
