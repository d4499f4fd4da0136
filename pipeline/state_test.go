// ABOUTME: Tests for State accessors and shallow merge semantics.
// ABOUTME: Covers overwrite, key retention, idempotence, and isolation from caller maps.
package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewStateCopiesInitial(t *testing.T) {
	initial := map[string]any{"topic": "go"}
	s := NewState(initial)
	initial["topic"] = "rust"
	if got := s.GetString("topic", ""); got != "go" {
		t.Errorf("got %q, want %q", got, "go")
	}
}

func TestStateMerge(t *testing.T) {
	s := NewState(map[string]any{"a": 1, "b": []string{"x"}})
	next := s.Merge(Update{"b": []string{"y"}, "c": true})

	want := map[string]any{"a": 1, "b": []string{"y"}, "c": true}
	if diff := cmp.Diff(want, next.Snapshot()); diff != "" {
		t.Errorf("merged state mismatch (-want +got):\n%s", diff)
	}
	// The receiver is untouched.
	if diff := cmp.Diff(map[string]any{"a": 1, "b": []string{"x"}}, s.Snapshot()); diff != "" {
		t.Errorf("original state mutated (-want +got):\n%s", diff)
	}
}

func TestStateMergeIdempotent(t *testing.T) {
	s := NewState(map[string]any{"topic": "t"})
	u := Update{"docs": []string{"a", "b"}, "need_more": false}
	once := s.Merge(u)
	twice := once.Merge(u)
	if diff := cmp.Diff(once.Snapshot(), twice.Snapshot()); diff != "" {
		t.Errorf("merge not idempotent (-once +twice):\n%s", diff)
	}
}

func TestStateMergeNilUpdate(t *testing.T) {
	s := NewState(map[string]any{"a": 1})
	if diff := cmp.Diff(s.Snapshot(), s.Merge(nil).Snapshot()); diff != "" {
		t.Errorf("nil update changed state:\n%s", diff)
	}
}

func TestStateAccessors(t *testing.T) {
	s := NewState(map[string]any{
		"topic":     "go",
		"need_more": true,
		"queries":   []string{"q1"},
		"count":     3,
	})
	if got := s.GetString("missing", "dflt"); got != "dflt" {
		t.Errorf("GetString default: got %q", got)
	}
	if got := s.GetString("count", "dflt"); got != "dflt" {
		t.Errorf("GetString wrong type: got %q", got)
	}
	if !s.GetBool("need_more") {
		t.Error("GetBool: expected true")
	}
	if s.GetBool("topic") {
		t.Error("GetBool on string should be false")
	}
	qs, ok := Lookup[[]string](s, "queries")
	if !ok || len(qs) != 1 {
		t.Errorf("Lookup queries: got %v, %v", qs, ok)
	}
	if _, ok := Lookup[[]string](s, "topic"); ok {
		t.Error("Lookup with wrong type should fail")
	}
	if !s.Has("count") || s.Has("nope") {
		t.Error("Has mismatch")
	}
	if diff := cmp.Diff([]string{"count", "need_more", "queries", "topic"}, s.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
	if s.Len() != 4 {
		t.Errorf("Len: got %d", s.Len())
	}
}

func TestZeroState(t *testing.T) {
	var s State
	if s.Has("x") {
		t.Error("zero state should be empty")
	}
	next := s.Merge(Update{"x": 1})
	if v, _ := Lookup[int](next, "x"); v != 1 {
		t.Errorf("got %v, want 1", v)
	}
}
