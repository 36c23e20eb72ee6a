package graph

import (
	"reflect"
	"sort"
	"testing"
)

func TestNodeSpecIsNullable(t *testing.T) {
	n := &NodeSpec{OutputKeys: []string{"a", "b"}, NullableOutputs: []string{"b"}}
	if n.isNullable("a") {
		t.Fatal("a should not be nullable")
	}
	if !n.isNullable("b") {
		t.Fatal("b should be nullable")
	}
}

func TestNodeSpecRequiredOutputs(t *testing.T) {
	n := &NodeSpec{OutputKeys: []string{"a", "b", "c"}, NullableOutputs: []string{"b"}}
	got := n.requiredOutputs()
	sort.Strings(got)
	want := []string{"a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNodeSpecRequiredInputs(t *testing.T) {
	n := &NodeSpec{InputKeys: []string{"x", "y"}}
	got := n.requiredInputs()
	if !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Fatalf("expected InputKeys verbatim, got %v", got)
	}
}

func TestNodeSpecInputView(t *testing.T) {
	n := &NodeSpec{InputKeys: []string{"x", "z"}}
	snapshot := map[string]any{"x": 1, "y": 2}

	view := n.inputView(snapshot)
	if len(view) != 1 {
		t.Fatalf("expected only declared, present keys in the view, got %v", view)
	}
	if view["x"] != 1 {
		t.Fatalf("expected x=1, got %v", view["x"])
	}
	if _, ok := view["z"]; ok {
		t.Fatal("z is declared but absent from the snapshot and must not appear in the view")
	}
	if _, ok := view["y"]; ok {
		t.Fatal("y is present in the snapshot but not declared, and must not leak into the view")
	}
}
