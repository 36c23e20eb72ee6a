package graph

import "testing"

func simpleLinearGraph(t *testing.T) *Graph {
	t.Helper()
	a := &NodeSpec{ID: "a", Kind: KindFunction, OutputKeys: []string{"x"}, MaxVisits: 1}
	b := &NodeSpec{ID: "b", Kind: KindFunction, InputKeys: []string{"x"}, OutputKeys: []string{"y"}, MaxVisits: 1}
	edges := []*EdgeSpec{
		{ID: "e1", From: "a", To: "b", Condition: OnSuccess, Priority: 1},
	}
	g, err := New("g1", "linear", "v1", nil, []*NodeSpec{a, b}, edges, nil,
		map[string]string{"start": "a"}, nil, []string{"b"})
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	return g
}

func TestGraphValidateAcceptsLinearGraph(t *testing.T) {
	simpleLinearGraph(t)
}

func TestGraphValidateRejectsUndefinedEntryPoint(t *testing.T) {
	a := &NodeSpec{ID: "a", Kind: KindFunction, OutputKeys: []string{"x"}}
	_, err := New("g1", "n", "v1", nil, []*NodeSpec{a}, nil, nil,
		map[string]string{"start": "does-not-exist"}, nil, nil)
	if err == nil {
		t.Fatal("expected validation error for undefined entry point node")
	}
}

func TestGraphValidateRejectsEqualPriorityFanOut(t *testing.T) {
	a := &NodeSpec{ID: "a", Kind: KindFunction, OutputKeys: []string{"x"}}
	b := &NodeSpec{ID: "b", Kind: KindFunction, InputKeys: []string{"x"}, OutputKeys: []string{"y"}}
	c := &NodeSpec{ID: "c", Kind: KindFunction, InputKeys: []string{"x"}, OutputKeys: []string{"z"}}
	edges := []*EdgeSpec{
		{ID: "e1", From: "a", To: "b", Condition: Always, Priority: 1},
		{ID: "e2", From: "a", To: "c", Condition: Always, Priority: 1},
	}
	_, err := New("g1", "n", "v1", nil, []*NodeSpec{a, b, c}, edges, nil,
		map[string]string{"start": "a"}, nil, []string{"b", "c"})
	if err == nil {
		t.Fatal("expected validation error for equal-priority fan-out")
	}
}

func TestGraphValidateRejectsUnreachableRequiredInput(t *testing.T) {
	a := &NodeSpec{ID: "a", Kind: KindFunction, OutputKeys: []string{"x"}}
	b := &NodeSpec{ID: "b", Kind: KindFunction, InputKeys: []string{"never-produced"}, OutputKeys: []string{"y"}}
	edges := []*EdgeSpec{{ID: "e1", From: "a", To: "b", Condition: OnSuccess, Priority: 1}}
	_, err := New("g1", "n", "v1", nil, []*NodeSpec{a, b}, edges, nil,
		map[string]string{"start": "a"}, nil, []string{"b"})
	if err == nil {
		t.Fatal("expected validation error for unreachable required input")
	}
}

func TestGraphValidateRejectsPauseAndTerminalOverlap(t *testing.T) {
	a := &NodeSpec{ID: "a", Kind: KindFunction, OutputKeys: []string{"x"}}
	_, err := New("g1", "n", "v1", nil, []*NodeSpec{a}, nil, nil,
		map[string]string{"start": "a"}, []string{"a"}, []string{"a"})
	if err == nil {
		t.Fatal("expected validation error for a node declared both pause and terminal")
	}
}

func TestGraphEdgesFromOrdersForwardThenFeedbackThenID(t *testing.T) {
	a := &NodeSpec{ID: "a", Kind: KindFunction, OutputKeys: []string{"x"}}
	b := &NodeSpec{ID: "b", Kind: KindFunction, InputKeys: []string{"x"}, OutputKeys: []string{"y"}}
	edges := []*EdgeSpec{
		{ID: "z-low-feedback", From: "a", To: "b", Condition: Always, Priority: -5},
		{ID: "m-high-feedback", From: "a", To: "b", Condition: Always, Priority: -1},
		{ID: "b-forward", From: "a", To: "b", Condition: Always, Priority: 2},
		{ID: "a-forward", From: "a", To: "b", Condition: Always, Priority: 5},
	}
	g, err := New("g1", "n", "v1", nil, []*NodeSpec{a, b}, edges, nil,
		map[string]string{"start": "a"}, nil, []string{"b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ordered := g.EdgesFrom("a")
	want := []string{"a-forward", "b-forward", "m-high-feedback", "z-low-feedback"}
	if len(ordered) != len(want) {
		t.Fatalf("expected %d edges, got %d", len(want), len(ordered))
	}
	for i, id := range want {
		if ordered[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, ordered[i].ID)
		}
	}
}

func TestGraphIsPauseAndIsTerminal(t *testing.T) {
	g := simpleLinearGraph(t)
	if g.IsPause("a") {
		t.Fatal("a should not be a pause node")
	}
	if !g.IsTerminal("b") {
		t.Fatal("b should be terminal")
	}
}
