package graph

import (
	"strings"
	"testing"

	"github.com/comalice/fsmgen/internal/ir"
	"github.com/comalice/fsmgen/internal/parser"
)

func build(t *testing.T, source string) (*ir.Machine, []ir.Diagnostic) {
	t.Helper()
	file, diags := parser.Parse(source)
	if ir.HasErrors(diags) {
		t.Fatalf("parse failed: %v", diags)
	}
	return Build("Test", file)
}

func mustBuild(t *testing.T, source string) *ir.Machine {
	t.Helper()
	m, diags := build(t, source)
	if len(diags) != 0 {
		t.Fatalf("build diagnostics: %v", diags)
	}
	return m
}

func TestBuildInternsStatesOnce(t *testing.T) {
	m := mustBuild(t, `
[*] --> A :
A --> B : go
B --> A : back
`)
	if m.Initial == nil {
		t.Fatal("initial pseudo-state not bound")
	}
	if len(m.States) != 3 {
		t.Fatalf("got %d states, want 3 (initial, A, B)", len(m.States))
	}
	a := m.StateByName("A")
	if a == nil || a.ID != 1 {
		t.Fatalf("state A = %+v, want ID 1", a)
	}
	if len(m.Transitions) != 3 {
		t.Fatalf("got %d transitions, want 3", len(m.Transitions))
	}
}

// Graph fidelity: every source transition maps onto exactly one edge
// with matching endpoints, event, guard, and action text.
func TestBuildGraphFidelity(t *testing.T) {
	m := mustBuild(t, "HasQuarter --> GumballSold : turnCrank [gumballs>0] / --gumballs\n[*] --> HasQuarter :")
	var found *ir.Transition
	for _, tr := range m.Transitions {
		if tr.EventName() == "turnCrank" {
			if found != nil {
				t.Fatal("duplicate edge for one source transition")
			}
			found = tr
		}
	}
	if found == nil {
		t.Fatal("edge for turnCrank not built")
	}
	if found.Source.Name != "HasQuarter" || found.Destination.Name != "GumballSold" {
		t.Errorf("edge endpoints = %s -> %s", found.Source, found.Destination)
	}
	if !found.Guard.Present || found.Guard.Text != "gumballs>0" {
		t.Errorf("guard = %+v", found.Guard)
	}
	if !found.Action.Present || found.Action.Text != "--gumballs" {
		t.Errorf("action = %+v", found.Action)
	}
	if found.Kind != ir.External {
		t.Errorf("kind = %v, want External", found.Kind)
	}
}

func TestBuildNormalizesArrowDirection(t *testing.T) {
	forward := mustBuild(t, "[*] --> B :\nB --> A : go")
	backward := mustBuild(t, "[*] --> B :\nA <-- B : go")

	for _, m := range []*ir.Machine{forward, backward} {
		var edge *ir.Transition
		for _, tr := range m.Transitions {
			if tr.EventName() == "go" {
				edge = tr
			}
		}
		if edge == nil {
			t.Fatal("edge not found")
		}
		if edge.Source.Name != "B" || edge.Destination.Name != "A" {
			t.Errorf("edge = %s -> %s, want B -> A", edge.Source, edge.Destination)
		}
	}
}

func TestBuildPseudoStatePosition(t *testing.T) {
	// "[*]" is the initial state on the source side and the final state
	// on the destination side, after arrow normalization.
	m := mustBuild(t, "[*] --> A :\nA --> [*] : finish\n[*] <-- A : quit")
	if m.Initial == nil || m.Final == nil {
		t.Fatal("pseudo-states not bound")
	}
	if got := len(m.Out(m.Initial)); got != 1 {
		t.Errorf("initial out-degree = %d, want 1", got)
	}
	if got := len(m.In(m.Final)); got != 2 {
		t.Errorf("final in-degree = %d, want 2 (finish and quit)", got)
	}
}

func TestBuildConcatenatesEntryExit(t *testing.T) {
	m := mustBuild(t, `
[*] --> A :
A : entry / first()
A : entry / second()
A : exit / bye()
`)
	a := m.StateByName("A")
	if !a.Entry.Present || a.Entry.Text != "first()second()" {
		t.Errorf("entry = %+v, want concatenated bodies in order", a.Entry)
	}
	if !a.Exit.Present || a.Exit.Text != "bye()" {
		t.Errorf("exit = %+v", a.Exit)
	}
}

// entering/leaving must produce the same machine as entry/exit.
func TestBuildAliasEquivalence(t *testing.T) {
	plain := mustBuild(t, "[*] --> A :\nA : entry / a\nA : exit / b")
	alias := mustBuild(t, "[*] --> A :\nA : entering / a\nA : leaving / b")

	ps, as := plain.StateByName("A"), alias.StateByName("A")
	if ps.Entry != as.Entry || ps.Exit != as.Exit {
		t.Errorf("alias machine differs: entry %+v vs %+v, exit %+v vs %+v",
			ps.Entry, as.Entry, ps.Exit, as.Exit)
	}
}

func TestBuildInternalReaction(t *testing.T) {
	m := mustBuild(t, "[*] --> A :\nA : on tick [armed] / ++count")
	a := m.StateByName("A")
	if len(a.Reactions) != 1 {
		t.Fatalf("got %d reactions, want 1", len(a.Reactions))
	}
	r := a.Reactions[0]
	if r.Kind != ir.Internal || r.Source != a || r.Destination != a {
		t.Errorf("reaction = %+v, want internal self-edge", r)
	}
	if r.EventName() != "tick" || r.Guard.Text != "armed" || r.Action.Text != "++count" {
		t.Errorf("reaction label = %s [%s] / %s", r.EventName(), r.Guard.Text, r.Action.Text)
	}
}

func TestBuildSelfLoopWithEventIsInternal(t *testing.T) {
	m := mustBuild(t, "[*] --> A :\nA --> A : poke")
	var edge *ir.Transition
	for _, tr := range m.Transitions {
		if tr.EventName() == "poke" {
			edge = tr
		}
	}
	if edge.Kind != ir.Internal {
		t.Errorf("kind = %v, want Internal", edge.Kind)
	}
}

func TestBuildEventParams(t *testing.T) {
	m := mustBuild(t, "[*] --> A :\nA --> B : setSpeed(int rpm)")
	var edge *ir.Transition
	for _, tr := range m.Transitions {
		if tr.Event != nil {
			edge = tr
		}
	}
	if edge.Event.Name != "setSpeed" || edge.Event.Params != "int rpm" {
		t.Errorf("event = %+v", edge.Event)
	}
}

func TestBuildRejectsParallelEdges(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"duplicate event edge", "[*] --> A :\nA --> B : go\nA --> B : go"},
		{"duplicate internal reaction", "[*] --> A :\nA : on tick / x\nA : on tick / y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diags := build(t, tt.source)
			if len(diags) != 1 {
				t.Fatalf("got %d diagnostics, want 1 (builder stops at the first shape error)", len(diags))
			}
			if diags[0].Kind != ir.ShapeError {
				t.Errorf("kind = %v, want ShapeError", diags[0].Kind)
			}
			if !strings.Contains(diags[0].Message, "duplicate") {
				t.Errorf("message = %q", diags[0].Message)
			}
		})
	}
}

func TestBuildRejectsUnknownStateKeyword(t *testing.T) {
	_, diags := build(t, "[*] --> A :\nA : frobnicate / x")
	if len(diags) != 1 || diags[0].Kind != ir.ShapeError {
		t.Fatalf("diagnostics = %v, want one ShapeError", diags)
	}
}

func TestBuildBindsDirectives(t *testing.T) {
	m := mustBuild(t, `
'[param] int gumballs
'[brief] a gumball machine
'[code] int gumballs;
'[code] bool jammed;
[*] --> A :
`)
	if got := m.Extras[ir.SlotParam]; got != "int gumballs" {
		t.Errorf("param slot = %q", got)
	}
	if got := m.Extras[ir.SlotBrief]; got != "a gumball machine" {
		t.Errorf("brief slot = %q", got)
	}
	if got := m.Extras[ir.SlotCode]; got != "int gumballs;\nbool jammed;" {
		t.Errorf("repeated code slots not concatenated: %q", got)
	}
}
