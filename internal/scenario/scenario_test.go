package scenario

import (
	"reflect"
	"testing"

	"github.com/comalice/fsmgen/internal/graph"
	"github.com/comalice/fsmgen/internal/ir"
	"github.com/comalice/fsmgen/internal/parser"
)

const gumballSource = `
[*] --> NoQuarter : [gumballs>0]
[*] --> OutOfGumballs : [gumballs==0]
NoQuarter --> HasQuarter : insertQuarter
HasQuarter --> GumballSold : turnCrank / --gumballs
GumballSold --> NoQuarter : [gumballs>0]
GumballSold --> OutOfGumballs : [gumballs==0]
`

const motorSource = `
[*] --> Idle :
Idle --> Starting : setSpeed
Starting --> Spinning : setSpeed
Starting --> Stopping : halt
Spinning --> Stopping : halt
Stopping --> Idle :
`

const richManSource = `
[*] --> Pocket :
Pocket --> Pocket : [quarters<10] / incr(quarters)
Pocket --> Rich : [quarters>=10]
`

func synthesize(t *testing.T, source string) ([]Scenario, *ir.Machine) {
	t.Helper()
	file, diags := parser.Parse(source)
	if ir.HasErrors(diags) {
		t.Fatalf("parse failed: %v", diags)
	}
	m, diags := graph.Build("Test", file)
	if len(diags) != 0 {
		t.Fatalf("build failed: %v", diags)
	}
	return Synthesize(m, Options{}), m
}

func byName(t *testing.T, scs []Scenario, name string) Scenario {
	t.Helper()
	for _, sc := range scs {
		if sc.Name == name {
			return sc
		}
	}
	t.Fatalf("scenario %q not in listing: %v", name, names(scs))
	return Scenario{}
}

func names(scs []Scenario) []string {
	out := make([]string, len(scs))
	for i, sc := range scs {
		out[i] = sc.Name
	}
	return out
}

func TestSynthesizeInitialScenarioFirst(t *testing.T) {
	scs, _ := synthesize(t, gumballSource)
	if scs[0].Kind != InitialState || scs[0].Name != "initial_state" {
		t.Fatalf("first scenario = %s (%s), want initial_state", scs[0].Name, scs[0].Kind)
	}
	var set []string
	for _, s := range scs[0].ExpectedSet {
		set = append(set, s.Name)
	}
	if !reflect.DeepEqual(set, []string{"NoQuarter", "OutOfGumballs"}) {
		t.Errorf("expected set = %v", set)
	}
}

// Spec scenario 1: the sell cycle replays insertQuarter, turnCrank and
// lands back in NoQuarter via the completion drain.
func TestSynthesizeGumballCycle(t *testing.T) {
	scs, _ := synthesize(t, gumballSource)
	sc := byName(t, scs, "cycle_1_NoQuarter")
	if !reflect.DeepEqual(sc.Events, []string{"insertQuarter", "turnCrank"}) {
		t.Errorf("events = %v", sc.Events)
	}
	if sc.Expected.Name != "NoQuarter" {
		t.Errorf("expected = %s", sc.Expected)
	}
	if len(sc.Outcomes) != 0 {
		t.Errorf("cycle scenarios run against the real machine, got outcomes %v", sc.Outcomes)
	}
}

func TestSynthesizeGumballPaths(t *testing.T) {
	scs, _ := synthesize(t, gumballSource)
	// Paths are ordered by (length, events); the one-hop reset into
	// OutOfGumballs sorts before the full sell path.
	p1 := byName(t, scs, "path_1_OutOfGumballs")
	if len(p1.Events) != 0 {
		t.Errorf("path_1 events = %v, want none", p1.Events)
	}
	p2 := byName(t, scs, "path_2_OutOfGumballs")
	if !reflect.DeepEqual(p2.Events, []string{"insertQuarter", "turnCrank"}) {
		t.Errorf("path_2 events = %v", p2.Events)
	}
}

func TestSynthesizeGumballGuardCombos(t *testing.T) {
	scs, _ := synthesize(t, gumballSource)

	// Reset-time guard split.
	sc := byName(t, scs, "guards_initial_completion_1")
	if sc.Expected.Name != "NoQuarter" || len(sc.Outcomes) != 1 || !sc.Outcomes[0].Value {
		t.Errorf("combo 1 = expected %s outcomes %v", sc.Expected, sc.Outcomes)
	}
	sc = byName(t, scs, "guards_initial_completion_2")
	if sc.Expected.Name != "OutOfGumballs" {
		t.Errorf("combo 2 expected = %s", sc.Expected)
	}

	// Post-sale guard split: reached via the sell prologue, whose
	// reset-time guard must also be pinned true.
	sc = byName(t, scs, "guards_GumballSold_completion_2")
	if !reflect.DeepEqual(sc.Events, []string{"insertQuarter", "turnCrank"}) {
		t.Errorf("events = %v", sc.Events)
	}
	if sc.Expected.Name != "OutOfGumballs" {
		t.Errorf("expected = %s", sc.Expected)
	}
	pinnedPrologue := false
	for _, o := range sc.Outcomes {
		if o.Transition.Source.Kind == ir.InitialPseudo && o.Value {
			pinnedPrologue = true
		}
	}
	if !pinnedPrologue {
		t.Errorf("prologue guard not pinned true: %v", sc.Outcomes)
	}

	// With every competing guard false the machine stays put.
	sc = byName(t, scs, "guards_GumballSold_completion_none")
	if sc.Expected.Name != "GumballSold" {
		t.Errorf("all-false expected = %s", sc.Expected)
	}
}

// Spec scenario 2: setSpeed, halt quiesces back in Idle through the
// Stopping completion.
func TestSynthesizeMotorHaltCycle(t *testing.T) {
	scs, _ := synthesize(t, motorSource)
	sc := byName(t, scs, "cycle_1_Idle")
	if !reflect.DeepEqual(sc.Events, []string{"setSpeed", "halt"}) {
		t.Errorf("events = %v", sc.Events)
	}
	if sc.Expected.Name != "Idle" {
		t.Errorf("expected = %s", sc.Expected)
	}
}

// Spec scenario 5: the self-loop becomes a cycle scenario and the
// escape to Rich a path scenario.
func TestSynthesizeRichMan(t *testing.T) {
	scs, _ := synthesize(t, richManSource)

	cycle := byName(t, scs, "cycle_1_Pocket")
	if len(cycle.Events) != 0 || cycle.Expected.Name != "Pocket" {
		t.Errorf("cycle = events %v expected %s", cycle.Events, cycle.Expected)
	}

	path := byName(t, scs, "path_1_Rich")
	if path.Expected.Name != "Rich" {
		t.Errorf("path expected = %s", path.Expected)
	}

	combo := byName(t, scs, "guards_Pocket_completion_2")
	if combo.Expected.Name != "Rich" {
		t.Errorf("combo 2 expected = %s", combo.Expected)
	}
	if len(combo.Outcomes) != 2 {
		t.Errorf("combo 2 outcomes = %v, want self-loop false and escape true", combo.Outcomes)
	}
}

func TestSynthesizeOrdering(t *testing.T) {
	scs, _ := synthesize(t, motorSource)
	kindRank := map[Kind]int{InitialState: 0, Cycle: 1, Path: 2, GuardCombination: 3}
	prev := -1
	for _, sc := range scs {
		if kindRank[sc.Kind] < prev {
			t.Fatalf("scenario %s out of order in %v", sc.Name, names(scs))
		}
		prev = kindRank[sc.Kind]
	}

	// Two motor cycles: setSpeed,halt (3 edges) before
	// setSpeed,setSpeed,halt (4 edges).
	c1 := byName(t, scs, "cycle_1_Idle")
	c2 := byName(t, scs, "cycle_2_Idle")
	if len(c1.Events) >= len(c2.Events) {
		t.Errorf("cycles not ordered by length: %v then %v", c1.Events, c2.Events)
	}
}

func TestSynthesizeDeterminism(t *testing.T) {
	for _, source := range []string{gumballSource, motorSource, richManSource} {
		a, _ := synthesize(t, source)
		b, _ := synthesize(t, source)
		if !reflect.DeepEqual(names(a), names(b)) {
			t.Fatalf("scenario listing differs between runs: %v vs %v", names(a), names(b))
		}
		for i := range a {
			if !reflect.DeepEqual(a[i].Events, b[i].Events) {
				t.Errorf("scenario %s events differ between runs", a[i].Name)
			}
		}
	}
}

func TestSynthesizeRespectsBounds(t *testing.T) {
	file, _ := parser.Parse(motorSource)
	m, _ := graph.Build("Test", file)
	scs := Synthesize(m, Options{CMax: 3, LMax: 1})
	for _, sc := range scs {
		if sc.Kind == Cycle && len(sc.Events) > 2 {
			t.Errorf("cycle %s exceeds CMax=3: %v", sc.Name, sc.Events)
		}
	}
}
