// Package scenario walks the verified machine and enumerates the
// bounded test suite the emitter turns into generated test cases: the
// reset scenario, simple cycles, source-to-sink paths, and one scenario
// per guard combination on states with competing guarded transitions.
//
// Everything here iterates states in ID order and transitions in
// declaration order, and the final listing is sorted with explicit
// comparators, so two runs over the same machine produce identical
// scenario listings.
package scenario

import (
	"fmt"

	"github.com/comalice/fsmgen/internal/graph"
	"github.com/comalice/fsmgen/internal/ir"
)

// Kind classifies how a scenario was derived.
type Kind int

const (
	InitialState Kind = iota
	Cycle
	Path
	GuardCombination
)

func (k Kind) String() string {
	switch k {
	case InitialState:
		return "initial"
	case Cycle:
		return "cycle"
	case Path:
		return "path"
	default:
		return "guards"
	}
}

// GuardOutcome pins the boolean result of one transition's guard for the
// duration of a stubbed scenario. The emitter turns these into guard
// overrides on a test double of the generated machine.
type GuardOutcome struct {
	Transition *ir.Transition
	Value      bool
}

// Scenario is one synthesized test case: the external events to fire in
// order, and the state the machine must be in afterwards. The reset
// scenario carries a set of acceptable states instead of a single one,
// because the initial guards cannot be evaluated statically. A scenario
// with Outcomes runs against a guard-stubbed double; one without runs
// against the real machine.
type Scenario struct {
	Kind        Kind
	Name        string
	Events      []string
	Expected    *ir.State
	ExpectedSet []*ir.State
	Outcomes    []GuardOutcome
}

// Options bounds the enumeration. Zero values select the defaults:
// CMax = vertex count, LMax = 2x vertex count.
type Options struct {
	CMax int
	LMax int
}

// Synthesize enumerates the scenario suite for m in its fixed emission
// order: the reset scenario first, then cycles in ascending (length,
// lexicographic event sequence), then paths in the same order, then
// guard-combination scenarios in (state, event, declaration) order.
func Synthesize(m *ir.Machine, opts Options) []Scenario {
	if opts.CMax <= 0 {
		opts.CMax = len(m.States)
	}
	if opts.LMax <= 0 {
		opts.LMax = 2 * len(m.States)
	}

	scs := []Scenario{initialScenario(m)}
	scs = append(scs, cycleScenarios(m, opts.CMax)...)
	scs = append(scs, pathScenarios(m, opts.LMax)...)
	scs = append(scs, guardScenarios(m)...)
	return scs
}

func initialScenario(m *ir.Machine) Scenario {
	s := Scenario{Kind: InitialState, Name: "initial_state"}
	seen := map[*ir.State]bool{}
	for _, t := range m.Out(m.Initial) {
		if !seen[t.Destination] {
			seen[t.Destination] = true
			s.ExpectedSet = append(s.ExpectedSet, t.Destination)
		}
	}
	return s
}

// ranked pairs a scenario with its sort key before names are assigned.
type ranked struct {
	length int
	sc     Scenario
}

func sortRanked(rs []ranked) {
	// Insertion sort keeps this dependency-free and stable; suites are
	// small by construction (bounded enumeration).
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rankedLess(rs[j], rs[j-1]); j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
}

func rankedLess(a, b ranked) bool {
	if a.length != b.length {
		return a.length < b.length
	}
	ae, be := a.sc.Events, b.sc.Events
	for i := 0; i < len(ae) && i < len(be); i++ {
		if ae[i] != be[i] {
			return ae[i] < be[i]
		}
	}
	return len(ae) < len(be)
}

func cycleScenarios(m *ir.Machine, cmax int) []Scenario {
	var rs []ranked
	for _, cycle := range graph.SimpleCycles(m, cmax) {
		entry := cycle[0].Source
		if entry.Kind != ir.Normal {
			continue
		}
		prologue := graph.ShortestPath(m, m.Initial, entry)
		if prologue == nil {
			continue
		}
		sc := Scenario{
			Kind:     Cycle,
			Events:   append(externalEvents(prologue), externalEvents(cycle)...),
			Expected: entry,
		}
		rs = append(rs, ranked{length: len(cycle), sc: sc})
	}
	sortRanked(rs)

	out := make([]Scenario, len(rs))
	for i, r := range rs {
		r.sc.Name = fmt.Sprintf("cycle_%d_%s", i+1, r.sc.Expected.Name)
		out[i] = r.sc
	}
	return out
}

func pathScenarios(m *ir.Machine, lmax int) []Scenario {
	isEnd := func(s *ir.State) bool {
		if s.Kind == ir.FinalPseudo {
			return true
		}
		if s.Kind == ir.InitialPseudo {
			return false
		}
		for _, t := range m.Out(s) {
			if t.Destination != s {
				return false
			}
		}
		return true
	}

	var rs []ranked
	for _, path := range graph.SimplePaths(m, m.Initial, lmax, isEnd) {
		last := path[len(path)-1].Destination
		sc := Scenario{
			Kind:     Path,
			Events:   externalEvents(path),
			Expected: last,
		}
		rs = append(rs, ranked{length: len(path), sc: sc})
	}
	sortRanked(rs)

	out := make([]Scenario, len(rs))
	for i, r := range rs {
		name := "end"
		if r.sc.Expected.Kind == ir.Normal {
			name = r.sc.Expected.Name
		}
		r.sc.Name = fmt.Sprintf("path_%d_%s", i+1, name)
		out[i] = r.sc
	}
	return out
}

func guardScenarios(m *ir.Machine) []Scenario {
	var out []Scenario
	for _, s := range m.States {
		if s.Kind == ir.FinalPseudo {
			continue
		}
		byEvent := map[string][]*ir.Transition{}
		var order []string
		for _, t := range m.Out(s) {
			name := t.EventName()
			if _, ok := byEvent[name]; !ok {
				order = append(order, name)
			}
			byEvent[name] = append(byEvent[name], t)
		}

		for _, event := range order {
			group := byEvent[event]
			if len(group) < 2 || !anyGuarded(group) {
				continue
			}
			out = append(out, comboScenarios(m, s, event, group)...)
		}
	}
	return out
}

// comboScenarios emits one scenario per candidate transition in a
// competing (state, event) group (the candidate's guard forced true,
// every earlier-declared candidate's guard forced false) plus, when
// every candidate is guarded, the all-false scenario asserting the
// machine stays put.
func comboScenarios(m *ir.Machine, s *ir.State, event string, group []*ir.Transition) []Scenario {
	prologue := graph.ShortestPath(m, m.Initial, s)
	if prologue == nil {
		return nil
	}
	base := newOutcomeSet()
	if !driveOutcomes(m, prologue, base) {
		return nil
	}
	if event != "" && !restsAt(m, s, base) {
		return nil
	}
	events := externalEvents(prologue)
	if event != "" {
		events = append(events, event)
	}

	eventName := event
	if eventName == "" {
		eventName = "completion"
	}
	stateName := s.Name
	if s.Kind == ir.InitialPseudo {
		stateName = "initial"
	}

	var out []Scenario
	caseNo := 0
	for i, cand := range group {
		oc := base.clone()
		ok := true
		for _, earlier := range group[:i] {
			if !earlier.Guard.Present || !oc.force(earlier, false) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		if cand.Guard.Present && !oc.force(cand, true) {
			continue
		}
		caseNo++
		out = append(out, Scenario{
			Kind:     GuardCombination,
			Name:     fmt.Sprintf("guards_%s_%s_%d", stateName, eventName, caseNo),
			Events:   append([]string{}, events...),
			Expected: settle(m, cand.Destination, oc),
			Outcomes: oc.list(),
		})
	}

	if allGuarded(group) {
		oc := base.clone()
		ok := true
		for _, cand := range group {
			if !oc.force(cand, false) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, Scenario{
				Kind:     GuardCombination,
				Name:     fmt.Sprintf("guards_%s_%s_none", stateName, eventName),
				Events:   append([]string{}, events...),
				Expected: s,
				Outcomes: oc.list(),
			})
		}
	}
	return out
}

// driveOutcomes records the guard outcomes needed to walk the given
// edge sequence on a stubbed machine: each edge's own guard true, every
// earlier-declared competing edge's guard false. It reports false when
// the walk cannot be forced (an earlier unguarded competitor always
// wins, or a state on the way has an unguarded completion that would
// drag the machine elsewhere).
func driveOutcomes(m *ir.Machine, edges []*ir.Transition, oc *outcomeSet) bool {
	for _, e := range edges {
		for _, rival := range m.OutOnEvent(e.Source, e.EventName()) {
			if rival == e {
				break
			}
			if !rival.Guard.Present || !oc.force(rival, false) {
				return false
			}
		}
		if e.Guard.Present && !oc.force(e, true) {
			return false
		}
		// Firing an external event from e.Source means the machine must
		// first come to rest there.
		if e.Kind == ir.External || e.Kind == ir.Internal {
			if !restsAt(m, e.Source, oc) {
				return false
			}
		}
	}
	return true
}

// restsAt reports whether a stubbed machine can stay in s: every
// completion transition out of s must be guarded and not forced true.
func restsAt(m *ir.Machine, s *ir.State, oc *outcomeSet) bool {
	for _, t := range m.OutOnEvent(s, "") {
		if !t.Guard.Present {
			return false
		}
		if v, forced := oc.value(t); forced && v {
			return false
		}
	}
	return true
}

// settle follows the completion transitions a stubbed machine would
// take after landing in s: unforced guards read false on the stub, so
// only unguarded completions and explicitly forced-true ones fire.
func settle(m *ir.Machine, s *ir.State, oc *outcomeSet) *ir.State {
	visited := map[*ir.State]bool{}
	for !visited[s] {
		visited[s] = true
		next := s
		for _, t := range m.OutOnEvent(s, "") {
			fires := !t.Guard.Present
			if v, forced := oc.value(t); forced {
				fires = v
			} else if t.Guard.Present {
				fires = false
			}
			if fires {
				next = t.Destination
				break
			}
		}
		if next == s {
			break
		}
		s = next
	}
	return s
}

func externalEvents(edges []*ir.Transition) []string {
	var events []string
	for _, e := range edges {
		if name := e.EventName(); name != "" {
			events = append(events, name)
		}
	}
	return events
}

func anyGuarded(group []*ir.Transition) bool {
	for _, t := range group {
		if t.Guard.Present {
			return true
		}
	}
	return false
}

func allGuarded(group []*ir.Transition) bool {
	for _, t := range group {
		if !t.Guard.Present {
			return false
		}
	}
	return true
}

// outcomeSet accumulates forced guard values with conflict detection:
// forcing the same transition's guard both ways marks the scenario
// unforceable and it is dropped.
type outcomeSet struct {
	order []*ir.Transition
	val   map[*ir.Transition]bool
}

func newOutcomeSet() *outcomeSet {
	return &outcomeSet{val: map[*ir.Transition]bool{}}
}

func (o *outcomeSet) force(t *ir.Transition, v bool) bool {
	if prev, ok := o.val[t]; ok {
		return prev == v
	}
	o.val[t] = v
	o.order = append(o.order, t)
	return true
}

func (o *outcomeSet) value(t *ir.Transition) (bool, bool) {
	v, ok := o.val[t]
	return v, ok
}

func (o *outcomeSet) clone() *outcomeSet {
	c := newOutcomeSet()
	for _, t := range o.order {
		c.force(t, o.val[t])
	}
	return c
}

func (o *outcomeSet) list() []GuardOutcome {
	var list []GuardOutcome
	for _, t := range o.order {
		list = append(list, GuardOutcome{Transition: t, Value: o.val[t]})
	}
	return list
}
