// Package verify runs the structural checks of a frozen machine: rules
// 1–7 are independent pure functions composed in a fixed order, and the
// checker collects every diagnostic rather than stopping at the first.
// The caller decides whether the collected set aborts the pipeline
// (ir.HasErrors).
package verify

import (
	"strings"

	"github.com/comalice/fsmgen/internal/graph"
	"github.com/comalice/fsmgen/internal/ir"
)

// Check runs all structural rules against m and returns the collected
// diagnostics in rule order. Guard bodies are never inspected; mutual
// exclusion between guards is out of scope.
func Check(m *ir.Machine) []ir.Diagnostic {
	var diags []ir.Diagnostic
	diags = append(diags, checkInitial(m)...)
	if m.Initial != nil {
		diags = append(diags, checkReachability(m)...)
	}
	diags = append(diags, checkSinks(m)...)
	diags = append(diags, checkAtomicCycles(m)...)
	diags = append(diags, checkDeterminism(m)...)
	diags = append(diags, checkIdentifiers(m)...)
	diags = append(diags, checkInitialConstraints(m)...)
	return diags
}

// Rule 1: exactly one outgoing edge set from the initial pseudo-state.
func checkInitial(m *ir.Machine) []ir.Diagnostic {
	if m.Initial == nil {
		return []ir.Diagnostic{ir.New(ir.StructuralError, 0, 0,
			"missing initial state: no transition from [*] was declared")}
	}
	if len(m.Out(m.Initial)) == 0 {
		return []ir.Diagnostic{ir.New(ir.StructuralError, 0, 0,
			"initial pseudo-state has no outgoing transition")}
	}
	return nil
}

// Rule 2: every state must be reachable from the initial pseudo-state.
func checkReachability(m *ir.Machine) []ir.Diagnostic {
	reachable := map[*ir.State]bool{m.Initial: true}
	stack := []*ir.State{m.Initial}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, t := range m.Out(v) {
			if !reachable[t.Destination] {
				reachable[t.Destination] = true
				stack = append(stack, t.Destination)
			}
		}
	}

	var diags []ir.Diagnostic
	for _, s := range m.States {
		if !reachable[s] {
			line, col := firstMention(m, s)
			diags = append(diags, ir.New(ir.StructuralError, line, col,
				"state %s is unreachable from the initial state", s))
		}
	}
	return diags
}

// Rule 3: a non-final state with no outgoing transition deadlocks; one
// with only guarded outgoing transitions may deadlock depending on
// guard values. Both are warnings.
func checkSinks(m *ir.Machine) []ir.Diagnostic {
	var diags []ir.Diagnostic
	for _, s := range m.States {
		if s.Kind == ir.FinalPseudo || s.Kind == ir.InitialPseudo {
			continue
		}
		out := m.Out(s)
		external := 0
		unguarded := 0
		for _, t := range out {
			if t.Kind == ir.Internal {
				continue
			}
			external++
			if !t.Guard.Present {
				unguarded++
			}
		}
		line, col := firstMention(m, s)
		switch {
		case external == 0:
			diags = append(diags, ir.New(ir.StructuralWarning, line, col,
				"state %s has no outgoing transition: the machine deadlocks there", s))
		case unguarded == 0:
			diags = append(diags, ir.New(ir.StructuralWarning, line, col,
				"state %s has only guarded outgoing transitions: possible deadlock", s))
		}
	}
	return diags
}

// Rule 4: a simple cycle composed entirely of completion transitions is
// an infinite loop at runtime: an error when every edge is unguarded,
// a warning when guards might break the loop.
func checkAtomicCycles(m *ir.Machine) []ir.Diagnostic {
	var diags []ir.Diagnostic
	for _, cycle := range graph.SimpleCycles(m, len(m.States)) {
		allCompletion := true
		anyGuard := false
		for _, t := range cycle {
			if t.Kind != ir.Completion {
				allCompletion = false
				break
			}
			if t.Guard.Present {
				anyGuard = true
			}
		}
		if !allCompletion {
			continue
		}
		first := cycle[0]
		if anyGuard {
			diags = append(diags, ir.NewWithSeverity(ir.StructuralWarning, ir.SeverityWarning,
				first.Line, first.Column,
				"completion-transition cycle through %s may loop forever depending on guard values",
				cycleDesc(cycle)))
		} else {
			diags = append(diags, ir.New(ir.StructuralError, first.Line, first.Column,
				"unguarded completion-transition cycle through %s loops forever", cycleDesc(cycle)))
		}
	}
	return diags
}

// Rule 5: for a (state, event) pair with several outgoing transitions,
// at most one may be unguarded.
func checkDeterminism(m *ir.Machine) []ir.Diagnostic {
	var diags []ir.Diagnostic
	for _, s := range m.States {
		byEvent := map[string][]*ir.Transition{}
		var order []string
		for _, t := range m.Out(s) {
			name := t.EventName()
			if _, ok := byEvent[name]; !ok {
				order = append(order, name)
			}
			byEvent[name] = append(byEvent[name], t)
		}
		for _, name := range order {
			group := byEvent[name]
			if len(group) < 2 {
				continue
			}
			unguarded := 0
			for _, t := range group {
				if !t.Guard.Present {
					unguarded++
				}
			}
			if unguarded > 1 {
				t := group[1]
				diags = append(diags, ir.New(ir.StructuralError, t.Line, t.Column,
					"non-deterministic transitions from %s on %s: %d of them are unguarded",
					s, eventDesc(name), unguarded))
			}
		}
	}
	return diags
}

// Rule 6: state and event identifiers must match the target-language
// identifier syntax. Violations are warnings because the backend may be
// able to escape them.
func checkIdentifiers(m *ir.Machine) []ir.Diagnostic {
	var diags []ir.Diagnostic
	for _, s := range m.States {
		if s.Kind != ir.Normal {
			continue
		}
		if !isIdent(s.Name) {
			line, col := firstMention(m, s)
			diags = append(diags, ir.New(ir.StructuralWarning, line, col,
				"state name %q is not a valid identifier; the backend must escape it", s.Name))
		}
	}
	seen := map[string]bool{}
	for _, t := range m.Transitions {
		name := t.EventName()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if !isIdent(name) {
			diags = append(diags, ir.New(ir.StructuralWarning, t.Line, t.Column,
				"event name %q is not a valid identifier; the backend must escape it", name))
		}
	}
	return diags
}

// Rule 7: the initial pseudo-state has no incoming edges and its
// outgoing transitions carry no event.
func checkInitialConstraints(m *ir.Machine) []ir.Diagnostic {
	if m.Initial == nil {
		return nil
	}
	var diags []ir.Diagnostic
	for _, t := range m.In(m.Initial) {
		diags = append(diags, ir.New(ir.StructuralError, t.Line, t.Column,
			"transition from %s targets the initial pseudo-state", t.Source))
	}
	for _, t := range m.Out(m.Initial) {
		if t.EventName() != "" {
			diags = append(diags, ir.New(ir.StructuralError, t.Line, t.Column,
				"transition from the initial pseudo-state carries event %s; initial transitions are evaluated on reset and must be completion transitions",
				t.EventName()))
		}
	}
	return diags
}

func isIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// firstMention reports the position of the earliest transition touching
// s, so rules about a state can still point somewhere useful in the
// source text.
func firstMention(m *ir.Machine, s *ir.State) (line, col int) {
	for _, t := range m.Transitions {
		if t.Source == s || t.Destination == s {
			return t.Line, t.Column
		}
	}
	return 0, 0
}

func cycleDesc(cycle []*ir.Transition) string {
	var names []string
	for _, t := range cycle {
		names = append(names, t.Source.String())
	}
	names = append(names, cycle[0].Source.String())
	return strings.Join(names, " -> ")
}

func eventDesc(name string) string {
	if name == "" {
		return "completion"
	}
	return "event " + name
}
