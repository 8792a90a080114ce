package ir

// ExtraSlot names one of the embedded-code insertion points of the
// emitted artifacts. Keeping these as a small closed set (rather than a
// map[string]string with ad hoc keys) makes a typo in the graph builder
// a compile error instead of a silently-dropped slot.
type ExtraSlot int

const (
	SlotHeader ExtraSlot = iota
	SlotFooter
	SlotParam
	SlotCons
	SlotInit
	SlotCode
	SlotTest
	SlotBrief
)

// Machine is the root of the typed directed multigraph: an ordered set
// of States and an ordered set of Transitions, plus the embedded-code
// slots bound from '[tag] directives.
//
// States and Transitions are built once by internal/graph, frozen before
// internal/verify runs, and read-only from then on.
// Order of both slices is insertion order from the source text, which is
// what makes scenario synthesis and emission byte-stable across runs.
type Machine struct {
	Name string

	States      []*State
	Transitions []*Transition

	Initial *State // the InitialPseudo vertex, nil until graph-building binds it
	Final   *State // the FinalPseudo vertex, nil if the source never declares one

	Extras map[ExtraSlot]string
}

// NewMachine returns an empty Machine ready for internal/graph to
// populate.
func NewMachine(name string) *Machine {
	return &Machine{
		Name:   name,
		Extras: make(map[ExtraSlot]string),
	}
}

// StateByName returns the Normal state with the given name, or nil.
// Pseudo-states are not addressable by name since the grammar never
// names them.
func (m *Machine) StateByName(name string) *State {
	for _, s := range m.States {
		if s.Kind == Normal && s.Name == name {
			return s
		}
	}
	return nil
}

// Out returns the transitions whose Source is s, in declaration order.
func (m *Machine) Out(s *State) []*Transition {
	var out []*Transition
	for _, t := range m.Transitions {
		if t.Source == s {
			out = append(out, t)
		}
	}
	return out
}

// OutOnEvent returns the subset of Out(s) that fire on the given event
// name ("" selects completion transitions).
func (m *Machine) OutOnEvent(s *State, event string) []*Transition {
	var out []*Transition
	for _, t := range m.Out(s) {
		if t.EventName() == event {
			out = append(out, t)
		}
	}
	return out
}

// In returns the transitions whose Destination is s, in declaration
// order.
func (m *Machine) In(s *State) []*Transition {
	var in []*Transition
	for _, t := range m.Transitions {
		if t.Destination == s {
			in = append(in, t)
		}
	}
	return in
}

// Events returns the distinct external/internal event names appearing in
// the machine, in first-occurrence order.
func (m *Machine) Events() []string {
	seen := make(map[string]bool)
	var names []string
	for _, t := range m.Transitions {
		name := t.EventName()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
