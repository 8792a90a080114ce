// Package ir defines the typed intermediate representation the graph
// builder produces, the verifier checks, the scenario synthesizer walks,
// and the emitter renders. Entities are frozen once built: everything
// downstream of internal/graph only reads them.
package ir

import "fmt"

// StateKind distinguishes the two pseudo-state variants from an ordinary,
// named state. Modeling them as a closed enum (rather than a magic
// identifier string such as "[*]") keeps initial/final handling in the
// rest of the pipeline a type switch instead of a string comparison.
type StateKind int

const (
	Normal StateKind = iota
	InitialPseudo
	FinalPseudo
)

func (k StateKind) String() string {
	switch k {
	case InitialPseudo:
		return "initial"
	case FinalPseudo:
		return "final"
	default:
		return "normal"
	}
}

// Fragment is an opaque, possibly-absent blob of target-language text:
// a guard expression, an action statement sequence, or an entry/exit
// body. The core never parses Fragment.Text; Present distinguishes "no
// guard was written" (always true / no-op) from "an empty guard/action
// was written" where that distinction matters to a caller.
type Fragment struct {
	Present bool
	Text    string
}

// EmptyFragment is the canonical absent fragment.
var EmptyFragment = Fragment{}

// TextFragment wraps literal text as a present Fragment.
func TextFragment(text string) Fragment {
	return Fragment{Present: true, Text: text}
}

// State is one vertex of the machine's directed multigraph.
type State struct {
	ID      int // assigned in first-mention order; stable across runs
	Name    string
	Kind    StateKind
	Entry   Fragment
	Exit    Fragment
	Comment string

	// Reactions holds InternalReaction transitions scoped to this state
	// (Source == Destination == this state, Kind == Internal).
	Reactions []*Transition
}

func (s *State) String() string {
	if s.Kind != Normal {
		return fmt.Sprintf("[*](%s)", s.Kind)
	}
	return s.Name
}

// AppendEntry concatenates an additional entry-action body, preserving
// declaration order across repeated entry declarations for the same
// state.
func (s *State) AppendEntry(text string) {
	if !s.Entry.Present {
		s.Entry = TextFragment(text)
		return
	}
	s.Entry.Text += text
}

// AppendExit concatenates an additional exit-action body in declaration
// order.
func (s *State) AppendExit(text string) {
	if !s.Exit.Present {
		s.Exit = TextFragment(text)
		return
	}
	s.Exit.Text += text
}
