package ir

import (
	"bytes"
	"fmt"
	"strings"
)

// ExportDOT renders the machine as Graphviz DOT source for quick visual
// inspection of what the graph builder produced. States render in
// declaration order and transitions in declaration order, so the output
// is stable across runs.
func (m *Machine) ExportDOT() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %q {\n", m.Name)
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, fontsize=10, style=rounded];\n")
	buf.WriteString("  edge [fontsize=9];\n")

	for _, s := range m.States {
		switch s.Kind {
		case InitialPseudo:
			fmt.Fprintf(&buf, "  %q [shape=point, width=0.2];\n", dotID(s))
		case FinalPseudo:
			fmt.Fprintf(&buf, "  %q [shape=doublecircle, label=\"\", width=0.15];\n", dotID(s))
		default:
			label := s.Name
			if s.Comment != "" {
				label += "\\n" + escapeDOT(s.Comment)
			}
			fmt.Fprintf(&buf, "  %q [label=\"%s\"];\n", dotID(s), label)
		}
	}

	for _, t := range m.Transitions {
		fmt.Fprintf(&buf, "  %q -> %q [label=\"%s\"];\n",
			dotID(t.Source), dotID(t.Destination), escapeDOT(edgeLabel(t)))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func dotID(s *State) string {
	switch s.Kind {
	case InitialPseudo:
		return "__initial"
	case FinalPseudo:
		return "__final"
	default:
		return s.Name
	}
}

func edgeLabel(t *Transition) string {
	var parts []string
	if name := t.EventName(); name != "" {
		parts = append(parts, name)
	}
	if t.Guard.Present {
		parts = append(parts, "["+t.Guard.Text+"]")
	}
	if t.Action.Present {
		parts = append(parts, "/ "+t.Action.Text)
	}
	return strings.Join(parts, " ")
}

func escapeDOT(s string) string {
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.ReplaceAll(s, "\n", `\n`)
}
