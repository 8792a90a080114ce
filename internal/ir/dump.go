package ir

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Dump is the serializable, pointer-free snapshot of a Machine: states
// and transitions reference each other by ID instead of by Go pointer,
// so it round-trips through YAML without hitting reference cycles. It
// exists to back the CLI's --dump-ir flag; nothing in the core pipeline
// reads a Dump back in.
type Dump struct {
	Name        string            `yaml:"name" json:"name"`
	States      []DumpState       `yaml:"states" json:"states"`
	Transitions []DumpTransition  `yaml:"transitions" json:"transitions"`
	Extras      map[string]string `yaml:"extras,omitempty" json:"extras,omitempty"`
}

// DumpState is one State flattened for serialization.
type DumpState struct {
	ID      int    `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Kind    string `yaml:"kind" json:"kind"`
	Entry   string `yaml:"entry,omitempty" json:"entry,omitempty"`
	Exit    string `yaml:"exit,omitempty" json:"exit,omitempty"`
	Comment string `yaml:"comment,omitempty" json:"comment,omitempty"`
}

// DumpTransition is one Transition flattened for serialization, states
// referenced by ID rather than by pointer.
type DumpTransition struct {
	Source      int    `yaml:"source" json:"source"`
	Destination int    `yaml:"destination" json:"destination"`
	Event       string `yaml:"event,omitempty" json:"event,omitempty"`
	Guard       string `yaml:"guard,omitempty" json:"guard,omitempty"`
	Action      string `yaml:"action,omitempty" json:"action,omitempty"`
	Kind        string `yaml:"kind" json:"kind"`
}

var slotNames = map[ExtraSlot]string{
	SlotHeader: "header",
	SlotFooter: "footer",
	SlotParam:  "param",
	SlotCons:   "cons",
	SlotInit:   "init",
	SlotCode:   "code",
	SlotTest:   "test",
	SlotBrief:  "brief",
}

// ToDump flattens m into its serializable form, preserving the insertion
// order of both States and Transitions.
func (m *Machine) ToDump() Dump {
	d := Dump{Name: m.Name}
	for _, s := range m.States {
		d.States = append(d.States, DumpState{
			ID:      s.ID,
			Name:    s.Name,
			Kind:    s.Kind.String(),
			Entry:   s.Entry.Text,
			Exit:    s.Exit.Text,
			Comment: s.Comment,
		})
	}
	for _, t := range m.Transitions {
		d.Transitions = append(d.Transitions, DumpTransition{
			Source:      t.Source.ID,
			Destination: t.Destination.ID,
			Event:       t.EventName(),
			Guard:       t.Guard.Text,
			Action:      t.Action.Text,
			Kind:        t.Kind.String(),
		})
	}
	if len(m.Extras) > 0 {
		d.Extras = make(map[string]string, len(m.Extras))
		for slot, text := range m.Extras {
			d.Extras[slotNames[slot]] = text
		}
	}
	return d
}

// MarshalYAML renders the Machine's Dump form as YAML.
func (m *Machine) MarshalYAML() ([]byte, error) {
	data, err := yaml.Marshal(m.ToDump())
	if err != nil {
		return nil, fmt.Errorf("marshal machine %q: %w", m.Name, err)
	}
	return data, nil
}
