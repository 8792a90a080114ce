package emit

import (
	"strings"

	"github.com/comalice/fsmgen/internal/ir"
	"github.com/comalice/fsmgen/internal/scenario"
)

// Model is the language-neutral rendering of one machine: the state
// enumeration in its final order, the per-event sparse dispatch tables,
// the completion table, the guard/action fragment lists, and the
// scenario suite with event names already mapped to method names.
// Backends read it; nothing mutates it after BuildModel returns.
type Model struct {
	TypeName string
	FileBase string // prefix + basename, without extension
	RunID    string

	States     []StateModel // enum order; len(States) is the MAX_STATES value
	InitialIdx int
	FinalIdx   int // -1 when the source declares no final pseudo-state

	Events     []EventModel
	Completion Table

	Guards  []FragmentModel
	Actions []FragmentModel

	Scenarios []ScenarioModel

	Extras map[ir.ExtraSlot]string
}

// StateModel is one enumerant.
type StateModel struct {
	Enumerant string
	Name      string // original source name; pseudo-states get a display name
	Comment   string
	HasEntry  bool
	HasExit   bool
	Entry     string
	Exit      string
}

// EventModel is one public event operation with its dispatch table.
type EventModel struct {
	Method string
	Name   string
	Params string
	Table  Table
}

// Candidate is one row of a dispatch table: a destination enumerant (or
// a reserved marker) plus optional guard/action references by index.
type Candidate struct {
	Dest        string
	GuardIndex  int // -1 when unguarded
	ActionIndex int // -1 when no action
	Internal    bool
}

// Table is a flattened per-state candidate list: Rows[First[s] ...
// First[s]+Count[s]] are state s's candidates in declaration order.
// Rows always starts with an ignore sentinel so backends never render a
// zero-length array.
type Table struct {
	Rows  []Candidate
	First []int
	Count []int
}

// FragmentModel is one opaque guard or action body with its stable
// index (guard_N / action_N in the emitted source).
type FragmentModel struct {
	Index int
	Text  string
}

// ScenarioModel is one generated test case with event names resolved to
// method names and states resolved to enumerants.
type ScenarioModel struct {
	Name        string
	Kind        string
	Calls       []string
	Expected    string   // enumerant; empty when ExpectedSet is used
	ExpectedSet []string // reset scenario only
	Stubbed     bool
	Outcomes    []OutcomeModel
}

// OutcomeModel pins guard_N to a value on the test double.
type OutcomeModel struct {
	GuardIndex int
	Value      bool
}

var slotByName = map[string]ir.ExtraSlot{
	"header": ir.SlotHeader,
	"footer": ir.SlotFooter,
	"param":  ir.SlotParam,
	"cons":   ir.SlotCons,
	"init":   ir.SlotInit,
	"code":   ir.SlotCode,
	"test":   ir.SlotTest,
	"brief":  ir.SlotBrief,
}

// Slot returns the embedded-code slot bound to the given tag name, or
// "" when the source never filled it. Backends call this from their
// templates.
func (m *Model) Slot(name string) string {
	return m.Extras[slotByName[name]]
}

// reservedEnumerants are the markers every backend appends to the state
// enumeration; user states escaping onto them are uniquified away.
var reservedEnumerants = []string{"MAX_STATES", "IGNORING_EVENT", "CANNOT_HAPPEN"}

// BuildModel lowers the machine and its scenarios into the render
// model, escaping every identifier through the backend exactly once.
func BuildModel(b Backend, m *ir.Machine, scs []scenario.Scenario, opts Options) (*Model, []ir.Diagnostic) {
	var diags []ir.Diagnostic

	typeName, err := b.EscapeIdentifier(opts.Prefix + opts.Basename)
	if err != nil {
		return nil, append(diags, ir.New(ir.EmitError, 0, 0, "machine name: %s", err))
	}
	model := &Model{
		TypeName: typeName,
		FileBase: opts.Prefix + opts.Basename,
		RunID:    opts.RunID,
		FinalIdx: -1,
		Extras:   m.Extras,
	}

	// Enumerant assignment: normal states in declaration order, then the
	// pseudo-states, then (backend-side) the reserved markers. The
	// uniquifier keeps user names clear of the markers and of each
	// other.
	taken := map[string]bool{}
	for _, r := range reservedEnumerants {
		taken[r] = true
	}
	enumIdx := map[*ir.State]int{}
	addState := func(s *ir.State, name string) *ir.Diagnostic {
		esc, err := b.EscapeIdentifier(name)
		if err != nil {
			d := ir.New(ir.EmitError, 0, 0, "state %s: %s", name, err)
			return &d
		}
		for taken[esc] {
			esc += "_"
		}
		taken[esc] = true
		enumIdx[s] = len(model.States)
		model.States = append(model.States, StateModel{
			Enumerant: esc,
			Name:      name,
			Comment:   s.Comment,
			HasEntry:  s.Entry.Present,
			HasExit:   s.Exit.Present,
			Entry:     s.Entry.Text,
			Exit:      s.Exit.Text,
		})
		return nil
	}
	for _, s := range m.States {
		if s.Kind != ir.Normal {
			continue
		}
		if d := addState(s, s.Name); d != nil {
			return nil, append(diags, *d)
		}
	}
	if d := addState(m.Initial, "InitialState"); d != nil {
		return nil, append(diags, *d)
	}
	model.InitialIdx = enumIdx[m.Initial]
	if m.Final != nil {
		if d := addState(m.Final, "FinalState"); d != nil {
			return nil, append(diags, *d)
		}
		model.FinalIdx = enumIdx[m.Final]
	}

	// Guard and action fragments, indexed in transition declaration
	// order so the emitted guard_N/action_N numbering is stable.
	guardIdx := map[*ir.Transition]int{}
	actionIdx := map[*ir.Transition]int{}
	for _, t := range m.Transitions {
		if t.Guard.Present {
			guardIdx[t] = len(model.Guards)
			model.Guards = append(model.Guards, FragmentModel{Index: len(model.Guards), Text: t.Guard.Text})
		}
		if t.Action.Present {
			actionIdx[t] = len(model.Actions)
			model.Actions = append(model.Actions, FragmentModel{Index: len(model.Actions), Text: t.Action.Text})
		}
	}

	candidate := func(t *ir.Transition) Candidate {
		c := Candidate{
			Dest:        model.States[enumIdx[t.Destination]].Enumerant,
			GuardIndex:  -1,
			ActionIndex: -1,
			Internal:    t.Kind == ir.Internal,
		}
		if i, ok := guardIdx[t]; ok {
			c.GuardIndex = i
		}
		if i, ok := actionIdx[t]; ok {
			c.ActionIndex = i
		}
		return c
	}

	buildTable := func(event string) Table {
		table := Table{
			Rows:  []Candidate{{Dest: "IGNORING_EVENT", GuardIndex: -1, ActionIndex: -1}},
			First: make([]int, len(model.States)),
			Count: make([]int, len(model.States)),
		}
		for _, s := range m.States {
			idx := enumIdx[s]
			if s.Kind == ir.FinalPseudo && event != "" {
				// Events arriving after the machine halted are fatal.
				table.First[idx] = len(table.Rows)
				table.Count[idx] = 1
				table.Rows = append(table.Rows, Candidate{Dest: "CANNOT_HAPPEN", GuardIndex: -1, ActionIndex: -1})
				continue
			}
			group := m.OutOnEvent(s, event)
			if len(group) == 0 {
				continue
			}
			table.First[idx] = len(table.Rows)
			table.Count[idx] = len(group)
			for _, t := range group {
				table.Rows = append(table.Rows, candidate(t))
			}
		}
		return table
	}

	// Event methods in first-occurrence order; the method-name map also
	// serves scenario call resolution below.
	methodOf := map[string]string{}
	for _, name := range m.Events() {
		method, err := b.EscapeIdentifier(name)
		if err != nil {
			return nil, append(diags, ir.New(ir.EmitError, 0, 0, "event %s: %s", name, err))
		}
		for taken[method] {
			method += "_"
		}
		methodOf[name] = method
		params := ""
		for _, t := range m.Transitions {
			if t.Event != nil && t.Event.Name == name && t.Event.Params != "" {
				params = t.Event.Params
				break
			}
		}
		model.Events = append(model.Events, EventModel{
			Method: method,
			Name:   name,
			Params: params,
			Table:  buildTable(name),
		})
	}
	model.Completion = buildTable("")

	for _, sc := range scs {
		sm := ScenarioModel{
			Name:    sanitizeTestName(sc.Name),
			Kind:    sc.Kind.String(),
			Stubbed: len(sc.Outcomes) > 0,
		}
		for _, ev := range sc.Events {
			sm.Calls = append(sm.Calls, methodOf[ev])
		}
		if sc.Expected != nil {
			sm.Expected = model.States[enumIdx[sc.Expected]].Enumerant
		}
		for _, s := range sc.ExpectedSet {
			sm.ExpectedSet = append(sm.ExpectedSet, model.States[enumIdx[s]].Enumerant)
		}
		for _, o := range sc.Outcomes {
			gi, ok := guardIdx[o.Transition]
			if !ok {
				continue
			}
			sm.Outcomes = append(sm.Outcomes, OutcomeModel{GuardIndex: gi, Value: o.Value})
		}
		model.Scenarios = append(model.Scenarios, sm)
	}

	return model, diags
}

func sanitizeTestName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
