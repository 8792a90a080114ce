// Package graph folds a parsed AST into the typed directed multigraph
// (ir.Machine) the rest of the pipeline operates on. It owns
// state interning, arrow-direction normalization, entry/exit alias
// folding, embedded-code slot binding, and the ShapeErrors for duplicate
// edges and unknown state-declaration keywords; structural checks are
// left for the verifier.
package graph

import (
	"strings"

	"github.com/comalice/fsmgen/internal/ir"
	"github.com/comalice/fsmgen/internal/parser"
)

var slotByTag = map[string]ir.ExtraSlot{
	"header": ir.SlotHeader,
	"footer": ir.SlotFooter,
	"param":  ir.SlotParam,
	"cons":   ir.SlotCons,
	"init":   ir.SlotInit,
	"code":   ir.SlotCode,
	"test":   ir.SlotTest,
	"brief":  ir.SlotBrief,
}

type edgeKey struct {
	source, dest int
	event        string
}

// Builder accumulates a Machine from a File's declarations in source
// order. The byName map and the sequential ID counter are what give the
// resulting Machine its deterministic, insertion-ordered shape: two
// Builds over the same source intern states in the same order every
// time, which downstream output stability depends on.
type Builder struct {
	machine  *ir.Machine
	byName   map[string]*ir.State
	edgeSeen map[edgeKey]bool
	nextID   int
}

// Build folds file into a Machine named name. It returns as soon as it
// can no longer safely continue: building aborts on the first
// ShapeError.
func Build(name string, file *parser.File) (*ir.Machine, []ir.Diagnostic) {
	b := &Builder{
		machine:  ir.NewMachine(name),
		byName:   make(map[string]*ir.State),
		edgeSeen: make(map[edgeKey]bool),
	}

	for _, decl := range file.Declarations {
		var diag *ir.Diagnostic
		switch d := decl.(type) {
		case parser.TransitionDecl:
			diag = b.foldTransition(d)
		case parser.StateDecl:
			diag = b.foldState(d)
		case parser.DirectiveDecl:
			b.foldDirective(d)
		}
		if diag != nil {
			return b.machine, []ir.Diagnostic{*diag}
		}
	}

	return b.machine, nil
}

// newEvent splits an event token of the form "name(params)" into its
// name and opaque parameter-list text. The params text is carried
// through untouched; the core never inspects it.
func newEvent(token string) *ir.Event {
	if i := strings.IndexByte(token, '('); i >= 0 && strings.HasSuffix(token, ")") {
		return &ir.Event{Name: token[:i], Params: token[i+1 : len(token)-1]}
	}
	return &ir.Event{Name: token}
}

func (b *Builder) intern(name string) *ir.State {
	if s, ok := b.byName[name]; ok {
		return s
	}
	s := &ir.State{ID: b.nextID, Name: name, Kind: ir.Normal}
	b.nextID++
	b.byName[name] = s
	b.machine.States = append(b.machine.States, s)
	return s
}

// resolveRole resolves one side of a transition to a *ir.State given the
// role ("source" or "dest") it plays after arrow-direction
// normalization. This is what lets "[*]" mean Initial or Final
// depending on which end of the resolved edge it lands on, rather than
// its raw left/right position in the source text.
func (b *Builder) resolveRole(ref parser.StateRef, role string) *ir.State {
	if !ref.IsPseudo {
		return b.intern(ref.Name)
	}
	if role == "source" {
		if b.machine.Initial == nil {
			b.machine.Initial = &ir.State{ID: b.nextID, Kind: ir.InitialPseudo}
			b.nextID++
			b.machine.States = append(b.machine.States, b.machine.Initial)
		}
		return b.machine.Initial
	}
	if b.machine.Final == nil {
		b.machine.Final = &ir.State{ID: b.nextID, Kind: ir.FinalPseudo}
		b.nextID++
		b.machine.States = append(b.machine.States, b.machine.Final)
	}
	return b.machine.Final
}

func (b *Builder) foldTransition(d parser.TransitionDecl) *ir.Diagnostic {
	source := d.LHS
	dest := d.RHS
	if d.Arrow == "<-" || d.Arrow == "<--" {
		source, dest = d.RHS, d.LHS
	}

	srcState := b.resolveRole(source, "source")
	dstState := b.resolveRole(dest, "dest")

	kind := ir.External
	var event *ir.Event
	switch {
	case d.Event == "":
		kind = ir.Completion
	case srcState == dstState:
		kind = ir.Internal
		event = newEvent(d.Event)
	default:
		event = newEvent(d.Event)
	}

	key := edgeKey{source: srcState.ID, dest: dstState.ID, event: d.Event}
	if b.edgeSeen[key] {
		diag := ir.New(ir.ShapeError, d.Line, d.Column,
			"duplicate transition (%s, %s, %q): the core rejects parallel edges with the same event label on the same ordered pair",
			srcState, dstState, d.Event)
		return &diag
	}
	b.edgeSeen[key] = true

	b.machine.Transitions = append(b.machine.Transitions, &ir.Transition{
		Source:      srcState,
		Destination: dstState,
		Event:       event,
		Guard:       d.Guard,
		Action:      d.Action,
		Kind:        kind,
		Line:        d.Line,
		Column:      d.Column,
	})
	return nil
}

func (b *Builder) foldState(d parser.StateDecl) *ir.Diagnostic {
	s := b.intern(d.State)

	switch d.Kind {
	case parser.KindEntry:
		s.AppendEntry(d.Body)
	case parser.KindExit:
		s.AppendExit(d.Body)
	case parser.KindComment:
		if s.Comment != "" {
			s.Comment += "\n" + d.Body
		} else {
			s.Comment = d.Body
		}
	case parser.KindOn:
		key := edgeKey{source: s.ID, dest: s.ID, event: d.Event}
		if b.edgeSeen[key] {
			diag := ir.New(ir.ShapeError, d.Line, d.Column,
				"duplicate internal reaction (%s, %q)", s, d.Event)
			return &diag
		}
		b.edgeSeen[key] = true
		t := &ir.Transition{
			Source:      s,
			Destination: s,
			Event:       newEvent(d.Event),
			Guard:       d.Guard,
			Action:      ir.TextFragment(d.Body),
			Kind:        ir.Internal,
			Line:        d.Line,
			Column:      d.Column,
		}
		b.machine.Transitions = append(b.machine.Transitions, t)
		s.Reactions = append(s.Reactions, t)
	case parser.KindUnknown:
		diag := ir.New(ir.ShapeError, d.Line, d.Column, "unknown state-declaration keyword %q", d.RawKind)
		return &diag
	}
	return nil
}

func (b *Builder) foldDirective(d parser.DirectiveDecl) {
	slot, ok := slotByTag[d.Tag]
	if !ok {
		return
	}
	if existing, ok := b.machine.Extras[slot]; ok && existing != "" {
		b.machine.Extras[slot] = existing + "\n" + d.Body
	} else {
		b.machine.Extras[slot] = d.Body
	}
}
