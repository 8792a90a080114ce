// Package parser performs recursive-descent parsing of the token stream
// internal/lexer produces, yielding an AST of declarations.
// Guard and action bodies are recognized only by their structural
// boundaries (matching brackets, a trailing slash); their interior text
// is never interpreted, per the data model's opaque-fragment design note.
package parser

import "github.com/comalice/fsmgen/internal/ir"

// StateRef is one side of a transition declaration: either a named
// state or the "[*]" pseudo-state token, disambiguated from Initial vs.
// Final by its position (source side vs. destination side) once the
// graph builder normalizes arrow direction.
type StateRef struct {
	Name    string
	IsPseudo bool
	Line, Column int
}

// TransitionDecl is `LHS ARROW RHS ':' label`. Arrow direction is
// carried verbatim here and normalized by the graph builder, not by the
// parser: "A <- B" and "A <-- B" become edges
// B → A only once the builder folds declarations into the graph.
type TransitionDecl struct {
	LHS         StateRef
	Arrow       string
	RHS         StateRef
	Event       string // "" for a completion transition
	Guard       ir.Fragment
	Action      ir.Fragment
	Line, Column int
}

// StateDeclKind enumerates the recognized forms of a state declaration's
// kind word(s). Unknown carries the raw keyword the parser could not
// classify. Classifying it further (is this a genuinely unknown
// keyword, i.e. a ShapeError) is the graph builder's job, not the
// parser's: ParseError is for text the grammar rejects, ShapeError for
// text it accepts but cannot mean anything.
type StateDeclKind int

const (
	KindEntry StateDeclKind = iota
	KindExit
	KindComment
	KindOn
	KindUnknown
)

// StateDecl is `STATE : kind '/' body`.
type StateDecl struct {
	State        string
	Kind         StateDeclKind
	RawKind      string // the offending keyword, set when Kind == KindUnknown
	Event        string // set when Kind == KindOn
	Guard        ir.Fragment
	Body         string
	Line, Column int
}

// DirectiveDecl is an embedded-code directive line: '[tag] body.
type DirectiveDecl struct {
	Tag          string
	Body         string
	Line, Column int
}

// Declaration is the sum type over the three declaration forms the
// grammar accepts.
type Declaration any

// File is the root AST node: every declaration parsed from one source
// file, in source order.
type File struct {
	Declarations []Declaration
}
