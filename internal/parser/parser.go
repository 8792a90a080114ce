package parser

import (
	"strings"

	"github.com/comalice/fsmgen/internal/ir"
	"github.com/comalice/fsmgen/internal/lexer"
)

// Parse tokenizes and parses source, returning every declaration it
// could recover (skipping to the next line on a local error) plus the
// diagnostics raised along the way. A ParseError on one line does not
// stop the parser from trying the remaining lines; the
// caller decides whether to abort the pipeline based on
// ir.HasErrors(diags).
func Parse(source string) (*File, []ir.Diagnostic) {
	lines, errs := lexer.Scan(source)

	f := &File{}
	var diags []ir.Diagnostic
	for _, e := range errs {
		diags = append(diags, ir.New(ir.ParseError, e.Line, e.Column, "%s", e))
	}
	for _, l := range lines {
		if l.IsQuote {
			if l.TagFound {
				f.Declarations = append(f.Declarations, DirectiveDecl{
					Tag: l.TagName, Body: l.Rest, Line: l.Number, Column: l.RestCol,
				})
			}
			continue // plain comment line: discarded
		}

		decl, d := parseLine(l)
		if d != nil {
			diags = append(diags, *d)
			continue
		}
		f.Declarations = append(f.Declarations, decl)
	}
	return f, diags
}

func parseLine(l lexer.Line) (Declaration, *ir.Diagnostic) {
	arrowIdx := -1
	for i, t := range l.Tokens {
		if t.Kind == lexer.Arrow {
			arrowIdx = i
			break
		}
	}
	if arrowIdx >= 0 {
		return parseTransitionLine(l, arrowIdx)
	}
	return parseStateLine(l)
}

func parseTransitionLine(l lexer.Line, arrowIdx int) (Declaration, *ir.Diagnostic) {
	lhsTokens := l.Tokens[:arrowIdx]
	arrow := l.Tokens[arrowIdx]
	// Everything after the arrow up to (but excluding) the trailing
	// Colon token the lexer appended is the RHS.
	rhsTokens := l.Tokens[arrowIdx+1 : len(l.Tokens)-1]

	lhs, err := parseStateRef(lhsTokens)
	if err != nil {
		d := ir.New(ir.ParseError, l.Number, 1, "%s", err)
		return nil, &d
	}
	rhs, err := parseStateRef(rhsTokens)
	if err != nil {
		d := ir.New(ir.ParseError, l.Number, arrow.Column, "%s", err)
		return nil, &d
	}

	event, guard, action, err := parseLabel(l.Rest, l.Number)
	if err != nil {
		d := ir.New(ir.ParseError, l.Number, l.RestCol, "%s", err)
		return nil, &d
	}

	return TransitionDecl{
		LHS:    lhs,
		Arrow:  arrow.Text,
		RHS:    rhs,
		Event:  event,
		Guard:  guard,
		Action: action,
		Line:   l.Number,
		Column: 1,
	}, nil
}

func parseStateRef(tokens []lexer.Token) (StateRef, error) {
	if len(tokens) == 3 && tokens[0].Kind == lexer.LBracket && tokens[1].Kind == lexer.Star && tokens[2].Kind == lexer.RBracket {
		return StateRef{IsPseudo: true, Line: tokens[0].Line, Column: tokens[0].Column}, nil
	}
	if len(tokens) == 1 && tokens[0].Kind == lexer.Ident {
		return StateRef{Name: tokens[0].Text, Line: tokens[0].Line, Column: tokens[0].Column}, nil
	}
	line, col := 0, 0
	if len(tokens) > 0 {
		line, col = tokens[0].Line, tokens[0].Column
	}
	return StateRef{}, &parseError{line: line, col: col, msg: "expected a state name or '[*]'"}
}

type parseError struct {
	line, col int
	msg       string
}

func (e *parseError) Error() string { return e.msg }

func parseStateLine(l lexer.Line) (Declaration, *ir.Diagnostic) {
	if len(l.Tokens) != 2 || l.Tokens[0].Kind != lexer.Ident || l.Tokens[1].Kind != lexer.Colon {
		d := ir.New(ir.ParseError, l.Number, 1, "malformed state declaration: expected STATE : kind / body")
		return nil, &d
	}
	stateName := l.Tokens[0].Text

	kindPart, bodyPart, hasSlash := splitOnSlash(l.Rest)
	kindPart = strings.TrimSpace(kindPart)
	bodyPart = strings.TrimSpace(bodyPart)
	if !hasSlash {
		// A bare `comment` with no following text is still accepted
		// (it folds to an empty Comment body); everything else
		// requires the '/' body separator.
		if kindPart != "comment" {
			d := ir.New(ir.ParseError, l.Number, l.RestCol, "malformed state declaration: missing '/' before body")
			return nil, &d
		}
	}

	decl := StateDecl{State: stateName, Body: bodyPart, Line: l.Number, Column: 1}

	switch {
	case kindPart == "entry" || kindPart == "entering":
		decl.Kind = KindEntry
	case kindPart == "exit" || kindPart == "leaving":
		decl.Kind = KindExit
	case kindPart == "comment":
		decl.Kind = KindComment
	case kindPart == "on" || strings.HasPrefix(kindPart, "on "):
		rest := strings.TrimSpace(strings.TrimPrefix(kindPart, "on"))
		event, guard, tail, err := scanEventGuard(rest, l.Number)
		if err != nil {
			d := ir.New(ir.ParseError, l.Number, l.RestCol, "%s", err)
			return nil, &d
		}
		if strings.TrimSpace(tail) != "" {
			d := ir.New(ir.ParseError, l.Number, l.RestCol, "unexpected text %q after 'on' guard", strings.TrimSpace(tail))
			return nil, &d
		}
		// An internal reaction with an empty event name is a dedicated
		// ParseError, distinct from a completion transition's legal
		// empty event.
		if event == "" {
			d := ir.New(ir.ParseError, l.Number, l.RestCol, "internal reaction requires an event name")
			return nil, &d
		}
		decl.Kind = KindOn
		decl.Event = event
		decl.Guard = guard
	default:
		decl.Kind = KindUnknown
		decl.RawKind = kindPart
	}

	return decl, nil
}
