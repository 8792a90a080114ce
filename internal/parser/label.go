package parser

import (
	"fmt"
	"strings"

	"github.com/comalice/fsmgen/internal/ir"
)

// splitOnSlash finds the first '/' outside any bracketed span and
// splits s there. This is how a state declaration's "kind '/' body" is
// separated without risking a '/' embedded inside a "[guard]" (e.g. a
// guard on an internal reaction, "on tick [x/2 > 1]") being mistaken for
// the kind/body separator.
func splitOnSlash(s string) (before, after string, hasSlash bool) {
	depth := 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case '/':
			if depth == 0 {
				return s[:i], s[i+1:], true
			}
		}
	}
	return s, "", false
}

// scanEventGuard reads an event name followed by an optional
// "[guard]" span from the front of s, per the `event-part ('['
// guard ']')?` grammar shared by transition labels and `on EVENT
// [guard]` internal-reaction declarations. It returns the unconsumed
// remainder of s (normally where a '/' action separator follows).
func scanEventGuard(s string, line int) (event string, guard ir.Fragment, rest string, err error) {
	i := 0
	n := len(s)
	for i < n && s[i] != '[' && s[i] != '/' {
		i++
	}
	event = strings.TrimSpace(s[:i])
	if i >= n || s[i] == '/' {
		return event, ir.EmptyFragment, s[i:], nil
	}

	depth := 0
	j := i
	for j < n {
		switch s[j] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				guardText := s[i+1 : j]
				return event, ir.TextFragment(guardText), s[j+1:], nil
			}
		}
		j++
	}
	return "", ir.EmptyFragment, "", fmt.Errorf("line %d: unterminated '[' in guard expression", line)
}

// parseLabel parses a transition's label body: `event-part ('['
// guard ']')? ('/' action)?`.
func parseLabel(s string, line int) (event string, guard, action ir.Fragment, err error) {
	event, guard, rest, err := scanEventGuard(s, line)
	if err != nil {
		return "", ir.EmptyFragment, ir.EmptyFragment, err
	}
	if event == "on" || strings.HasPrefix(event, "on ") {
		return "", ir.EmptyFragment, ir.EmptyFragment,
			fmt.Errorf("line %d: 'on EVENT' is only valid as an internal reaction in a state declaration", line)
	}
	rest = strings.TrimLeft(rest, " \t")
	if strings.HasPrefix(rest, "/") {
		action = ir.TextFragment(strings.TrimSpace(rest[1:]))
	} else if rest != "" {
		return "", ir.EmptyFragment, ir.EmptyFragment, fmt.Errorf("line %d: unexpected text %q after guard", line, rest)
	}
	return event, guard, action, nil
}
