// Package cpp is the C++ backend: it renders the emit.Model as a
// single self-contained class (table-driven dispatch, entry/exit hook
// table, bounded completion queue) plus an assert-style test program
// built from the scenario suite. The "cpp" output kind emits a
// translation unit, "hpp" a header-only form; the class body is the
// same either way.
package cpp

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/comalice/fsmgen/internal/emit"
)

// Backend implements emit.Backend for C++.
type Backend struct{}

func New() *Backend { return &Backend{} }

func (*Backend) Name() string { return "cpp" }

func (*Backend) Kinds() []string { return []string{"cpp", "hpp"} }

// cppKeywords is the subset of reserved words a state or event name is
// most likely to collide with; escaping appends an underscore, which
// keeps already-legal names readable and distinct.
var cppKeywords = map[string]bool{
	"auto": true, "bool": true, "break": true, "case": true, "catch": true,
	"char": true, "class": true, "const": true, "continue": true,
	"default": true, "delete": true, "do": true, "double": true,
	"else": true, "enum": true, "explicit": true, "extern": true,
	"false": true, "float": true, "for": true, "friend": true, "goto": true,
	"if": true, "inline": true, "int": true, "long": true, "namespace": true,
	"new": true, "operator": true, "private": true, "protected": true,
	"public": true, "return": true, "short": true, "signed": true,
	"sizeof": true, "static": true, "struct": true, "switch": true,
	"template": true, "this": true, "throw": true, "true": true,
	"try": true, "typedef": true, "typename": true, "union": true,
	"unsigned": true, "using": true, "virtual": true, "void": true,
	"volatile": true, "while": true,
}

// EscapeIdentifier maps name onto a legal C++ identifier. Legal names
// pass through unchanged; a reserved word gains a trailing underscore;
// any other character becomes an underscore. A name with no salvageable
// characters is refused.
func (*Backend) EscapeIdentifier(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty identifier")
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	esc := b.String()
	if strings.Trim(esc, "_") == "" && strings.Trim(name, "_") != "" {
		return "", fmt.Errorf("identifier %q has no representable characters", name)
	}
	if cppKeywords[esc] {
		esc += "_"
	}
	return esc, nil
}

type renderCtx struct {
	*emit.Model
	HeaderOnly  bool
	PrimaryFile string
}

func (b *Backend) Render(model *emit.Model, kind string) ([]emit.Artifact, error) {
	ext := "cpp"
	if kind == "hpp" {
		ext = "hpp"
	}
	ctx := renderCtx{
		Model:       model,
		HeaderOnly:  kind == "hpp",
		PrimaryFile: model.FileBase + "." + ext,
	}

	machine, err := fill(machineTmpl, ctx)
	if err != nil {
		return nil, fmt.Errorf("render machine: %w", err)
	}
	tests, err := fill(testTmpl, ctx)
	if err != nil {
		return nil, fmt.Errorf("render tests: %w", err)
	}
	return []emit.Artifact{
		{FileName: ctx.PrimaryFile, Content: machine},
		{FileName: model.FileBase + "Test.cpp", Content: tests},
	}, nil
}

func fill(t *template.Template, ctx renderCtx) ([]byte, error) {
	var b strings.Builder
	if err := t.Execute(&b, ctx); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

var funcs = template.FuncMap{
	"cstr": func(s string) string {
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)
		return r.Replace(s)
	},
	"ints": func(ns []int) string {
		parts := make([]string, len(ns))
		for i, n := range ns {
			parts[i] = fmt.Sprintf("%d", n)
		}
		return strings.Join(parts, ", ")
	},
	"guardRef": func(typeName string, c emit.Candidate) string {
		if c.GuardIndex < 0 {
			return "0"
		}
		return fmt.Sprintf("&%s::guard_%d", typeName, c.GuardIndex)
	},
	"actionRef": func(typeName string, c emit.Candidate) string {
		if c.ActionIndex < 0 {
			return "0"
		}
		return fmt.Sprintf("&%s::action_%d", typeName, c.ActionIndex)
	},
	"orSet": func(typeName string, enumerants []string) string {
		parts := make([]string, len(enumerants))
		for i, e := range enumerants {
			parts[i] = fmt.Sprintf("m.state() == %s::%s", typeName, e)
		}
		return strings.Join(parts, " || ")
	},
}

var machineTmpl = template.Must(template.New("machine").Funcs(funcs).Parse(`{{- if .Slot "brief"}}// {{.Slot "brief"}}
{{end -}}
// {{.PrimaryFile}}: generated state machine for {{.TypeName}}. Do not edit.
{{- if .RunID}}
// run {{.RunID}}
{{- end}}
{{- if .HeaderOnly}}
#pragma once
{{- end}}

#include <cstdio>
#include <cstdlib>

{{if .Slot "header"}}{{.Slot "header"}}

{{end -}}
class {{.TypeName}} {
public:
    enum State {
{{- range .States}}
        {{.Enumerant}},{{if .Comment}} // {{.Comment}}{{end}}
{{- end}}
        MAX_STATES,
        IGNORING_EVENT,
        CANNOT_HAPPEN
    };

private:
    typedef bool ({{.TypeName}}::*GuardFn)();
    typedef void ({{.TypeName}}::*ActionFn)();

    struct Transition {
        State dest;
        GuardFn guard;
        ActionFn action;
        bool internal;
    };

    struct Hook {
        ActionFn entry;
        ActionFn exit;
    };

    static const int kQueueDepth = 16;

public:
    explicit {{.TypeName}}({{.Slot "param"}}){{if .Slot "cons"}}
        : {{.Slot "cons"}}{{end}} {
        reset();
    }
    virtual ~{{.TypeName}}() {}

    // Returns the machine to its reset state: clear the completion
    // queue, re-run the construction-time initialization, take the
    // initial transitions.
    void reset() {
        queueHead_ = 0;
        queueLen_ = 0;
        current_ = {{(index .States .InitialIdx).Enumerant}};
{{- if .Slot "init"}}
        {{.Slot "init"}}
{{- end}}
        scheduleCompletions();
        drain();
    }
{{range .Events}}
    void {{.Method}}({{.Params}}) {
        static const Transition rows[] = {
{{- range .Table.Rows}}
            { {{.Dest}}, {{guardRef $.TypeName .}}, {{actionRef $.TypeName .}}, {{.Internal}} },
{{- end}}
        };
        static const unsigned char first[MAX_STATES] = { {{ints .Table.First}} };
        static const unsigned char count[MAX_STATES] = { {{ints .Table.Count}} };
        fire(rows, first, count);
        drain();
    }
{{end}}
    State state() const { return current_; }

    static const char* stateName(State s) {
        switch (s) {
{{- range .States}}
        case {{.Enumerant}}: return "{{cstr .Name}}";
{{- end}}
        case IGNORING_EVENT: return "(ignoring event)";
        case CANNOT_HAPPEN: return "(cannot happen)";
        default: return "(invalid)";
        }
    }
{{if .Slot "code"}}
    {{.Slot "code"}}
{{end}}
protected:
{{- range .Guards}}
    virtual bool guard_{{.Index}}() { return ({{.Text}}); }
{{- end}}

private:
{{- range .Actions}}
    void action_{{.Index}}() { {{.Text}}; }
{{- end}}
{{- range .States}}
{{- if .HasEntry}}
    void entry_{{.Enumerant}}() { {{.Entry}}; }
{{- end}}
{{- if .HasExit}}
    void exit_{{.Enumerant}}() { {{.Exit}}; }
{{- end}}
{{- end}}

    const Hook* hooks() const {
        static const Hook table[MAX_STATES] = {
{{- range .States}}
            { {{if .HasEntry}}&{{$.TypeName}}::entry_{{.Enumerant}}{{else}}0{{end}}, {{if .HasExit}}&{{$.TypeName}}::exit_{{.Enumerant}}{{else}}0{{end}} },
{{- end}}
        };
        return table;
    }

    const Transition* completions(const unsigned char** first, const unsigned char** count) const {
        static const Transition rows[] = {
{{- range .Completion.Rows}}
            { {{.Dest}}, {{guardRef $.TypeName .}}, {{actionRef $.TypeName .}}, {{.Internal}} },
{{- end}}
        };
        static const unsigned char f[MAX_STATES] = { {{ints .Completion.First}} };
        static const unsigned char c[MAX_STATES] = { {{ints .Completion.Count}} };
        *first = f;
        *count = c;
        return rows;
    }

    // The driver. Applies one transition record; returns false when the
    // guard rejected it so the caller can try the next candidate.
    bool apply(const Transition& t) {
        if (t.dest == CANNOT_HAPPEN) {
            std::fprintf(stderr, "{{.TypeName}}: event cannot happen in state %s\n",
                         stateName(current_));
            std::abort();
        }
        if (t.dest == IGNORING_EVENT)
            return true;
        if (t.guard && !(this->*t.guard)())
            return false;
        State prev = current_;
        current_ = t.dest;
        if (t.action)
            (this->*t.action)();
        if (prev != t.dest && !t.internal) {
            if (hooks()[prev].exit)
                (this->*hooks()[prev].exit)();
            if (hooks()[current_].entry)
                (this->*hooks()[current_].entry)();
        }
        scheduleCompletions();
        return true;
    }

    void fire(const Transition* rows, const unsigned char* first, const unsigned char* count) {
        unsigned char n = count[current_];
        if (n == 0)
            return;
        const Transition* cand = rows + first[current_];
        for (unsigned char i = 0; i < n; ++i)
            if (apply(cand[i]))
                return;
    }

    void scheduleCompletions() {
        const unsigned char *f, *c;
        completions(&f, &c);
        (void)f;
        if (c[current_] == 0)
            return;
        if (queueLen_ == kQueueDepth)
            loopAbort();
        queue_[(queueHead_ + queueLen_) % kQueueDepth] = current_;
        ++queueLen_;
    }

    void drain() {
        const unsigned char *f, *c;
        const Transition* rows = completions(&f, &c);
        int drained = 0;
        while (queueLen_ > 0) {
            State s = queue_[queueHead_];
            queueHead_ = (unsigned char)((queueHead_ + 1) % kQueueDepth);
            --queueLen_;
            if (s != current_)
                continue; // stale: a later transition already left s
            if (++drained > kQueueDepth)
                loopAbort();
            const Transition* cand = rows + f[s];
            for (unsigned char i = 0; i < c[s]; ++i)
                if (apply(cand[i]))
                    break;
        }
    }

    void loopAbort() {
        std::fprintf(stderr, "{{.TypeName}}: completion transitions did not quiesce\n");
        std::abort();
    }

    State current_;
    State queue_[kQueueDepth];
    unsigned char queueHead_;
    unsigned char queueLen_;
};
{{if .Slot "footer"}}
{{.Slot "footer"}}
{{end -}}
`))

var testTmpl = template.Must(template.New("tests").Funcs(funcs).Parse(`// {{.FileBase}}Test.cpp: generated test suite for {{.TypeName}}. Do not edit.
{{- if .RunID}}
// run {{.RunID}}
{{- end}}
#include "{{.PrimaryFile}}"

#include <cstdio>

// When the machine's constructor takes parameters, define this macro to
// the argument list before compiling the test suite.
#ifndef FSMGEN_TEST_CTOR_ARGS
#define FSMGEN_TEST_CTOR_ARGS
#endif

namespace {

int failures = 0;

void check(bool ok, const char* test, const char* expr) {
    if (!ok) {
        std::printf("FAIL %s: expected %s\n", test, expr);
        ++failures;
    }
}
{{if .Guards}}
// Test double with every guard replaced by a settable boolean; force()
// the outcomes a scenario needs, then reset() to re-run the initial
// transitions under them.
class Stub{{.TypeName}} : public {{.TypeName}} {
public:
    Stub{{.TypeName}}() : {{.TypeName}}(FSMGEN_TEST_CTOR_ARGS) {
        for (int i = 0; i < {{len .Guards}}; ++i)
            forced_[i] = false;
    }
    void force(int guard, bool value) { forced_[guard] = value; }

protected:
{{- range .Guards}}
    virtual bool guard_{{.Index}}() { return forced_[{{.Index}}]; }
{{- end}}

private:
    bool forced_[{{len .Guards}}];
};
{{end}}
{{- range .Scenarios}}
void test_{{.Name}}() {
{{- if .Stubbed}}
    Stub{{$.TypeName}} m;
{{- range .Outcomes}}
    m.force({{.GuardIndex}}, {{.Value}});
{{- end}}
    m.reset();
{{- else}}
    {{$.TypeName}} m{FSMGEN_TEST_CTOR_ARGS};
{{- end}}
{{- range .Calls}}
    m.{{.}}();
{{- end}}
{{- if .Expected}}
    check(m.state() == {{$.TypeName}}::{{.Expected}}, "{{.Name}}", "{{.Expected}}");
{{- end}}
{{- if .ExpectedSet}}
    check({{orSet $.TypeName .ExpectedSet}}, "{{.Name}}", "one of the initial destinations");
{{- end}}
}
{{end}}
} // namespace

int main() {
{{- range .Scenarios}}
    test_{{.Name}}();
{{- end}}
{{- if .Slot "test"}}
    {{.Slot "test"}}
{{- end}}
    if (failures) {
        std::printf("%d scenario(s) failed\n", failures);
        return 1;
    }
    std::printf("all scenarios passed\n");
    return 0;
}
`))
