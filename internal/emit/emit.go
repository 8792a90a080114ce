// Package emit renders a verified machine and its scenario suite into
// the two output artifacts: the machine source and the test source. The
// graph walking and table layout happen here, once, in the language-
// neutral Model; a Backend only escapes identifiers and fills its
// templates, so adding a target language never touches the upstream
// pipeline.
package emit

import (
	"github.com/comalice/fsmgen/internal/ir"
	"github.com/comalice/fsmgen/internal/scenario"
)

// Artifact is one emitted output file.
type Artifact struct {
	FileName string
	Content  []byte
}

// Options selects the backend output kind and the naming applied to the
// generated machine type and files.
type Options struct {
	Kind     string // backend output-kind selector, e.g. "cpp" or "hpp"
	Prefix   string // optional name prefix from the CLI's third positional
	Basename string // capitalized stem of the input filename
	RunID    string // optional run correlation id, embedded as a header comment
}

// Backend is the target-language seam: identifier escaping plus template
// filling over a prepared Model.
type Backend interface {
	Name() string

	// Kinds lists the output-kind selectors this backend accepts.
	Kinds() []string

	// EscapeIdentifier maps a source-level name onto a legal identifier
	// in the target language. The mapping must be invertible on names
	// that were already legal (they pass through unchanged). An error
	// means the backend refuses to escape the name (EmitError).
	EscapeIdentifier(name string) (string, error)

	// Render fills the backend's templates from the model, returning the
	// primary artifact followed by the test artifact.
	Render(model *Model, kind string) ([]Artifact, error)
}

// Emit builds the render model for m and hands it to the backend. All
// failures surface as EmitError diagnostics; on any error no artifacts
// are returned.
func Emit(b Backend, m *ir.Machine, scs []scenario.Scenario, opts Options) ([]Artifact, []ir.Diagnostic) {
	kindOK := false
	for _, k := range b.Kinds() {
		if k == opts.Kind {
			kindOK = true
			break
		}
	}
	if !kindOK {
		return nil, []ir.Diagnostic{ir.New(ir.EmitError, 0, 0,
			"backend %s does not provide output kind %q", b.Name(), opts.Kind)}
	}

	model, diags := BuildModel(b, m, scs, opts)
	if ir.HasErrors(diags) {
		return nil, diags
	}

	artifacts, err := b.Render(model, opts.Kind)
	if err != nil {
		diags = append(diags, ir.New(ir.EmitError, 0, 0, "backend %s: %s", b.Name(), err))
		return nil, diags
	}
	return artifacts, diags
}
