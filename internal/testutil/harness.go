// Package testutil provides a common harness for driving the whole
// compiler in tests: one entry point that runs the pipeline the way the
// CLI does and exposes the outcome the way the CLI reports it (exit
// code, formatted diagnostics, artifacts), so end-to-end tests don't
// each re-wire the stages.
package testutil

import (
	"strings"

	"github.com/comalice/fsmgen/internal/emit"
	"github.com/comalice/fsmgen/internal/emit/cpp"
	"github.com/comalice/fsmgen/internal/pipeline"
)

// Outcome is one pipeline run seen from the outside.
type Outcome struct {
	pipeline.Result
	Input string
}

// Run compiles source against the C++ backend under the given machine
// name, with no run id so repeated runs are byte-comparable.
func Run(name, kind, source string) Outcome {
	return Outcome{
		Result: pipeline.Run(source, cpp.New(), emit.Options{Kind: kind, Basename: name}),
		Input:  name + ".puml",
	}
}

// ExitCode mirrors the CLI: 0 on success, 1 when any error-severity
// diagnostic was collected.
func (o Outcome) ExitCode() int {
	if o.Failed() {
		return 1
	}
	return 0
}

// Stderr renders the diagnostics the way the CLI streams them.
func (o Outcome) Stderr() string {
	var b strings.Builder
	for _, d := range o.Diagnostics {
		b.WriteString(d.Format(o.Input))
		b.WriteByte('\n')
	}
	return b.String()
}

// Artifact returns the named artifact's content, or "".
func (o Outcome) Artifact(fileName string) string {
	for _, a := range o.Artifacts {
		if a.FileName == fileName {
			return string(a.Content)
		}
	}
	return ""
}
