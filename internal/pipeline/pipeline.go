// Package pipeline chains the five stages (parse, build, verify,
// synthesize, emit) with the error-propagation rules each one needs:
// parse errors abort after every line was tried, the builder aborts on
// its first shape error, verifier errors abort before synthesis, and
// warnings never stop anything. The CLI and the tests drive the whole
// compiler through this one function.
package pipeline

import (
	"github.com/comalice/fsmgen/internal/emit"
	"github.com/comalice/fsmgen/internal/graph"
	"github.com/comalice/fsmgen/internal/ir"
	"github.com/comalice/fsmgen/internal/parser"
	"github.com/comalice/fsmgen/internal/scenario"
	"github.com/comalice/fsmgen/internal/verify"
)

// Result carries everything a run produced, however far it got. The
// Machine is present whenever graph building ran, even if verification
// failed afterwards, so callers can still dump it for inspection.
type Result struct {
	Machine     *ir.Machine
	Scenarios   []scenario.Scenario
	Artifacts   []emit.Artifact
	Diagnostics []ir.Diagnostic
}

// Failed reports whether the run collected any error-severity
// diagnostic; it maps directly onto the CLI's non-zero exit code.
func (r Result) Failed() bool {
	return ir.HasErrors(r.Diagnostics)
}

// Run compiles source through the full pipeline against the given
// backend. The machine's name is opts.Prefix + opts.Basename.
func Run(source string, b emit.Backend, opts emit.Options) Result {
	var res Result

	file, diags := parser.Parse(source)
	res.Diagnostics = append(res.Diagnostics, diags...)
	if ir.HasErrors(diags) {
		return res
	}

	machine, diags := graph.Build(opts.Prefix+opts.Basename, file)
	res.Machine = machine
	res.Diagnostics = append(res.Diagnostics, diags...)
	if ir.HasErrors(diags) {
		return res
	}

	diags = verify.Check(machine)
	res.Diagnostics = append(res.Diagnostics, diags...)
	if ir.HasErrors(diags) {
		return res
	}

	res.Scenarios = scenario.Synthesize(machine, scenario.Options{})

	artifacts, diags := emit.Emit(b, machine, res.Scenarios, opts)
	res.Diagnostics = append(res.Diagnostics, diags...)
	if ir.HasErrors(diags) {
		return res
	}
	res.Artifacts = artifacts
	return res
}
