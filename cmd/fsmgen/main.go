// fsmgen compiles a PlantUML-subset statechart description into a
// table-driven state machine plus a generated test suite.
//
// Usage:
//
//	fsmgen <input-file> <cpp|hpp> [name-prefix] [--watch] [--dump-ir file.yaml] [--dump-dot file.dot]
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/comalice/fsmgen/internal/emit"
	"github.com/comalice/fsmgen/internal/emit/cpp"
	"github.com/comalice/fsmgen/internal/pipeline"
)

var (
	watchMode  bool
	dumpIRPath string
	dumpDOT    string

	rootCmd = &cobra.Command{
		Use:   "fsmgen <input-file> <cpp|hpp> [name-prefix]",
		Short: "Generate a table-driven state machine from a statechart diagram",
		Long: `fsmgen reads a statechart in a subset of the PlantUML state-diagram
dialect, verifies it, and emits the state-machine source plus a test
suite exercising the machine along its cycles and paths.`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
)

func init() {
	rootCmd.Flags().BoolVar(&watchMode, "watch", false, "re-run the pipeline whenever the input file changes")
	rootCmd.Flags().StringVar(&dumpIRPath, "dump-ir", "", "write the built machine as YAML to this file")
	rootCmd.Flags().StringVar(&dumpDOT, "dump-dot", "", "write the built machine as Graphviz DOT to this file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fsmgen: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	input := args[0]
	kind := args[1]
	prefix := ""
	if len(args) == 3 {
		prefix = args[2]
	}

	if err := runOnce(input, kind, prefix); err != nil {
		if !watchMode {
			return err
		}
		fmt.Fprintf(os.Stderr, "fsmgen: %v\n", err)
	}
	if watchMode {
		return watch(input, kind, prefix)
	}
	return nil
}

// runOnce drives one full pipeline pass over the input file and writes
// the resulting artifacts next to it. Each pass gets a fresh run id so
// regenerations are distinguishable in a build log.
func runOnce(input, kind, prefix string) error {
	source, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	opts := emit.Options{
		Kind:     kind,
		Prefix:   prefix,
		Basename: basename(input),
		RunID:    uuid.NewString(),
	}
	res := pipeline.Run(string(source), cpp.New(), opts)

	for _, d := range res.Diagnostics {
		fmt.Fprintln(os.Stderr, d.Format(input))
	}
	if res.Machine != nil {
		if err := dumpMachine(res); err != nil {
			return err
		}
	}
	if res.Failed() {
		return fmt.Errorf("%s: generation failed", input)
	}

	dir := filepath.Dir(input)
	for _, a := range res.Artifacts {
		path := filepath.Join(dir, a.FileName)
		if err := os.WriteFile(path, a.Content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintf(os.Stderr, "fsmgen: wrote %s\n", path)
	}
	return nil
}

// dumpMachine honors the debug dump flags. Both run against whatever
// the graph builder managed to produce, even when verification failed,
// which is exactly when a dump is most useful.
func dumpMachine(res pipeline.Result) error {
	if dumpIRPath != "" {
		data, err := res.Machine.MarshalYAML()
		if err != nil {
			return err
		}
		if err := os.WriteFile(dumpIRPath, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dumpIRPath, err)
		}
	}
	if dumpDOT != "" {
		if err := os.WriteFile(dumpDOT, []byte(res.Machine.ExportDOT()), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dumpDOT, err)
		}
	}
	return nil
}

// watch re-runs the pipeline on every write to the input file. Events
// are handled one at a time; a regeneration drains fully before the
// next event is looked at.
func watch(input, kind, prefix string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(input)); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "fsmgen: watching %s\n", input)

	target := filepath.Clean(input)
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := runOnce(input, kind, prefix); err != nil {
				fmt.Fprintf(os.Stderr, "fsmgen: %v\n", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "fsmgen: watch: %v\n", err)
		}
	}
}

// basename derives the generated type's base name from the input file:
// the stem with its first letter capitalized.
func basename(input string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	runes := []rune(stem)
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}
