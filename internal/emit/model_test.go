package emit

import (
	"reflect"
	"testing"

	"github.com/comalice/fsmgen/internal/graph"
	"github.com/comalice/fsmgen/internal/ir"
	"github.com/comalice/fsmgen/internal/parser"
	"github.com/comalice/fsmgen/internal/scenario"
)

// fakeBackend is the minimal Backend for model-building tests: it
// escapes nothing and renders nothing.
type fakeBackend struct{}

func (fakeBackend) Name() string    { return "fake" }
func (fakeBackend) Kinds() []string { return []string{"fake"} }
func (fakeBackend) EscapeIdentifier(name string) (string, error) {
	return name, nil
}
func (fakeBackend) Render(model *Model, kind string) ([]Artifact, error) {
	return []Artifact{{FileName: model.FileBase + ".fake"}}, nil
}

func buildModel(t *testing.T, source string) *Model {
	t.Helper()
	file, diags := parser.Parse(source)
	if ir.HasErrors(diags) {
		t.Fatalf("parse failed: %v", diags)
	}
	m, diags := graph.Build("Test", file)
	if len(diags) != 0 {
		t.Fatalf("build failed: %v", diags)
	}
	scs := scenario.Synthesize(m, scenario.Options{})
	model, diags := BuildModel(fakeBackend{}, m, scs, Options{Kind: "fake", Basename: "Test"})
	if ir.HasErrors(diags) {
		t.Fatalf("model diagnostics: %v", diags)
	}
	return model
}

const motorSource = `
[*] --> Idle :
Idle --> Starting : setSpeed
Starting --> Spinning : setSpeed
Starting --> Stopping : halt
Spinning --> Stopping : halt
Stopping --> Idle :
`

func TestBuildModelEnumeration(t *testing.T) {
	model := buildModel(t, motorSource)
	var enums []string
	for _, s := range model.States {
		enums = append(enums, s.Enumerant)
	}
	want := []string{"Idle", "Starting", "Spinning", "Stopping", "InitialState"}
	if !reflect.DeepEqual(enums, want) {
		t.Errorf("enumerants = %v, want %v", enums, want)
	}
	if model.InitialIdx != 4 {
		t.Errorf("InitialIdx = %d, want 4", model.InitialIdx)
	}
	if model.FinalIdx != -1 {
		t.Errorf("FinalIdx = %d, want -1 (no final pseudo-state)", model.FinalIdx)
	}
}

func TestBuildModelEventTables(t *testing.T) {
	model := buildModel(t, motorSource)
	if len(model.Events) != 2 {
		t.Fatalf("got %d events, want setSpeed and halt", len(model.Events))
	}
	setSpeed := model.Events[0]
	if setSpeed.Method != "setSpeed" {
		t.Fatalf("event 0 = %s, want setSpeed (first-occurrence order)", setSpeed.Method)
	}
	// Idle (index 0) and Starting (index 1) define setSpeed; everything
	// else ignores it.
	if setSpeed.Table.Count[0] != 1 || setSpeed.Table.Count[1] != 1 {
		t.Errorf("setSpeed counts = %v", setSpeed.Table.Count)
	}
	if setSpeed.Table.Count[2] != 0 || setSpeed.Table.Count[3] != 0 || setSpeed.Table.Count[4] != 0 {
		t.Errorf("setSpeed must be ignored outside Idle/Starting: %v", setSpeed.Table.Count)
	}
	idleRow := setSpeed.Table.Rows[setSpeed.Table.First[0]]
	if idleRow.Dest != "Starting" || idleRow.GuardIndex != -1 {
		t.Errorf("Idle setSpeed row = %+v", idleRow)
	}
	// Row 0 is the shared ignore sentinel.
	if setSpeed.Table.Rows[0].Dest != "IGNORING_EVENT" {
		t.Errorf("row 0 = %+v, want the ignore sentinel", setSpeed.Table.Rows[0])
	}
}

func TestBuildModelCompletionTable(t *testing.T) {
	model := buildModel(t, motorSource)
	// Stopping (index 3) and the initial pseudo-state (index 4) have
	// completion transitions.
	if model.Completion.Count[3] != 1 || model.Completion.Count[4] != 1 {
		t.Errorf("completion counts = %v", model.Completion.Count)
	}
	stopRow := model.Completion.Rows[model.Completion.First[3]]
	if stopRow.Dest != "Idle" {
		t.Errorf("Stopping completion row = %+v", stopRow)
	}
}

func TestBuildModelFinalStateCannotHappen(t *testing.T) {
	model := buildModel(t, "[*] --> A :\nA --> [*] : finish")
	if model.FinalIdx < 0 {
		t.Fatal("final pseudo-state not modeled")
	}
	ev := model.Events[0]
	row := ev.Table.Rows[ev.Table.First[model.FinalIdx]]
	if row.Dest != "CANNOT_HAPPEN" {
		t.Errorf("final-state event row = %+v, want CANNOT_HAPPEN", row)
	}
}

func TestBuildModelGuardActionIndexing(t *testing.T) {
	model := buildModel(t, `
[*] --> NoQuarter : [gumballs>0]
[*] --> OutOfGumballs : [gumballs==0]
NoQuarter --> HasQuarter : insertQuarter
HasQuarter --> GumballSold : turnCrank / --gumballs
GumballSold --> NoQuarter : [gumballs>0]
GumballSold --> OutOfGumballs : [gumballs==0]
`)
	if len(model.Guards) != 4 {
		t.Fatalf("got %d guards, want 4", len(model.Guards))
	}
	if model.Guards[0].Text != "gumballs>0" || model.Guards[3].Text != "gumballs==0" {
		t.Errorf("guards out of declaration order: %v", model.Guards)
	}
	if len(model.Actions) != 1 || model.Actions[0].Text != "--gumballs" {
		t.Errorf("actions = %v", model.Actions)
	}
	// The stubbed reset-split scenarios reference guards by index.
	var combo *ScenarioModel
	for i := range model.Scenarios {
		if model.Scenarios[i].Name == "guards_initial_completion_2" {
			combo = &model.Scenarios[i]
		}
	}
	if combo == nil {
		t.Fatal("stub scenario missing from model")
	}
	want := []OutcomeModel{{GuardIndex: 0, Value: false}, {GuardIndex: 1, Value: true}}
	if !reflect.DeepEqual(combo.Outcomes, want) {
		t.Errorf("outcomes = %v, want %v", combo.Outcomes, want)
	}
}

func TestBuildModelEnumerantCollisions(t *testing.T) {
	model := buildModel(t, "[*] --> MAX_STATES :\nMAX_STATES --> InitialState : go\nInitialState --> MAX_STATES : back")
	var enums []string
	for _, s := range model.States {
		enums = append(enums, s.Enumerant)
	}
	want := []string{"MAX_STATES_", "InitialState", "InitialState_"}
	if !reflect.DeepEqual(enums, want) {
		t.Errorf("enumerants = %v, want %v", enums, want)
	}
}

func TestEmitRejectsUnknownKind(t *testing.T) {
	file, _ := parser.Parse("[*] --> A :\nA --> A : poke")
	m, _ := graph.Build("Test", file)
	_, diags := Emit(fakeBackend{}, m, nil, Options{Kind: "cobol", Basename: "Test"})
	if !ir.HasErrors(diags) || diags[0].Kind != ir.EmitError {
		t.Fatalf("diagnostics = %v, want an EmitError", diags)
	}
}
