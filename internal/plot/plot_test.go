package plot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warpsys/warpforge/internal/formula"
	"github.com/warpsys/warpforge/internal/ordmap"
	"github.com/warpsys/warpforge/internal/wareid"
)

func TestStepInputRoundTrip(t *testing.T) {
	inputs := ordmap.New[StepInput]()
	inputs.Set("/src", PipeStepInput(Pipe{StepName: "fetch", Label: "out"}))
	inputs.Set("/root", WareStepInput(formula.WareInput(wareid.New("tar", "abc"))))
	inputs.Set("$HOME", WareStepInput(formula.LiteralInput("/root")))

	emitted, err := json.Marshal(inputs)
	require.NoError(t, err)

	parsed := ordmap.New[StepInput]()
	require.NoError(t, json.Unmarshal(emitted, parsed))

	src, ok := parsed.Get("/src")
	require.True(t, ok)
	require.NotNil(t, src.Pipe)
	assert.Equal(t, "fetch", src.Pipe.StepName)
	assert.Equal(t, formula.LocalLabel("out"), src.Pipe.Label)

	root, ok := parsed.Get("/root")
	require.True(t, ok)
	require.NotNil(t, root.Ware)
	require.NotNil(t, root.Ware.Ware)
	assert.Equal(t, wareid.New("tar", "abc"), *root.Ware.Ware)

	reemitted, err := json.Marshal(parsed)
	require.NoError(t, err)
	assert.JSONEq(t, string(emitted), string(reemitted))
}

func TestStepInputRejectsCatalogAndIngest(t *testing.T) {
	var in StepInput
	err := json.Unmarshal([]byte(`"catalog:some/thing:v1"`), &in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog references are not supported")

	err = json.Unmarshal([]byte(`"ingest:git:abc"`), &in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest references are not supported")
}

func TestParsePipe(t *testing.T) {
	p, err := parsePipe("pipe:fetch:tarball")
	require.NoError(t, err)
	assert.Equal(t, Pipe{StepName: "fetch", Label: "tarball"}, p)

	// an empty step name is valid: it means "this plot's own input set".
	p, err = parsePipe("pipe::tarball")
	require.NoError(t, err)
	assert.Equal(t, "", p.StepName)

	_, err = parsePipe("pipe:fetch:")
	assert.Error(t, err)

	_, err = parsePipe("mount:ro:/x")
	assert.Error(t, err)
}

func TestPlotRoundTrip(t *testing.T) {
	steps := ordmap.New[Step]()
	fetchInputs := ordmap.New[StepInput]()
	fetchInputs.Set("/", WareStepInput(formula.WareInput(wareid.New("tar", "abc"))))
	fetchOutputs := ordmap.New[formula.GatherDirective]()
	fetchOutputs.Set("out", formula.GatherDirective{From: "/out"})
	steps.Set("fetch", Step{Protoformula: &Protoformula{
		Image:   &formula.Image{Reference: "docker.io/busybox:latest"},
		Inputs:  fetchInputs,
		Action:  formula.EchoAction(),
		Outputs: fetchOutputs,
	}})

	buildInputs := ordmap.New[StepInput]()
	buildInputs.Set("/in", PipeStepInput(Pipe{StepName: "fetch", Label: "out"}))
	steps.Set("build", Step{Protoformula: &Protoformula{
		Inputs: buildInputs,
		Action: formula.EchoAction(),
	}})

	outputs := ordmap.New[PlotOutput]()
	outputs.Set("result", PlotOutput{From: Pipe{StepName: "build", Label: "out"}})

	p := &Plot{
		Image:   &formula.Image{Reference: "docker.io/busybox:latest"},
		Steps:   steps,
		Outputs: outputs,
	}

	emitted, err := json.Marshal(p)
	require.NoError(t, err)

	var parsed Plot
	require.NoError(t, json.Unmarshal(emitted, &parsed))
	require.Equal(t, 2, parsed.Steps.Len())

	fetch, ok := parsed.Steps.Get("fetch")
	require.True(t, ok)
	require.NotNil(t, fetch.Protoformula)
	assert.Nil(t, fetch.Plot)

	reemitted, err := json.Marshal(&parsed)
	require.NoError(t, err)
	assert.JSONEq(t, string(emitted), string(reemitted))
}

func TestStepRejectsMultipleTags(t *testing.T) {
	var s Step
	err := json.Unmarshal([]byte(`{"protoformula":{"inputs":{},"action":{"echo":{}},"outputs":{}},"plot":{"steps":{},"outputs":{}}}`), &s)
	assert.Error(t, err)
}
