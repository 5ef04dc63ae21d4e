package plotgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warpsys/warpforge/internal/formula"
	"github.com/warpsys/warpforge/internal/ordmap"
	"github.com/warpsys/warpforge/internal/plot"
)

func stepPipingFrom(names ...string) plot.Step {
	inputs := ordmap.New[plot.StepInput]()
	for i, name := range names {
		inputs.Set(portFor(i), plot.PipeStepInput(plot.Pipe{StepName: name, Label: "out"}))
	}
	return plot.Step{Protoformula: &plot.Protoformula{
		Inputs: inputs,
		Action: formula.EchoAction(),
	}}
}

func portFor(i int) string {
	return []string{"/a", "/b", "/c", "/d"}[i]
}

func leafStep() plot.Step {
	return plot.Step{Protoformula: &plot.Protoformula{
		Inputs: ordmap.New[plot.StepInput](),
		Action: formula.EchoAction(),
	}}
}

// buildPlot builds a plot with the given steps in the given insertion
// order, each pointing at its piped-from parents.
func buildPlot(t *testing.T, order []string, pipesFrom map[string][]string) *plot.Plot {
	t.Helper()
	steps := ordmap.New[plot.Step]()
	for _, name := range order {
		parents := pipesFrom[name]
		if len(parents) == 0 {
			steps.Set(name, leafStep())
		} else {
			steps.Set(name, stepPipingFrom(parents...))
		}
	}
	return &plot.Plot{Steps: steps, Outputs: ordmap.New[plot.PlotOutput]()}
}

func TestValidateNoCyclesAcyclic(t *testing.T) {
	p := buildPlot(t, []string{"fetch", "build", "test"}, map[string][]string{
		"build": {"fetch"},
		"test":  {"build"},
	})
	g := Build(p)
	require.NoError(t, g.ValidateDependenciesExist())
	assert.NoError(t, g.ValidateNoCycles())
}

func TestValidateNoCyclesReportsCycle(t *testing.T) {
	p := buildPlot(t, []string{"a", "b", "c"}, map[string][]string{
		"a": {"c"},
		"b": {"a"},
		"c": {"b"},
	})
	g := Build(p)
	err := g.ValidateNoCycles()
	require.Error(t, err)
	assert.Equal(t, "invalid plot: the step(s) 'a', 'b', 'c' contain(s) cycle(s)", err.Error())
}

func TestValidateDependenciesExistUnknownStep(t *testing.T) {
	p := buildPlot(t, []string{"a"}, map[string][]string{
		"a": {"ghost"},
	})
	g := Build(p)
	err := g.ValidateDependenciesExist()
	require.Error(t, err)
	assert.Equal(t, "invalid plot: step(s) 'a' reference(s) unknown step 'ghost'", err.Error())
}

func TestValidateDependenciesExistMultipleUnknownStepsReportsFirstInserted(t *testing.T) {
	// "a" and "b" each reference a distinct unknown step. Build's edge
	// pass walks steps in insertion order ("a" then "b"), so childKeys
	// records "ghost1" before "ghost2" regardless of native Go map
	// iteration order over g.children — the report must always name
	// "ghost1", not whichever ghost a map range happens to visit first.
	p := buildPlot(t, []string{"a", "b"}, map[string][]string{
		"a": {"ghost1"},
		"b": {"ghost2"},
	})
	g := Build(p)
	err := g.ValidateDependenciesExist()
	require.Error(t, err)
	assert.Equal(t, "invalid plot: step(s) 'a' reference(s) unknown step 'ghost1'", err.Error())
}

func TestValidateDependenciesExistPasses(t *testing.T) {
	p := buildPlot(t, []string{"fetch", "build"}, map[string][]string{
		"build": {"fetch"},
	})
	g := Build(p)
	assert.NoError(t, g.ValidateDependenciesExist())
}

func TestTraversalVisitsEveryNodeAfterItsParents(t *testing.T) {
	p := buildPlot(t, []string{"fetch", "build", "test"}, map[string][]string{
		"build": {"fetch"},
		"test":  {"build"},
	})
	g := Build(p)
	require.NoError(t, g.ValidateNoCycles())

	tr := NewTraversal(g)
	visited := make(map[string]int)
	var order []string
	for {
		name, ok := tr.Next()
		if !ok {
			break
		}
		order = append(order, name)
		tr.Advance(name)
		visited[name]++
	}

	require.Equal(t, []string{"fetch", "build", "test"}, order)
	assert.True(t, tr.Done())
	for _, name := range order {
		assert.Equal(t, 1, visited[name])
	}
}

func TestTraversalIndependentStepsBothVisited(t *testing.T) {
	p := buildPlot(t, []string{"left", "right", "join"}, map[string][]string{
		"join": {"left", "right"},
	})
	g := Build(p)
	require.NoError(t, g.ValidateNoCycles())

	tr := NewTraversal(g)
	var order []string
	for {
		name, ok := tr.Next()
		if !ok {
			break
		}
		order = append(order, name)
		tr.Advance(name)
	}

	require.Len(t, order, 3)
	assert.Equal(t, "join", order[2])
	assert.ElementsMatch(t, []string{"left", "right"}, order[:2])
}
