package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warpsys/warpforge/internal/werr"
)

func TestNewIdentShapeAndUniqueness(t *testing.T) {
	a := NewIdent()
	b := NewIdent()
	assert.Regexp(t, `^warpforge-[0-9a-z]{16}$`, a)
	assert.NotEqual(t, a, b)
}

type fakeExecutor struct {
	events []Event
	err    error
}

func (f fakeExecutor) Run(_ context.Context, _ ContainerParams, outbox chan<- Event) error {
	for _, ev := range f.events {
		outbox <- ev
	}
	return f.err
}

func exitCode(n int) *int { return &n }

func TestRunFormulaSuccess(t *testing.T) {
	exec := fakeExecutor{events: []Event{
		{Output: &Output{Stream: "stdout", Val: "hi"}},
		{ExitCode: exitCode(0)},
	}}
	err := RunFormula(context.Background(), exec, ContainerParams{Ident: "warpforge-test"})
	assert.NoError(t, err)
}

func TestRunFormulaNonZeroExit(t *testing.T) {
	exec := fakeExecutor{events: []Event{{ExitCode: exitCode(7)}}}
	err := RunFormula(context.Background(), exec, ContainerParams{Ident: "warpforge-test"})
	require.Error(t, err)
	assert.True(t, werr.IsRuntimeError(err))
	assert.Contains(t, err.Error(), "7")
}

func TestRunFormulaNoExitCodeIsNone(t *testing.T) {
	exec := fakeExecutor{events: []Event{{Output: &Output{Stream: "stdout", Val: "killed"}}}}
	err := RunFormula(context.Background(), exec, ContainerParams{Ident: "warpforge-test"})
	require.Error(t, err)
	assert.True(t, werr.IsRuntimeError(err))
	assert.Contains(t, err.Error(), "None")
}

func TestRunFormulaExecutorFailure(t *testing.T) {
	exec := fakeExecutor{err: assert.AnError}
	err := RunFormula(context.Background(), exec, ContainerParams{Ident: "warpforge-test"})
	require.Error(t, err)
	assert.True(t, werr.IsRuntimeError(err))
}
