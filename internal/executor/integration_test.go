//go:build integration

// This file exercises the "happy path, exec action" scenario from
// spec.md §8 scenario 1 against a real container runtime via
// testcontainers-go, the library the teacher's own go.mod already pulls
// in (for its Dolt test fixtures) and this module is the first to
// exercise directly. It is gated behind the "integration" build tag
// since it needs a working Docker daemon, unlike the rest of this
// package's unit tests.
package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestBusyboxEchoHelloWorld(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:      "docker.io/busybox:latest",
		Cmd:        []string{"echo", "hello from warpforge!"},
		WaitingFor: wait.ForExit(),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	state, err := container.State(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, state.ExitCode)

	logs, err := container.Logs(ctx)
	require.NoError(t, err)
	defer logs.Close()
}
