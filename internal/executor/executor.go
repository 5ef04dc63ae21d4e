package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/warpsys/warpforge/internal/config"
	"github.com/warpsys/warpforge/internal/werr"
)

var logger = log.New(os.Stderr, "warpforge/executor: ", log.LstdFlags)

// defaultEventQueueCapacity is the bounded event channel size between
// executor and consumer when config carries no override.
const defaultEventQueueCapacity = 32

// RuncExecutor runs a container by shelling out to an OCI runtime
// binary (runc, crun, ...), following the same exec.CommandContext +
// OpenTelemetry span pattern the teacher uses to shell out to hook
// scripts (internal/hooks/hooks_unix.go), generalized from "fire one
// hook, discard output" to "stream stdio as Events".
type RuncExecutor struct{}

// Run invokes params.RuntimePath against the prepared bundle at
// params.RootPath, publishing one Output event per captured stdio line
// and exactly one terminal ExitCode event (spec.md §4.4).
func (RuncExecutor) Run(ctx context.Context, params ContainerParams, outbox chan<- Event) (retErr error) {
	tracer := otel.Tracer("github.com/warpsys/warpforge/executor")
	ctx, span := tracer.Start(ctx, "warpforge/executor.Run",
		trace.WithAttributes(
			attribute.String("warpforge.container.ident", params.Ident),
			attribute.String("warpforge.runtime_path", params.RuntimePath),
			attribute.StringSlice("warpforge.command", params.Command),
		),
	)
	defer func() {
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, retErr.Error())
		}
		span.End()
	}()

	args := append(runtimeArgs(params), params.Ident, "--bundle", params.RootPath)
	cmd := exec.CommandContext(ctx, params.RuntimePath, args...)
	// The runtime binary needs its own environment (PATH etc.); the
	// container's environment rides along for runtimes that forward it,
	// and is staged into the bundle config regardless.
	cmd.Env = append(os.Environ(), envSlice(params.Environment)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		outbox <- Event{ExitCode: nil}
		return werr.RuntimeError(err, "open stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		outbox <- Event{ExitCode: nil}
		return werr.RuntimeError(err, "open stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		code := -1
		outbox <- Event{ExitCode: &code}
		return werr.RuntimeError(err, "start container runtime")
	}

	var streamers errgroup.Group
	streamers.Go(func() error { return streamLines(ctx, stdout, "stdout", outbox) })
	streamers.Go(func() error { return streamLines(ctx, stderr, "stderr", outbox) })
	streamErr := streamers.Wait()

	waitErr := cmd.Wait()

	var code *int
	if cmd.ProcessState != nil {
		c := cmd.ProcessState.ExitCode()
		if c >= 0 {
			code = &c
		}
	}
	outbox <- Event{ExitCode: code}

	if streamErr != nil {
		return werr.RuntimeError(streamErr, "stream container output")
	}
	if waitErr != nil {
		if _, ok := waitErr.(*exec.ExitError); ok {
			// non-zero exit is reported via ExitCode above, not an error here.
			return nil
		}
		return werr.RuntimeError(waitErr, "wait for container runtime")
	}
	return nil
}

func runtimeArgs(params ContainerParams) []string {
	// The bundle at params.RootPath must already carry the config.json
	// staged by StageBundleConfig; this layer only shells out to it.
	return []string{"run"}
}

func envSlice(vars []EnvVar) []string {
	out := make([]string, len(vars))
	for i, v := range vars {
		out[i] = v.Name + "=" + v.Value
	}
	return out
}

func streamLines(ctx context.Context, r io.Reader, stream string, outbox chan<- Event) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case outbox <- Event{Output: &Output{Stream: stream, Val: scanner.Text()}}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}

// RunFormula drives one container run end to end: it creates the
// bounded event channel, runs exec in a goroutine, and pairs it with a
// consumer goroutine that forwards Output events to the log and captures
// the terminal ExitCode, classifying anything but 0 as a runtime error.
// The ersatz workspace the params point into is owned by the caller
// (internal/plotexec scopes one per step, cmd/warpforge one per
// invocation), which also removes it on every exit path.
func RunFormula(ctx context.Context, exec Executor, params ContainerParams) error {
	capacity := config.GetEventQueueCapacity()
	if capacity <= 0 {
		capacity = defaultEventQueueCapacity
	}
	outbox := make(chan Event, capacity)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(outbox)
		return exec.Run(ctx, params, outbox)
	})

	var exitCode *int
	g.Go(func() error {
		for ev := range outbox {
			switch {
			case ev.Output != nil:
				logger.Printf("%s[%s] %s", params.Ident, ev.Output.Stream, ev.Output.Val)
			case ev.ExitCode != nil:
				exitCode = ev.ExitCode
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return werr.RuntimeError(err, "container run for %s", params.Ident)
	}

	return classifyExitCode(exitCode)
}

func classifyExitCode(code *int) error {
	if code == nil {
		return werr.RuntimeError(fmt.Errorf("None"), "container exited without a code")
	}
	if *code == 0 {
		return nil
	}
	return werr.RuntimeError(fmt.Errorf("%d", *code), "container exited non-zero")
}
