// Package executor runs a lowered formula's container and streams its
// output. The contract (spec.md §4.4) is opaque to the graph: Executor
// receives everything it needs as ContainerParams and publishes Events
// on a sink, the way the teacher's internal/hooks package shells out to
// an external binary and reports structured results back through a
// narrow return type rather than letting callers reach into process
// internals.
package executor

import "context"

// MountSpec is one bind or overlay mount into the sandbox (spec.md
// §3.5).
type MountSpec struct {
	HostSource    string
	SandboxTarget string
	Readonly      bool
	Kind          MountSpecKind
}

// MountSpecKind discriminates a MountSpec's underlying mechanism.
type MountSpecKind string

const (
	MountSpecBind    MountSpecKind = "bind"
	MountSpecOverlay MountSpecKind = "overlay"
)

// ContainerParams is everything a container run needs, already lowered
// (spec.md §3.5). Mounts and Environment preserve the insertion order of
// the originating formula.
type ContainerParams struct {
	Ident       string
	RuntimePath string
	Command     []string
	Mounts      []MountSpec
	Environment []EnvVar
	RootPath    string

	// Network grants the container network access. Resolved by the
	// caller from the action's own flag, falling back to the configured
	// default; injected into the runtime's bundle configuration alongside
	// Mounts and Environment.
	Network bool
}

// EnvVar is one (name, value) pair, kept as a slice rather than a map on
// ContainerParams to preserve formula input order through to the
// container's process environment (spec.md §5 determinism).
type EnvVar struct {
	Name  string
	Value string
}

// Output is one line of captured container stdio.
type Output struct {
	Stream string // "stdout" or "stderr"
	Val    string
}

// Event is one message on an executor's outbox: either an Output line or
// the final ExitCode, which terminates the stream (spec.md §4.4).
type Event struct {
	Output   *Output
	ExitCode *int // nil means "no" exit code was observed (process killed, etc.)
}

// Executor runs a container to completion, publishing Events on outbox
// as it goes. Implementations must send exactly one ExitCode event
// before returning, even on failure, so RunFormula's consumer goroutine
// always has a terminal value to report.
type Executor interface {
	Run(ctx context.Context, params ContainerParams, outbox chan<- Event) error
}
