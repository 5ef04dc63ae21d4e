// Package lowering translates a formula.Formula's declarative inputs
// and action into the concrete mount table, environment list, and
// command vector a container runtime needs (spec.md §4.2), including
// script materialization (§4.3). It follows the shape the teacher uses
// in internal/formula/instantiate.go: walk an ordered collection once,
// accumulate into a result, fail fast on the first bad entry with a
// descriptive, spec-worded error.
package lowering

import (
	"os"
	"path/filepath"
	"strconv"

	specs "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/warpsys/warpforge/internal/executor"
	"github.com/warpsys/warpforge/internal/formula"
	"github.com/warpsys/warpforge/internal/werr"
)

// containerBasePath is the fixed sandbox mountpoint script materialization
// uses (spec.md §4.3).
const containerBasePath = "/.warpforge.container"

// rootfsMediaType documents the bundle's rootfs layout using the OCI
// image-spec constant, rather than a bare string, so a future non-"none"
// gather packtype has a typed home to reference (spec.md §4.2's bundle
// bookkeeping; see DESIGN.md).
const rootfsMediaType = specs.MediaTypeImageLayer

// Lowered is the result of lowering a formula: a mount table and
// environment in input order, plus the command vector to execute.
type Lowered struct {
	Mounts      []executor.MountSpec
	Environment []executor.EnvVar
	Command     []string

	// Network is the action's own network flag, nil when the action
	// leaves it unset and the configured default should apply.
	Network *bool
}

// Lower implements spec.md §4.2: classifies every formula input by its
// SandboxPort, builds the mount table and environment, and lowers the
// formula's Action into a command vector (delegating Script actions to
// MaterializeScript). ersatzDir is the per-invocation temporary
// workspace; script materialization writes under
// <ersatzDir>/script.
func Lower(f *formula.Formula, ersatzDir string) (*Lowered, error) {
	out := &Lowered{}

	if f.Inputs != nil {
		var failure error
		f.Inputs.Range(func(port string, in formula.FormulaInput) bool {
			p := formula.SandboxPort(port)
			switch {
			case p == "":
				failure = werr.SetupCauseless("invalid formula input '%s'", port)
			case p.IsEnvPort():
				failure = lowerEnvPort(out, p, in)
			case p.IsMountPort():
				failure = lowerMountPort(out, p, in)
			default:
				failure = werr.SetupCauseless("invalid formula input '%s'", port)
			}
			return failure == nil
		})
		if failure != nil {
			return nil, failure
		}
	}

	command, err := lowerAction(f.Action, ersatzDir, out)
	if err != nil {
		return nil, err
	}
	out.Command = command

	return out, nil
}

func lowerEnvPort(out *Lowered, p formula.SandboxPort, in formula.FormulaInput) error {
	name := p.EnvName()
	if name == "" {
		return werr.SetupCauseless("environment variable with empty name")
	}
	if in.Literal == nil {
		return werr.SetupCauseless("value of environment variable '%s' has to be literal", name)
	}
	out.Environment = append(out.Environment, executor.EnvVar{Name: name, Value: *in.Literal})
	return nil
}

func lowerMountPort(out *Lowered, p formula.SandboxPort, in formula.FormulaInput) error {
	switch {
	case in.Ware != nil:
		// reserved: the core records the intent but does not fetch wares
		// (spec.md §4.2).
		return werr.SetupCauseless("formula input '%s': ware inputs are not implemented", string(p))
	case in.Mount != nil:
		switch in.Mount.Kind {
		case formula.MountReadOnly:
			out.Mounts = append(out.Mounts, executor.MountSpec{
				HostSource: in.Mount.HostPath, SandboxTarget: string(p), Readonly: true, Kind: executor.MountSpecBind,
			})
			return nil
		case formula.MountReadWrite:
			out.Mounts = append(out.Mounts, executor.MountSpec{
				HostSource: in.Mount.HostPath, SandboxTarget: string(p), Readonly: false, Kind: executor.MountSpecBind,
			})
			return nil
		case formula.MountOverlay:
			return werr.SetupCauseless("formula input '%s': overlay mounts are not implemented", string(p))
		default:
			return werr.SetupCauseless("formula input '%s': invalid mount kind '%s'", string(p), in.Mount.Kind)
		}
	case in.Literal != nil:
		return werr.SetupCauseless("formula input '%s': 'literal' not supported, use 'ware' or 'mount'", string(p))
	default:
		return werr.SetupCauseless("invalid formula input '%s'", string(p))
	}
}

func lowerAction(a formula.Action, ersatzDir string, out *Lowered) ([]string, error) {
	switch {
	case a.Echo:
		return []string{"echo", `what is the "Echo" Action for?`}, nil
	case a.Exec != nil:
		out.Network = a.Exec.Network
		command := make([]string, len(a.Exec.Command))
		copy(command, a.Exec.Command)
		return command, nil
	case a.Script != nil:
		out.Network = a.Script.Network
		return MaterializeScript(a.Script, ersatzDir, out)
	default:
		return nil, werr.SetupCauseless("formula action has no variant set")
	}
}

// MaterializeScript writes a Script action's interpreter lines to disk
// under <ersatzDir>/script, registers the read-only mount that exposes
// them to the sandbox, and returns the command vector that invokes them
// (spec.md §4.3).
func MaterializeScript(s *formula.ScriptAction, ersatzDir string, out *Lowered) ([]string, error) {
	scriptDir := filepath.Join(ersatzDir, "script")

	if _, err := os.Stat(scriptDir); err == nil {
		return nil, werr.SetupCauseless("script directory already existed at %s", scriptDir)
	} else if !os.IsNotExist(err) {
		return nil, classifyIOError(err, "stat script directory")
	}

	if err := os.MkdirAll(scriptDir, 0o755); err != nil {
		return nil, classifyIOError(err, "create script directory")
	}

	runPath := filepath.Join(scriptDir, "run")
	var runContents string
	for n, line := range s.Contents {
		entryName := entryFileName(n)
		entryPath := filepath.Join(scriptDir, entryName)
		if err := os.WriteFile(entryPath, []byte(line+"\n"), 0o644); err != nil {
			return nil, classifyIOError(err, "write script entry")
		}
		runContents += ". " + containerBasePath + "/script/" + entryName + "\n"
	}
	if err := os.WriteFile(runPath, []byte(runContents), 0o644); err != nil {
		return nil, classifyIOError(err, "write script run file")
	}

	out.Mounts = append(out.Mounts, executor.MountSpec{
		HostSource:    scriptDir,
		SandboxTarget: containerBasePath + "/script",
		Readonly:      true,
		Kind:          executor.MountSpecBind,
	})

	return []string{s.Interpreter, containerBasePath + "/script/run"}, nil
}

func entryFileName(n int) string {
	return "entry-" + strconv.Itoa(n)
}

func classifyIOError(err error, what string) error {
	if os.IsPermission(err) {
		return werr.SetupError(err, "%s", what)
	}
	return werr.RuntimeError(err, "%s", what)
}
