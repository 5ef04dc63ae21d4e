// Package plotexec drives a Plot to completion (spec.md §4.5): it owns
// a per-invocation temporary workspace, walks plotgraph's Kahn
// traversal, lowers and runs each ready step's formula, gathers its
// outputs, and packs the plot's own outputs at the end. It follows the
// teacher's internal/eventbus shape — a small struct holding injected
// collaborators, a sequential dispatch loop, log.Printf for
// non-fatal progress — generalized from "fan out an event to
// subscribers" to "fan out a plot to its steps."
package plotexec

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/warpsys/warpforge/internal/config"
	"github.com/warpsys/warpforge/internal/executor"
	"github.com/warpsys/warpforge/internal/formula"
	"github.com/warpsys/warpforge/internal/lowering"
	"github.com/warpsys/warpforge/internal/ociref"
	"github.com/warpsys/warpforge/internal/ordmap"
	"github.com/warpsys/warpforge/internal/packer"
	"github.com/warpsys/warpforge/internal/plot"
	"github.com/warpsys/warpforge/internal/plotgraph"
	"github.com/warpsys/warpforge/internal/wareid"
	"github.com/warpsys/warpforge/internal/werr"
)

var logger = log.New(os.Stderr, "warpforge/plotexec: ", log.LstdFlags)

var (
	tracer       = otel.Tracer("github.com/warpsys/warpforge/plotexec")
	meter        = otel.Meter("github.com/warpsys/warpforge/plotexec")
	stepsTotal   metric.Int64Counter
	stepDuration metric.Float64Histogram
)

func init() {
	// Errors here mean no meter provider is registered yet; the SDK
	// still hands back a usable no-op instrument, so there is nothing
	// to recover beyond ignoring the error (mirrors the teacher's own
	// otel.Tracer() calls, which never check for a returned error either).
	stepsTotal, _ = meter.Int64Counter("warpforge.steps.total")
	stepDuration, _ = meter.Float64Histogram("warpforge.steps.duration_ms")
}

// PlotExecutor runs a Plot end to end. Unpacker and Executor are
// injected collaborators (the external OCI pull, the container runtime)
// exactly as spec.md §1 scopes them out of the core.
type PlotExecutor struct {
	Unpacker ociref.Unpacker
	Executor executor.Executor

	// ErsatzRoot is the parent directory for the per-invocation
	// temporary workspace. Empty means config.GetErsatzRoot().
	ErsatzRoot string

	// OutputDestRoot is where the plot's own outputs are packed
	// (spec.md §4.5 Finalization).
	OutputDestRoot string
}

// Run executes plot p to completion: validates the graph, walks it in
// Kahn order, runs each ready step, and packs the plot's own outputs.
// The temporary workspace is created fresh and removed on every exit
// path (spec.md §5 "Workspace hygiene").
func (pe *PlotExecutor) Run(ctx context.Context, p *plot.Plot) ([]packer.Output, error) {
	g := plotgraph.Build(p)
	if err := g.ValidateDependenciesExist(); err != nil {
		return nil, werr.SetupCauseless("%s", err.Error())
	}
	if err := g.ValidateNoCycles(); err != nil {
		return nil, werr.SetupCauseless("%s", err.Error())
	}

	root := pe.ErsatzRoot
	if root == "" {
		root = config.GetErsatzRoot()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, werr.SetupError(err, "create ersatz root %s", root)
	}
	tempDir, err := os.MkdirTemp(root, "plot-")
	if err != nil {
		return nil, werr.SetupError(err, "create plot workspace")
	}
	defer os.RemoveAll(tempDir)

	traversal := plotgraph.NewTraversal(g)
	for {
		name, ok := traversal.Next()
		if !ok {
			break
		}
		step, _ := g.Step(name)
		if err := pe.runStep(ctx, p, name, step, tempDir); err != nil {
			return nil, err
		}
		traversal.Advance(name)
	}

	return pe.finalize(p, tempDir)
}

func (pe *PlotExecutor) runStep(ctx context.Context, p *plot.Plot, name string, step plot.Step, tempDir string) (retErr error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "warpforge/plotexec.Step", trace.WithAttributes(attribute.String("warpforge.step", name)))
	defer func() {
		stepsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("warpforge.step", name), attribute.Bool("warpforge.success", retErr == nil)))
		stepDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("warpforge.step", name)))
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, retErr.Error())
		}
		span.End()
	}()

	if step.Plot != nil {
		return werr.SetupCauseless("sub-plots are not implemented (step '%s')", name)
	}
	pf := step.Protoformula
	if pf == nil {
		return werr.SetupCauseless("step '%s' has no variant set", name)
	}

	image := pf.Image
	if image == nil {
		image = p.Image
	}
	if image == nil {
		return werr.SetupCauseless("invalid plot (step '%s'): image required", name)
	}

	f, err := buildFormula(tempDir, name, image, pf)
	if err != nil {
		return err
	}

	outputPath := filepath.Join(tempDir, name, "outputs")
	outputMounts, err := gatherMounts(name, pf, outputPath)
	if err != nil {
		return err
	}

	ersatzDir := filepath.Join(tempDir, name, "ersatz")
	if err := os.MkdirAll(ersatzDir, 0o755); err != nil {
		return werr.SetupError(err, "create ersatz dir for step '%s'", name)
	}

	lockPath := ersatzDir + ".lock"
	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return werr.SetupError(err, "lock ersatz workspace for step '%s'", name)
	}
	defer fl.Unlock()

	lowered, err := lowering.Lower(f, ersatzDir)
	if err != nil {
		return err
	}
	lowered.Mounts = append(lowered.Mounts, outputMounts...)

	ident := executor.NewIdent()
	bundlePath := filepath.Join(ersatzDir, ident)
	rootPath, err := pe.acquireBundle(ctx, image, bundlePath)
	if err != nil {
		return err
	}

	network := config.GetDefaultNetwork()
	if lowered.Network != nil {
		network = *lowered.Network
	}
	params := executor.ContainerParams{
		Ident:       ident,
		RuntimePath: config.GetRuntimePath(),
		Command:     lowered.Command,
		Mounts:      lowered.Mounts,
		Environment: lowered.Environment,
		RootPath:    rootPath,
		Network:     network,
	}
	if err := executor.StageBundleConfig(params, image.Readonly); err != nil {
		return err
	}

	if err := executor.RunFormula(ctx, pe.Executor, params); err != nil {
		return werr.RuntimeError(err, "failed step '%s'", name)
	}

	logger.Printf("step '%s'", name)
	if pf.Outputs != nil {
		pf.Outputs.Range(func(label string, _ formula.GatherDirective) bool {
			hostPath := filepath.Join(outputPath, label)
			digest, derr := packer.DigestTree(hostPath)
			if derr != nil {
				err = derr
				return false
			}
			logger.Printf("  %s %s", digest, label)
			return true
		})
	}
	return err
}

// acquireBundle parses image.Reference, unpacks it via pe.Unpacker into
// bundlePath, checks that bundlePath/rootfs exists, and returns
// bundlePath, the OCI bundle directory (spec.md §4.2). A parse
// failure is Catchall; an unpack failure surfaces as SystemSetupError.
func (pe *PlotExecutor) acquireBundle(ctx context.Context, image *formula.Image, bundlePath string) (string, error) {
	ref, err := ociref.Parse(image.Reference)
	if err != nil {
		return "", err
	}
	if pe.Unpacker == nil {
		return "", werr.SetupCauseless("no image unpacker configured")
	}
	if err := pe.Unpacker.Unpack(ctx, ref, ociref.Anonymous, bundlePath); err != nil {
		return "", werr.SetupError(err, "unpack image %s", image.Reference)
	}
	rootfs := filepath.Join(bundlePath, "rootfs")
	if _, err := os.Stat(rootfs); err != nil {
		return "", ociref.ErrNoRootfs(bundlePath)
	}
	return bundlePath, nil
}

// buildFormula translates a Protoformula's StepInputs into a
// formula.Formula (spec.md §4.5 step 4): Ware/Mount/Literal pass
// through unchanged, non-empty Pipe inputs lower to a read-only mount of
// the referenced step's gathered output.
func buildFormula(tempDir, name string, image *formula.Image, pf *plot.Protoformula) (*formula.Formula, error) {
	inputs := ordmap.New[formula.FormulaInput]()
	if pf.Inputs != nil {
		var failure error
		pf.Inputs.Range(func(port string, in plot.StepInput) bool {
			switch {
			case in.Ware != nil:
				inputs.Set(port, *in.Ware)
			case in.Pipe != nil:
				if in.Pipe.StepName == "" {
					failure = werr.SetupCauseless("step '%s': plot-level pipe inputs are not implemented", name)
					return false
				}
				source := pipeSourcePath(tempDir, in.Pipe.StepName, string(in.Pipe.Label))
				inputs.Set(port, formula.MountInput(formula.Mount{Kind: formula.MountReadOnly, HostPath: source}))
			default:
				failure = werr.SetupCauseless("step '%s': input '%s' has no variant set", name, port)
				return false
			}
			return true
		})
		if failure != nil {
			return nil, failure
		}
	}

	return &formula.Formula{
		Image:   *image,
		Inputs:  inputs,
		Action:  pf.Action,
		Outputs: pf.Outputs,
	}, nil
}

// pipeSourcePath resolves a Pipe to its host path, <tempDir>/<step>/outputs/<label>
// (spec.md §6.3), the host side of the read-only mount a Pipe input
// lowers to and the host side a plot output packs from.
func pipeSourcePath(tempDir, stepName, label string) string {
	return filepath.Join(tempDir, stepName, "outputs", label)
}

// gatherMounts builds the read-write mount table that exposes each of a
// step's GatherDirective targets to the sandbox, and validates that
// every present packtype is "none" (spec.md §3.3, §4.5 step 5 — per-step
// packing is disabled inside a plot).
func gatherMounts(name string, pf *plot.Protoformula, outputPath string) ([]executor.MountSpec, error) {
	if pf.Outputs == nil {
		return nil, nil
	}
	var mounts []executor.MountSpec
	var failure error
	pf.Outputs.Range(func(label string, dir formula.GatherDirective) bool {
		if dir.Packtype != nil && *dir.Packtype != wareid.PacktypeNone {
			failure = werr.SetupCauseless("invalid plot (step '%s'): output packtype has to be 'none'", name)
			return false
		}
		hostPath := filepath.Join(outputPath, label)
		if err := os.MkdirAll(hostPath, 0o755); err != nil {
			failure = werr.SetupError(err, "create output directory for '%s'", label)
			return false
		}
		mounts = append(mounts, executor.MountSpec{
			HostSource:    hostPath,
			SandboxTarget: string(dir.From),
			Readonly:      false,
			Kind:          executor.MountSpecBind,
		})
		return true
	})
	if failure != nil {
		return nil, failure
	}
	return mounts, nil
}

// finalize packs the plot's own outputs (spec.md §4.5 Finalization):
// every plot output is a Pipe resolving to a step's gathered directory,
// packed unconditionally as tar at the plot boundary.
func (pe *PlotExecutor) finalize(p *plot.Plot, tempDir string) ([]packer.Output, error) {
	if p.Outputs == nil {
		return nil, nil
	}

	var intermediates []packer.IntermediateOutput
	p.Outputs.Range(func(label string, out plot.PlotOutput) bool {
		hostPath := pipeSourcePath(tempDir, out.From.StepName, string(out.From.Label))
		intermediates = append(intermediates, packer.IntermediateOutput{
			Name:     label,
			HostPath: hostPath,
			Packtype: packer.OutputPacktypeTar,
		})
		return true
	})

	destRoot := pe.OutputDestRoot
	if destRoot == "" {
		destRoot = "."
	}
	return packer.PackOutputs(destRoot, intermediates)
}
