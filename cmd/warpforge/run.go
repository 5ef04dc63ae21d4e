package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/distribution/reference"
	"github.com/spf13/cobra"

	"github.com/warpsys/warpforge/internal/config"
	"github.com/warpsys/warpforge/internal/executor"
	"github.com/warpsys/warpforge/internal/formula"
	"github.com/warpsys/warpforge/internal/lowering"
	"github.com/warpsys/warpforge/internal/ociref"
	"github.com/warpsys/warpforge/internal/plot"
	"github.com/warpsys/warpforge/internal/plotexec"
	"github.com/warpsys/warpforge/internal/werr"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run a formula or a plot",
}

func init() {
	runCmd.AddCommand(&cobra.Command{
		Use:   "formula [file]",
		Short: "lower and run a single formula+context capsule",
		Args:  cobra.ExactArgs(1),
		RunE:  runFormulaCmd,
	})
	runCmd.AddCommand(&cobra.Command{
		Use:   "plot [file]",
		Short: "drive a plot to completion",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlotCmd,
	})
}

// runFormulaCmd mirrors warpforge-cli's original control flow (see
// SPEC_FULL.md §4): read one JSON file containing both the formula.v1
// and context.v1 capsules, decode, lower, execute.
func runFormulaCmd(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return werr.SetupError(err, "read formula file %s", args[0])
	}

	var fc formula.AndContext
	if err := json.Unmarshal(data, &fc); err != nil {
		return werr.InvalidArguments("parse formula file %s: %v", args[0], err)
	}
	if err := fc.Formula.Validate(); err != nil {
		return werr.SetupCauseless("%s", err.Error())
	}

	root := config.GetErsatzRoot()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return werr.SetupError(err, "create ersatz root %s", root)
	}
	ersatzDir, err := os.MkdirTemp(root, "formula-")
	if err != nil {
		return werr.SetupError(err, "create ersatz workspace")
	}
	defer os.RemoveAll(ersatzDir)

	lowered, err := lowering.Lower(fc.Formula, ersatzDir)
	if err != nil {
		return err
	}

	ident := executor.NewIdent()
	rootPath, err := acquireBundle(cmd.Context(), fc.Formula.Image.Reference, ersatzDir, ident)
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
	if err := executor.StageBundleConfig(params, fc.Formula.Image.Readonly); err != nil {
		return err
	}
	return executor.RunFormula(cmd.Context(), executor.RuncExecutor{}, params)
}

func runPlotCmd(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return werr.SetupError(err, "read plot file %s", args[0])
	}

	var p plot.Plot
	if err := json.Unmarshal(data, &p); err != nil {
		return werr.InvalidArguments("parse plot file %s: %v", args[0], err)
	}

	pe := &plotexec.PlotExecutor{
		Unpacker: &ociref.RetryingUnpacker{Next: stubUnpacker{}, MaxElapsed: config.GetUnpackMaxElapsed()},
		Executor: executor.RuncExecutor{},
	}
	outputs, err := pe.Run(cmd.Context(), &p)
	if err != nil {
		return err
	}
	for _, out := range outputs {
		fmt.Printf("%s %s\n", out.Digest, out.Name)
	}
	return nil
}

// acquireBundle is the cmd-level counterpart of internal/plotexec's
// bundle acquisition, used only by `run formula` (which has no plot
// workspace to thread a shared Unpacker through).
func acquireBundle(ctx context.Context, ref string, ersatzDir, ident string) (string, error) {
	parsed, err := ociref.Parse(ref)
	if err != nil {
		return "", err
	}
	bundlePath := filepath.Join(ersatzDir, ident)
	unpacker := &ociref.RetryingUnpacker{Next: stubUnpacker{}, MaxElapsed: config.GetUnpackMaxElapsed()}
	if err := unpacker.Unpack(ctx, parsed, ociref.Anonymous, bundlePath); err != nil {
		return "", err
	}
	return bundlePath, nil
}

// stubUnpacker is the default ociref.Unpacker wired into the CLI: the
// real OCI registry pull is an explicit external collaborator (spec.md
// §1), not a component this module implements. A production deployment
// swaps this for a real `unpack(reference, auth, target_dir)` client.
type stubUnpacker struct{}

func (stubUnpacker) Unpack(_ context.Context, ref reference.Reference, _ ociref.AuthMode, _ string) error {
	return fmt.Errorf("no OCI registry client configured: cannot unpack %s", ref.String())
}
