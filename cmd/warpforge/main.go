// Command warpforge is the thin CLI entrypoint over the plot/formula
// execution core: `run formula` lowers and runs a single formula+context
// capsule, `run plot` drives a whole plot to completion. Argument
// parsing beyond this dispatch is explicitly out of scope (spec.md §1);
// command bodies here are a few lines each, deferring immediately into
// internal/lowering, internal/executor, and internal/plotexec, the way
// the teacher's cmd/bd/main.go wires cobra subcommands straight into
// internal/ packages.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warpsys/warpforge/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "warpforge",
	Short: "warpforge - reproducible, content-addressed build plots",
	Long:  `Execute plot/formula build graphs as containerized steps on an OCI-compatible runtime.`,
}

func main() {
	if err := config.Initialize(); err != nil {
		fmt.Fprintln(os.Stderr, "warpforge: config:", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(runCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTelemetry, err := setupTelemetry(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "warpforge: telemetry:", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "warpforge:", err)
		os.Exit(1)
	}
}
