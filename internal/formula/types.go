// Package formula defines the Formula data model (spec.md §3.2): a
// self-contained declarative specification of an image, its sandbox
// inputs, an action to execute, and named outputs to collect. It also
// defines the formula.v1/context.v1 wire capsule (spec.md §6.1).
//
// The package mirrors the shape of the teacher's own internal/formula
// package — an ordered, validated value type per wire concept, doc
// comments proportional to how load-bearing the field is — generalized
// from "workflow template for issues" to "containerized build step."
package formula

import (
	"fmt"
	"strings"

	"github.com/warpsys/warpforge/internal/ordmap"
	"github.com/warpsys/warpforge/internal/wareid"
)

// Image is an OCI image reference plus a rootfs mutability flag.
type Image struct {
	Reference string `json:"reference"`
	Readonly  bool   `json:"readonly"`
}

// SandboxPort names either a sandbox mount target ("/some/path") or an
// environment variable ("$NAME"). The leading character classifies it;
// any other leading character is invalid (spec.md §3.2).
type SandboxPort string

// IsMountPort reports whether p names a filesystem mount target.
func (p SandboxPort) IsMountPort() bool {
	return strings.HasPrefix(string(p), "/")
}

// IsEnvPort reports whether p names an environment variable.
func (p SandboxPort) IsEnvPort() bool {
	return strings.HasPrefix(string(p), "$")
}

// EnvName returns the environment variable name for a "$"-port (the
// port string with its leading "$" stripped). Callers should check
// IsEnvPort first.
func (p SandboxPort) EnvName() string {
	return strings.TrimPrefix(string(p), "$")
}

// LocalLabel names a formula or plot output.
type LocalLabel string

// GatherDirective instructs the executor to collect a sandbox path as a
// named output.
type GatherDirective struct {
	From     SandboxPort      `json:"from"`
	Packtype *wareid.Packtype `json:"packtype,omitempty"`
}

// Formula bundles an image, ordered sandbox inputs, an action, and
// ordered named outputs (spec.md §3.2).
type Formula struct {
	Image   Image                        `json:"image"`
	Inputs  *ordmap.Map[FormulaInput]    `json:"inputs"`
	Action  Action                       `json:"action"`
	Outputs *ordmap.Map[GatherDirective] `json:"outputs"`
}

// FormulaContext carries the warehouse addresses a formula's Ware inputs
// resolve against.
type FormulaContext struct {
	Warehouses *ordmap.Map[wareid.WarehouseAddr] `json:"warehouses"`
}

// NewContext returns an empty FormulaContext ready for use.
func NewContext() *FormulaContext {
	return &FormulaContext{Warehouses: ordmap.New[wareid.WarehouseAddr]()}
}

// Validate checks the structural invariants from spec.md §3.3 that apply
// to a single formula in isolation: $-ports only accept Literal, /-ports
// reject Literal, and every port string is well-formed. It does not
// perform full lowering (internal/lowering does that, producing mounts
// and environment alongside the same checks).
func (f *Formula) Validate() error {
	if f.Inputs == nil {
		return nil
	}
	var bad error
	f.Inputs.Range(func(port string, in FormulaInput) bool {
		p := SandboxPort(port)
		switch {
		case p.IsEnvPort():
			if p.EnvName() == "" {
				bad = fmt.Errorf("environment variable with empty name")
				return false
			}
			if in.Literal == nil {
				bad = fmt.Errorf("value of environment variable '%s' has to be literal", p.EnvName())
				return false
			}
		case p.IsMountPort():
			if in.Literal != nil {
				bad = fmt.Errorf("formula input '%s': 'literal' not supported, use 'ware' or 'mount'", port)
				return false
			}
		default:
			bad = fmt.Errorf("invalid formula input '%s'", port)
			return false
		}
		return true
	})
	return bad
}
