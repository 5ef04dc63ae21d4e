// Package plot defines the Plot data model (spec.md §3.3): a DAG of
// named steps, each a Protoformula (a Formula whose inputs may
// additionally pipe from sibling steps) or — reserved, unimplemented per
// spec.md §9 — a sub-Plot, plus a set of named plot outputs piped from
// step outputs.
//
// The package mirrors internal/formula's shape: ordered maps for
// determinism, stringoid tagged unions for Pipe-bearing values, doc
// comments proportional to how load-bearing the field is.
package plot

import (
	"encoding/json"
	"fmt"

	"github.com/warpsys/warpforge/internal/formula"
	"github.com/warpsys/warpforge/internal/ordmap"
)

// Protoformula is a Formula whose inputs may additionally be Pipe
// references to a sibling step's gathered output, rather than only
// Ware/Mount/Literal. It carries its own optional image override
// (spec.md §3.3: "a step's image, if set, takes precedence over the
// plot's").
type Protoformula struct {
	Image   *formula.Image                       `json:"image,omitempty"`
	Inputs  *ordmap.Map[StepInput]               `json:"inputs"`
	Action  formula.Action                       `json:"action"`
	Outputs *ordmap.Map[formula.GatherDirective] `json:"outputs"`
}

// Step is a plot DAG node: exactly one of Protoformula or Plot is set.
// Sub-plots are accepted on the wire (spec.md §9 reserves the field) but
// rejected by internal/plotexec at execution time — core does not
// recurse into nested plots.
type Step struct {
	Protoformula *Protoformula
	Plot         *Plot
}

// MarshalJSON emits the internally-tagged {"protoformula":{...}} or
// {"plot":{...}} wire form.
func (s Step) MarshalJSON() ([]byte, error) {
	switch {
	case s.Protoformula != nil:
		return json.Marshal(map[string]*Protoformula{"protoformula": s.Protoformula})
	case s.Plot != nil:
		return json.Marshal(map[string]*Plot{"plot": s.Plot})
	default:
		return nil, fmt.Errorf("step has no variant set")
	}
}

// UnmarshalJSON decodes the tagged form produced by MarshalJSON.
func (s *Step) UnmarshalJSON(data []byte) error {
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("step: %w", err)
	}
	if len(wire) != 1 {
		return fmt.Errorf("step: expected exactly one tag, got %d", len(wire))
	}

	for tag, raw := range wire {
		switch tag {
		case "protoformula":
			var p Protoformula
			if err := json.Unmarshal(raw, &p); err != nil {
				return fmt.Errorf("step.protoformula: %w", err)
			}
			*s = Step{Protoformula: &p}
		case "plot":
			var p Plot
			if err := json.Unmarshal(raw, &p); err != nil {
				return fmt.Errorf("step.plot: %w", err)
			}
			*s = Step{Plot: &p}
		default:
			return fmt.Errorf("step: unknown tag %q", tag)
		}
	}
	return nil
}

// PlotOutput is a named plot-level output, always a Pipe (spec.md §3.3 —
// a plot can only expose what one of its steps gathered, it cannot
// fabricate a Ware or Literal output directly).
type PlotOutput struct {
	From Pipe
}

// MarshalJSON emits the "pipe:<step>:<label>" stringoid form.
func (o PlotOutput) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.From.String())
}

// UnmarshalJSON parses the stringoid form produced by MarshalJSON.
func (o *PlotOutput) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("plot output: %w", err)
	}
	p, err := parsePipe(s)
	if err != nil {
		return fmt.Errorf("plot output: %w", err)
	}
	o.From = p
	return nil
}

// Plot is a DAG of named steps plus named plot-level outputs (spec.md
// §3.3). An optional default Image applies to any step that does not
// override it.
type Plot struct {
	Image   *formula.Image          `json:"image,omitempty"`
	Steps   *ordmap.Map[Step]       `json:"steps"`
	Outputs *ordmap.Map[PlotOutput] `json:"outputs"`
}
