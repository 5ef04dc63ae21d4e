package plot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/warpsys/warpforge/internal/formula"
)

// Pipe names a source step's gathered output as a step input or a plot
// output (spec.md §3.3). An empty StepName means "this plot's own input
// set", not a sibling step. It parses and round-trips, but
// internal/plotexec rejects such a step input as not implemented, and
// plotgraph draws no edge for it.
type Pipe struct {
	StepName string
	Label    formula.LocalLabel
}

// String renders the "pipe:<step>:<label>" stringoid form (StepName may
// be empty, yielding "pipe::<label>").
func (p Pipe) String() string {
	return "pipe:" + p.StepName + ":" + string(p.Label)
}

// parsePipe parses the "pipe:<step>:<label>" stringoid form. StepName may
// be empty; Label must not be, since an output with no name cannot be
// gathered (spec.md §3.3).
func parsePipe(s string) (Pipe, error) {
	discriminant, rest, ok := strings.Cut(s, ":")
	if !ok || discriminant != "pipe" {
		return Pipe{}, fmt.Errorf("invalid pipe %q: expected 'pipe:<step>:<label>'", s)
	}
	stepName, label, ok := strings.Cut(rest, ":")
	if !ok {
		return Pipe{}, fmt.Errorf("invalid pipe %q: expected 'pipe:<step>:<label>'", s)
	}
	if label == "" {
		return Pipe{}, fmt.Errorf("invalid pipe %q: empty label", s)
	}
	return Pipe{StepName: stepName, Label: formula.LocalLabel(label)}, nil
}

// StepInput is a tagged union over what a Protoformula's SandboxPort
// accepts: everything formula.FormulaInput accepts (Ware/Mount/Literal),
// plus a Pipe from a sibling step's output. CatalogRef and Ingest
// variants are reserved on the wire by spec.md §4.5 step 4 but are
// unimplemented — parsing one yields an error naming it, rather than
// silently dropping it.
type StepInput struct {
	Ware *formula.FormulaInput // wraps Ware/Mount/Literal, never both set
	Pipe *Pipe
}

// WareStepInput lifts a plain formula.FormulaInput (Ware, Mount, or
// Literal) into a StepInput.
func WareStepInput(in formula.FormulaInput) StepInput {
	return StepInput{Ware: &in}
}

// PipeStepInput builds a Pipe-variant StepInput.
func PipeStepInput(p Pipe) StepInput {
	return StepInput{Pipe: &p}
}

// MarshalJSON renders the underlying FormulaInput stringoid form, or the
// "pipe:<step>:<label>" form.
func (in StepInput) MarshalJSON() ([]byte, error) {
	switch {
	case in.Ware != nil:
		return json.Marshal(*in.Ware)
	case in.Pipe != nil:
		return json.Marshal(in.Pipe.String())
	default:
		return nil, fmt.Errorf("step input has no variant set")
	}
}

// UnmarshalJSON parses the stringoid form produced by MarshalJSON,
// dispatching on the leading discriminant the same way
// formula.FormulaInput does.
func (in *StepInput) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("step input: %w", err)
	}

	discriminant, _, ok := strings.Cut(s, ":")
	if !ok {
		return fmt.Errorf("invalid step input %q: expected '<kind>:<payload>'", s)
	}

	switch discriminant {
	case "pipe":
		p, err := parsePipe(s)
		if err != nil {
			return fmt.Errorf("step input: %w", err)
		}
		*in = StepInput{Pipe: &p}
	case "catalog", "ingest":
		return fmt.Errorf("step input %q: %s references are not supported", s, discriminant)
	default:
		var fi formula.FormulaInput
		if err := json.Unmarshal(data, &fi); err != nil {
			return fmt.Errorf("step input: %w", err)
		}
		*in = StepInput{Ware: &fi}
	}
	return nil
}
