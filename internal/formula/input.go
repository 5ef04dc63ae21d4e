package formula

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/warpsys/warpforge/internal/wareid"
)

// FormulaInput is a tagged union over what a SandboxPort mounts or
// sets: a content-addressed Ware, a host-path Mount, or a Literal
// string (valid only for "$"-ports). On the wire it is a single
// "<discriminant>:<payload>" stringoid (spec.md §6.1), so the in-memory
// representation keeps exactly one of its three pointer fields set.
type FormulaInput struct {
	Ware    *wareid.WareID
	Mount   *Mount
	Literal *string
}

// WareInput builds a Ware-variant FormulaInput.
func WareInput(id wareid.WareID) FormulaInput {
	return FormulaInput{Ware: &id}
}

// MountInput builds a Mount-variant FormulaInput.
func MountInput(m Mount) FormulaInput {
	return FormulaInput{Mount: &m}
}

// LiteralInput builds a Literal-variant FormulaInput.
func LiteralInput(value string) FormulaInput {
	return FormulaInput{Literal: &value}
}

// MarshalJSON renders the "ware:<WareID>" / "mount:<kind>:<host>" /
// "literal:<string>" stringoid form.
func (in FormulaInput) MarshalJSON() ([]byte, error) {
	switch {
	case in.Ware != nil:
		return json.Marshal("ware:" + string(*in.Ware))
	case in.Mount != nil:
		return json.Marshal("mount:" + in.Mount.String())
	case in.Literal != nil:
		return json.Marshal("literal:" + *in.Literal)
	default:
		return nil, fmt.Errorf("formula input has no variant set")
	}
}

// UnmarshalJSON parses the stringoid form produced by MarshalJSON.
func (in *FormulaInput) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("formula input: %w", err)
	}

	discriminant, payload, ok := strings.Cut(s, ":")
	if !ok {
		return fmt.Errorf("invalid formula input %q: expected '<kind>:<payload>'", s)
	}

	switch discriminant {
	case "ware":
		id := wareid.WareID(payload)
		*in = FormulaInput{Ware: &id}
	case "mount":
		m, err := ParseMount(payload)
		if err != nil {
			return fmt.Errorf("formula input %q: %w", s, err)
		}
		*in = FormulaInput{Mount: &m}
	case "literal":
		*in = FormulaInput{Literal: &payload}
	default:
		return fmt.Errorf("invalid formula input discriminant %q", discriminant)
	}
	return nil
}
