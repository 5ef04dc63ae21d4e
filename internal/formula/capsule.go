package formula

import (
	"encoding/json"
	"fmt"
)

// capsuleFormulaVersion and capsuleContextVersion are the version tags
// this module speaks (spec.md §6.1). A future wire version would add a
// sibling constant and a branch in UnmarshalJSON, not replace these.
const (
	capsuleFormulaVersion = "formula.v1"
	capsuleContextVersion = "context.v1"
)

// AndContext pairs a Formula with its FormulaContext, matching the
// top-level JSON object documented in spec.md §6.1:
//
//	{"formula":{"formula.v1":<Formula>},"context":{"context.v1":<FormulaContext>}}
type AndContext struct {
	Formula *Formula
	Context *FormulaContext
}

// MarshalJSON emits the versioned capsule wrapper.
func (fc AndContext) MarshalJSON() ([]byte, error) {
	wire := struct {
		Formula map[string]*Formula        `json:"formula"`
		Context map[string]*FormulaContext `json:"context,omitempty"`
	}{
		Formula: map[string]*Formula{capsuleFormulaVersion: fc.Formula},
	}
	if fc.Context != nil {
		wire.Context = map[string]*FormulaContext{capsuleContextVersion: fc.Context}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the versioned capsule wrapper produced by
// MarshalJSON.
func (fc *AndContext) UnmarshalJSON(data []byte) error {
	var wire struct {
		Formula map[string]json.RawMessage `json:"formula"`
		Context map[string]json.RawMessage `json:"context"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("formula capsule: %w", err)
	}

	raw, ok := wire.Formula[capsuleFormulaVersion]
	if !ok {
		return fmt.Errorf("formula capsule: missing %q", capsuleFormulaVersion)
	}
	var f Formula
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("formula capsule: %w", err)
	}
	fc.Formula = &f

	if rawCtx, ok := wire.Context[capsuleContextVersion]; ok {
		var c FormulaContext
		if err := json.Unmarshal(rawCtx, &c); err != nil {
			return fmt.Errorf("context capsule: %w", err)
		}
		fc.Context = &c
	}
	return nil
}
