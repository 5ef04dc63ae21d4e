package formula

import (
	"encoding/json"
	"fmt"
)

// ExecuteAction runs an explicit command vector, optionally with network
// access enabled.
type ExecuteAction struct {
	Command []string `json:"command"`
	Network *bool    `json:"network,omitempty"`
}

// ScriptAction runs an interpreter over a sequence of materialized
// script lines (spec.md §4.3), optionally with network access enabled.
type ScriptAction struct {
	Interpreter string   `json:"interpreter"`
	Contents    []string `json:"contents"`
	Network     *bool    `json:"network,omitempty"`
}

// Action is the internally-tagged union of what a formula does: Echo (a
// vestigial diagnostic placeholder, spec.md §9), Execute, or Script.
// Exactly one field is set.
type Action struct {
	Echo   bool
	Exec   *ExecuteAction
	Script *ScriptAction
}

// EchoAction returns the Echo variant.
func EchoAction() Action { return Action{Echo: true} }

// MarshalJSON emits {"echo":{}}, {"exec":{...}}, or {"script":{...}}
// matching the internally-tagged wire form (spec.md §6.1).
func (a Action) MarshalJSON() ([]byte, error) {
	switch {
	case a.Echo:
		return json.Marshal(map[string]struct{}{"echo": {}})
	case a.Exec != nil:
		return json.Marshal(map[string]*ExecuteAction{"exec": a.Exec})
	case a.Script != nil:
		return json.Marshal(map[string]*ScriptAction{"script": a.Script})
	default:
		return nil, fmt.Errorf("action has no variant set")
	}
}

// UnmarshalJSON decodes the internally-tagged wire form produced by
// MarshalJSON.
func (a *Action) UnmarshalJSON(data []byte) error {
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("action: %w", err)
	}
	if len(wire) != 1 {
		return fmt.Errorf("action: expected exactly one tag, got %d", len(wire))
	}

	for tag, raw := range wire {
		switch tag {
		case "echo":
			*a = Action{Echo: true}
		case "exec":
			var e ExecuteAction
			if err := json.Unmarshal(raw, &e); err != nil {
				return fmt.Errorf("action.exec: %w", err)
			}
			*a = Action{Exec: &e}
		case "script":
			var s ScriptAction
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("action.script: %w", err)
			}
			*a = Action{Script: &s}
		default:
			return fmt.Errorf("action: unknown tag %q", tag)
		}
	}
	return nil
}
