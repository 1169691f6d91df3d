package conversation

import (
	"encoding/json"
	"maps"
)

// Action is a machine-readable instruction proposed by the reasoning service.
// The payload is schemaless: the only field the core ever interprets is
// "type", which selects the handler at dispatch time. Everything else passes
// through untouched so hosts and handlers see exactly what the model emitted.
type Action map[string]any

// Type returns the action's type discriminant, or "unknown" when absent.
func (a Action) Type() string {
	if t, ok := a["type"].(string); ok && t != "" {
		return t
	}
	return "unknown"
}

// Clone returns a shallow copy of the action payload.
func (a Action) Clone() Action {
	if a == nil {
		return nil
	}
	return maps.Clone(a)
}

// ActionStatus is the terminal status of a dispatched action.
type ActionStatus string

const (
	ActionExecuted ActionStatus = "executed"
	ActionFailed   ActionStatus = "failed"
)

// ExecutedAction is the outcome record for one dispatched action: the
// original payload plus status, an opaque handler result, and an error
// message when the action failed.
type ExecutedAction struct {
	Action Action
	Status ActionStatus
	Result any
	Error  string
}

// MarshalJSON flattens the record into a single object: the action's own
// fields with status/result/error merged in, matching the wire shape hosts
// round-trip. A payload field named "status", "result" or "error" is
// overwritten by the outcome.
func (e ExecutedAction) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Action)+3)
	maps.Copy(out, e.Action)
	out["status"] = string(e.Status)
	if e.Result != nil {
		out["result"] = e.Result
	} else {
		delete(out, "result")
	}
	if e.Error != "" {
		out["error"] = e.Error
	} else {
		delete(out, "error")
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits a flat object back into payload and outcome fields.
func (e *ExecutedAction) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if s, ok := raw["status"].(string); ok {
		e.Status = ActionStatus(s)
	}
	delete(raw, "status")
	e.Result = raw["result"]
	delete(raw, "result")
	if msg, ok := raw["error"].(string); ok {
		e.Error = msg
	}
	delete(raw, "error")
	e.Action = Action(raw)
	return nil
}
