// Package extract pulls machine-readable action proposals out of free-text
// reasoning-service responses.
package extract

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/noterer/noterer/internal/conversation"
)

const (
	openFence  = "```json"
	closeFence = "```"

	// actionsKey is the object key the reasoning service is prompted to use.
	actionsKey = "proposed_actions"
)

// Extract scans raw for the first ```json fenced block and parses a
// proposed_actions list out of it. The block is removed from the returned
// display text so users never see the machine payload.
//
// Any parse failure degrades silently to (raw, nil): a malformed block means
// "no actions proposed", never an error, because the surrounding text is
// still worth showing verbatim. Only the first fenced block is considered; a
// second block stays in the display text untouched.
func Extract(raw string) (string, []conversation.Action) {
	start := strings.Index(raw, openFence)
	if start < 0 {
		return raw, nil
	}
	rest := raw[start+len(openFence):]
	length := strings.Index(rest, closeFence)
	if length < 0 {
		return raw, nil
	}

	payload := strings.TrimSpace(rest[:length])

	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		slog.Debug("proposal block is not a JSON object", slog.String("error", err.Error()))
		return raw, nil
	}
	rawActions, ok := doc[actionsKey]
	if !ok {
		slog.Debug("proposal block has no proposed_actions key")
		return raw, nil
	}
	var actions []conversation.Action
	if err := json.Unmarshal(rawActions, &actions); err != nil {
		slog.Debug("proposed_actions is not a list of objects", slog.String("error", err.Error()))
		return raw, nil
	}

	end := start + len(openFence) + length + len(closeFence)
	display := strings.TrimSpace(raw[:start] + raw[end:])
	return display, actions
}
