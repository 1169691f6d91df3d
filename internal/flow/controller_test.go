package flow

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/noterer/noterer/internal/ai"
	"github.com/noterer/noterer/internal/conversation"
	"github.com/noterer/noterer/internal/dispatch"
)

// stubClient returns canned responses and records what it was asked.
type stubClient struct {
	response string
	err      error

	lastPrompt string
	lastItems  []ai.ContextItem
}

func (s *stubClient) Query(ctx context.Context, prompt string, items []ai.ContextItem) (*ai.QueryResult, error) {
	s.lastPrompt = prompt
	s.lastItems = items
	if s.err != nil {
		return nil, s.err
	}
	return &ai.QueryResult{Response: s.response}, nil
}

func TestProcessUserInput_WithProposal(t *testing.T) {
	client := &stubClient{
		response: "I'll add a note about stoicism.\n\n" +
			"```json\n" +
			`{"proposed_actions": [{"type": "create_note", "content": "stoicism"}]}` +
			"\n```",
	}
	ctrl := New(client)
	conv := conversation.New("c1")

	result, err := ctrl.ProcessUserInput(context.Background(), conv, "Add a note about stoicism", nil)
	if err != nil {
		t.Fatalf("ProcessUserInput() error = %v", err)
	}

	if !result.RequiresConfirmation {
		t.Error("RequiresConfirmation = false, want true")
	}
	if len(result.ProposedActions) != 1 || result.ProposedActions[0].Type() != "create_note" {
		t.Errorf("ProposedActions = %v", result.ProposedActions)
	}
	if strings.Contains(result.Response, "```") {
		t.Errorf("machine payload leaked into response: %q", result.Response)
	}
	if result.State != conversation.StateAwaitingConfirmation {
		t.Errorf("State = %v, want %v", result.State, conversation.StateAwaitingConfirmation)
	}
	if !strings.Contains(client.lastPrompt, "Add a note about stoicism") {
		t.Error("user input missing from analysis prompt")
	}
}

func TestProcessUserInput_NoActions(t *testing.T) {
	client := &stubClient{response: "Stoicism is a school of Hellenistic philosophy."}
	ctrl := New(client)
	conv := conversation.New("c1")

	result, err := ctrl.ProcessUserInput(context.Background(), conv, "What is stoicism?", nil)
	if err != nil {
		t.Fatalf("ProcessUserInput() error = %v", err)
	}

	if result.RequiresConfirmation {
		t.Error("RequiresConfirmation = true, want false for zero actions")
	}
	if result.Response != client.response {
		t.Errorf("Response = %q, want response unchanged", result.Response)
	}
	if result.State != conversation.StateAwaitingConfirmation {
		t.Errorf("State = %v", result.State)
	}
}

func TestProcessUserInput_IncludesHistory(t *testing.T) {
	client := &stubClient{response: "ok"}
	ctrl := New(client)
	conv := conversation.New("c1")

	// Close one turn so there is history to render.
	ctrl.ProcessUserInput(context.Background(), conv, "first", nil)
	ctrl.ProcessConfirmation(context.Background(), conv, false, nil)

	extra := []ai.ContextItem{{Type: "note", Content: "existing note"}}
	_, err := ctrl.ProcessUserInput(context.Background(), conv, "second", extra)
	if err != nil {
		t.Fatalf("ProcessUserInput() error = %v", err)
	}

	var historyItem *ai.ContextItem
	for i := range client.lastItems {
		if client.lastItems[i].Type == ai.ContextConversationHistory {
			historyItem = &client.lastItems[i]
		}
	}
	if historyItem == nil {
		t.Fatalf("no history context item in %v", client.lastItems)
	}
	if !strings.Contains(historyItem.Content, "User: first") {
		t.Errorf("history missing prior turn: %q", historyItem.Content)
	}
	if !strings.Contains(historyItem.Content, "Current Turn:\nUser: second") {
		t.Errorf("history missing current input: %q", historyItem.Content)
	}
	// Caller-supplied context travels alongside the history, tagged apart.
	if client.lastItems[0].Type != "note" {
		t.Errorf("extra context lost: %v", client.lastItems)
	}
}

func TestProcessUserInput_ServiceError(t *testing.T) {
	client := &stubClient{err: errors.New("upstream unavailable")}
	ctrl := New(client)
	conv := conversation.New("c1")

	result, err := ctrl.ProcessUserInput(context.Background(), conv, "hello", nil)

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("error = %v, want *ServiceError", err)
	}
	if result == nil {
		t.Fatal("expected a result alongside the service error")
	}
	if !strings.Contains(result.Response, "upstream unavailable") {
		t.Errorf("Response = %q", result.Response)
	}
	if result.State != conversation.StateError {
		t.Errorf("State = %v, want %v", result.State, conversation.StateError)
	}
	// The turn stays open; recovery is a fresh turn.
	if !conv.HasCurrentTurn() {
		t.Error("turn should remain open after a service failure")
	}
	ctrl2 := New(&stubClient{response: "recovered"})
	if _, err := ctrl2.ProcessUserInput(context.Background(), conv, "again", nil); err != nil {
		t.Fatalf("recovery ProcessUserInput() error = %v", err)
	}
	if conv.State != conversation.StateAwaitingConfirmation {
		t.Errorf("State after recovery = %v", conv.State)
	}
}

func TestProcessConfirmation_Rejected(t *testing.T) {
	ctrl := New(&stubClient{response: "plan\n```json\n{\"proposed_actions\": [{\"type\": \"create_note\"}]}\n```"})
	conv := conversation.New("c1")
	ctrl.ProcessUserInput(context.Background(), conv, "do it", nil)

	result, err := ctrl.ProcessConfirmation(context.Background(), conv, false, dispatch.Registry{})
	if err != nil {
		t.Fatalf("ProcessConfirmation() error = %v", err)
	}

	if result.Confirmed {
		t.Error("Confirmed = true, want false")
	}
	if len(result.ExecutedActions) != 0 {
		t.Errorf("ExecutedActions = %v, want empty", result.ExecutedActions)
	}
	if result.Response != "Actions cancelled as requested." {
		t.Errorf("Response = %q", result.Response)
	}
	if result.State != conversation.StateAwaitingUserInput {
		t.Errorf("State = %v", result.State)
	}
	if conv.HasCurrentTurn() {
		t.Error("rejection should have closed the turn")
	}
}

func TestProcessConfirmation_NoActiveTurn(t *testing.T) {
	ctrl := New(&stubClient{})
	conv := conversation.New("c1")

	_, err := ctrl.ProcessConfirmation(context.Background(), conv, true, dispatch.Registry{})
	if !errors.Is(err, conversation.ErrNoActiveTurn) {
		t.Errorf("error = %v, want ErrNoActiveTurn", err)
	}
}

func TestProcessConfirmation_PartialFailure(t *testing.T) {
	ctrl := New(&stubClient{
		response: "plan\n```json\n" +
			`{"proposed_actions": [{"type": "create_note", "content": "x"}, {"type": "create_concept", "name": "y"}]}` +
			"\n```",
	})
	conv := conversation.New("c1")
	ctrl.ProcessUserInput(context.Background(), conv, "do both", nil)

	handlers := dispatch.Registry{
		"create_note": dispatch.HandlerFunc(func(ctx context.Context, a conversation.Action) (any, error) {
			return map[string]any{"note_id": "n1"}, nil
		}),
	}

	result, err := ctrl.ProcessConfirmation(context.Background(), conv, true, handlers)
	if err != nil {
		t.Fatalf("ProcessConfirmation() error = %v", err)
	}

	if len(result.ExecutedActions) != 2 {
		t.Fatalf("len(ExecutedActions) = %d, want 2", len(result.ExecutedActions))
	}
	if result.ExecutedActions[0].Status != conversation.ActionExecuted {
		t.Errorf("first action status = %v, want executed", result.ExecutedActions[0].Status)
	}
	if result.ExecutedActions[1].Status != conversation.ActionFailed {
		t.Errorf("second action status = %v, want failed", result.ExecutedActions[1].Status)
	}
	if !strings.Contains(result.Response, "No handler available for action type: create_concept") {
		t.Errorf("Response = %q, want failure reason", result.Response)
	}
	// The successful action's result is preserved alongside the failure.
	succeeded, _ := result.ExecutedActions[0].Result.(map[string]any)
	if succeeded["note_id"] != "n1" {
		t.Errorf("successful result lost: %v", result.ExecutedActions[0].Result)
	}
	if conv.State != conversation.StateAwaitingUserInput {
		t.Errorf("State = %v", conv.State)
	}
}

func TestFullScenario(t *testing.T) {
	client := &stubClient{
		response: "I'll create a note about stoicism.\n\n" +
			"```json\n" +
			`{"proposed_actions": [{"type": "create_note", "content": "stoicism"}]}` +
			"\n```\n\nShall I proceed?",
	}
	ctrl := New(client)
	conv := conversation.New("c1")

	input, err := ctrl.ProcessUserInput(context.Background(), conv, "Add a note about stoicism", nil)
	if err != nil {
		t.Fatalf("ProcessUserInput() error = %v", err)
	}
	if !input.RequiresConfirmation {
		t.Fatal("RequiresConfirmation = false, want true")
	}

	handlers := dispatch.Registry{
		"create_note": dispatch.HandlerFunc(func(ctx context.Context, a conversation.Action) (any, error) {
			return map[string]any{"note_id": "n1"}, nil
		}),
	}

	confirm, err := ctrl.ProcessConfirmation(context.Background(), conv, true, handlers)
	if err != nil {
		t.Fatalf("ProcessConfirmation() error = %v", err)
	}

	want := conversation.ExecutedAction{
		Action: conversation.Action{"type": "create_note", "content": "stoicism"},
		Status: conversation.ActionExecuted,
		Result: map[string]any{"note_id": "n1"},
	}
	if len(confirm.ExecutedActions) != 1 || !reflect.DeepEqual(confirm.ExecutedActions[0], want) {
		t.Errorf("ExecutedActions = %+v, want %+v", confirm.ExecutedActions, want)
	}
	if confirm.Response != "All actions were completed successfully." {
		t.Errorf("Response = %q", confirm.Response)
	}
	if conv.State != conversation.StateAwaitingUserInput {
		t.Errorf("State = %v, want %v", conv.State, conversation.StateAwaitingUserInput)
	}
	if conv.TurnCount() != 1 {
		t.Errorf("TurnCount() = %d, want 1", conv.TurnCount())
	}
}

func TestSummarize_DistinctReasons(t *testing.T) {
	executed := []conversation.ExecutedAction{
		{Status: conversation.ActionFailed, Error: "reason A"},
		{Status: conversation.ActionFailed, Error: "reason A"},
		{Status: conversation.ActionFailed, Error: "reason B"},
		{Status: conversation.ActionExecuted},
	}

	got := summarize(executed)
	want := "Some actions could not be completed: reason A; reason B"
	if got != want {
		t.Errorf("summarize() = %q, want %q", got, want)
	}
}
