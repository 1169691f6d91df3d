// Package dispatch executes confirmed actions against a caller-supplied
// handler registry, isolating failures per action.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/noterer/noterer/internal/conversation"
)

// Handler executes one action and returns an opaque result. Handlers own
// per-type payload validation; the dispatcher only routes on the type field.
type Handler interface {
	Handle(ctx context.Context, action conversation.Action) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, action conversation.Action) (any, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, action conversation.Action) (any, error) {
	return f(ctx, action)
}

// Registry maps action-type strings to handlers. It is supplied per
// confirmation call; the dispatcher never hardcodes which types exist.
type Registry map[string]Handler

// Register binds an action type to a handler, replacing any previous binding.
func (r Registry) Register(actionType string, h Handler) {
	r[actionType] = h
}

// Dispatch runs one action through its registered handler and returns the
// outcome. The action payload is never mutated; the outcome is a fresh
// record. A panicking handler is recovered into a failed outcome so that one
// action can never take down the batch.
func Dispatch(ctx context.Context, action conversation.Action, reg Registry) conversation.ExecutedAction {
	actionType := action.Type()

	handler, ok := reg[actionType]
	if !ok {
		return conversation.ExecutedAction{
			Action: action.Clone(),
			Status: conversation.ActionFailed,
			Error:  fmt.Sprintf("No handler available for action type: %s", actionType),
		}
	}

	result, err := invoke(ctx, handler, action)
	if err != nil {
		return conversation.ExecutedAction{
			Action: action.Clone(),
			Status: conversation.ActionFailed,
			Error:  fmt.Sprintf("Error executing %s action: %s", actionType, err),
		}
	}
	return conversation.ExecutedAction{
		Action: action.Clone(),
		Status: conversation.ActionExecuted,
		Result: result,
	}
}

func invoke(ctx context.Context, h Handler, action conversation.Action) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, action)
}

// All dispatches every action concurrently and returns one outcome per
// action in the proposed order, regardless of completion order. Actions are
// declared independent, so there is no cross-action short-circuiting.
func All(ctx context.Context, actions []conversation.Action, reg Registry) []conversation.ExecutedAction {
	results := make([]conversation.ExecutedAction, len(actions))

	var wg sync.WaitGroup
	for i, action := range actions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = Dispatch(ctx, action, reg)
		}()
	}
	wg.Wait()

	return results
}
