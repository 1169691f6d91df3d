// Package conversation implements the confirmation-driven dialogue model:
// an ordered history of closed turns plus one open current turn, advanced
// through a small state machine by the flow controller.
package conversation

import (
	"fmt"
	"iter"
	"time"
)

// State tags where a conversation sits in the confirmation-driven cycle.
type State string

const (
	StateInitial              State = "initial"
	StateAwaitingUserInput    State = "awaiting_user_input"
	StateAnalyzing            State = "analyzing"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateExecuting            State = "executing"
	StateError                State = "error"
)

// DefaultHistoryTurns is how many closed turns RenderHistory includes when
// the caller passes a non-positive limit.
const DefaultHistoryTurns = 5

// Conversation owns an ordered history of closed turns and at most one open
// current turn. It is not safe for concurrent use: the caller issues
// operations sequentially per conversation (the registry is the shared,
// synchronized structure).
type Conversation struct {
	ID       string
	Turns    []*Turn
	Current  *Turn
	State    State
	Metadata map[string]any
}

// New creates an empty conversation in the initial state.
func New(id string) *Conversation {
	return &Conversation{
		ID:       id,
		State:    StateInitial,
		Metadata: make(map[string]any),
	}
}

// StartNewTurn opens a fresh turn for the given input. Always legal: any
// open turn, complete or not, is closed into history first, which is also
// the recovery path out of the error state.
func (c *Conversation) StartNewTurn(userInput string) *Turn {
	if c.Current != nil {
		c.closeCurrent()
	}
	c.Current = NewTurn(userInput)
	c.State = StateAnalyzing
	return c.Current
}

// AttachProposal records the reasoning service's response text and proposed
// actions on the current turn and moves to awaiting confirmation.
func (c *Conversation) AttachProposal(aiResponse string, proposed []Action) error {
	if c.Current == nil {
		return ErrNoActiveTurn
	}
	c.Current.AIResponse = aiResponse
	if proposed == nil {
		proposed = []Action{}
	}
	c.Current.ProposedActions = proposed
	c.State = StateAwaitingConfirmation
	return nil
}

// SetConfirmation records the user's decision. Rejection closes the turn
// immediately; confirmation keeps it open pending execution results.
func (c *Conversation) SetConfirmation(confirmed bool) error {
	if c.Current == nil {
		return ErrNoActiveTurn
	}
	c.Current.Confirmed = confirmed
	if confirmed {
		c.State = StateExecuting
		return nil
	}
	c.closeCurrent()
	c.State = StateAwaitingUserInput
	return nil
}

// SetExecutedActions records the dispatch outcomes and closes the turn,
// regardless of how many actions failed.
func (c *Conversation) SetExecutedActions(executed []ExecutedAction) error {
	if c.Current == nil {
		return ErrNoActiveTurn
	}
	if executed == nil {
		executed = []ExecutedAction{}
	}
	c.Current.ExecutedActions = executed
	c.closeCurrent()
	c.State = StateAwaitingUserInput
	return nil
}

// RecordServiceFailure notes a reasoning-service failure on the current
// turn's response field and moves the conversation to the error state. The
// turn stays open; the next StartNewTurn sweeps it into history.
func (c *Conversation) RecordServiceFailure(message string) error {
	if c.Current == nil {
		return ErrNoActiveTurn
	}
	c.Current.AIResponse = message
	c.State = StateError
	return nil
}

func (c *Conversation) closeCurrent() {
	c.Current.Timestamp = time.Now()
	c.Turns = append(c.Turns, c.Current)
	c.Current = nil
}

// TurnCount reports how many turns have been closed into history.
func (c *Conversation) TurnCount() int { return len(c.Turns) }

// HasCurrentTurn reports whether a turn is open.
func (c *Conversation) HasCurrentTurn() bool { return c.Current != nil }

// ProposedActions returns the open turn's proposed actions, or nil when no
// turn is open.
func (c *Conversation) ProposedActions() []Action {
	if c.Current == nil {
		return nil
	}
	return c.Current.ProposedActions
}

// RenderHistory yields formatted summaries of the most recent maxTurns
// closed turns, followed by the open turn's input if present. The sequence
// is lazy and restartable; iterating never mutates the conversation.
func (c *Conversation) RenderHistory(maxTurns int) iter.Seq[string] {
	if maxTurns <= 0 {
		maxTurns = DefaultHistoryTurns
	}
	return func(yield func(string) bool) {
		recent := c.Turns
		if len(recent) > maxTurns {
			recent = recent[len(recent)-maxTurns:]
		}
		for i, turn := range recent {
			if !yield(formatTurn(i+1, turn)) {
				return
			}
		}
		if c.Current != nil && c.Current.UserInput != "" {
			yield(fmt.Sprintf("Current Turn:\nUser: %s\n", c.Current.UserInput))
		}
	}
}

func formatTurn(n int, t *Turn) string {
	s := fmt.Sprintf("Turn %d:\nUser: %s\n", n, t.UserInput)
	if t.AIResponse != "" {
		s += fmt.Sprintf("AI: %s\n", t.AIResponse)
	}
	if t.Confirmed {
		s += "User confirmed actions.\n"
	} else {
		s += "User rejected actions.\n"
	}
	return s
}
