package conversation

import "time"

// Turn records one user-input/response/confirmation/execution cycle.
//
// A turn's fields populate in strict stages: input at creation, response and
// proposals together, then confirmation, then execution results. No field is
// reset once set; a fresh turn is the only way to start over. Timestamp is
// assigned when the turn is appended to history, not at creation.
type Turn struct {
	UserInput       string           `json:"user_input"`
	AIResponse      string           `json:"ai_response,omitempty"`
	ProposedActions []Action         `json:"proposed_actions"`
	Confirmed       bool             `json:"confirmed"`
	ExecutedActions []ExecutedAction `json:"executed_actions"`
	Timestamp       time.Time        `json:"timestamp,omitzero"`
}

// NewTurn creates an open turn holding only the user's input.
func NewTurn(userInput string) *Turn {
	return &Turn{
		UserInput:       userInput,
		ProposedActions: []Action{},
		ExecutedActions: []ExecutedAction{},
	}
}
