// Package ai defines the reasoning-service boundary and an OpenAI-compatible
// implementation of it.
package ai

import "context"

// ContextItem is one piece of auxiliary context handed to the reasoning
// service alongside a prompt.
type ContextItem struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ContextConversationHistory tags rendered dialogue history. The client
// treats it specially: history is replayed as chat messages instead of being
// folded into the inline context block.
const ContextConversationHistory = "conversation_history"

// PromptType selects the system prompt for a query.
type PromptType string

const (
	PromptGeneral      PromptType = "general"
	PromptAnalysis     PromptType = "analysis"
	PromptConfirmation PromptType = "confirmation"
)

// QueryResult is a successful reasoning-service response.
type QueryResult struct {
	Response string
	Model    string
}

// Client is the reasoning-service boundary consumed by the flow controller.
// Implementations do not retry; a failed call surfaces as an error and the
// caller decides how the conversation proceeds.
type Client interface {
	Query(ctx context.Context, prompt string, items []ContextItem) (*QueryResult, error)
}

// CategoryScore is a philosophical category assignment with confidence.
type CategoryScore struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// RelationshipSuggestion proposes a graph edge between extracted entities.
type RelationshipSuggestion struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// NoteAnalysis is the structured result of analyzing a note's content.
type NoteAnalysis struct {
	Concepts      []string                 `json:"concepts"`
	Categories    []CategoryScore          `json:"categories"`
	Relationships []RelationshipSuggestion `json:"relationships"`
}

// Analyzer extracts concepts and categories from note content. It is a
// separate capability from Query because it requests structured JSON output.
type Analyzer interface {
	AnalyzeNote(ctx context.Context, content string) (*NoteAnalysis, error)
}
