// Package flow orchestrates the confirmation-driven conversation cycle:
// analyze user input, extract proposed actions, await confirmation, dispatch.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noterer/noterer/internal/ai"
	"github.com/noterer/noterer/internal/conversation"
	"github.com/noterer/noterer/internal/dispatch"
	"github.com/noterer/noterer/internal/extract"
	"github.com/noterer/noterer/internal/tokens"
)

const (
	cancelledMessage = "Actions cancelled as requested."
	successMessage   = "All actions were completed successfully."
)

// ServiceError wraps a reasoning-service failure. The conversation's state
// already reflects the failure when this is returned; callers recover by
// starting a new turn.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("reasoning service: %v", e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithHistoryTurns sets how many closed turns are rendered into context.
func WithHistoryTurns(n int) Option {
	return func(c *Controller) { c.historyTurns = n }
}

// WithHistoryBudget trims rendered history to a token budget before it is
// sent to the reasoning service.
func WithHistoryBudget(b *tokens.Budgeter, budget int) Option {
	return func(c *Controller) {
		c.budgeter = b
		c.historyBudget = budget
	}
}

// Controller drives conversations through the confirmation-driven cycle. It
// owns no action semantics: handlers arrive per confirmation call.
type Controller struct {
	client        ai.Client
	logger        *slog.Logger
	tracer        trace.Tracer
	historyTurns  int
	budgeter      *tokens.Budgeter
	historyBudget int
}

// New creates a controller around a reasoning-service client.
func New(client ai.Client, opts ...Option) *Controller {
	c := &Controller{
		client:       client,
		logger:       slog.Default(),
		tracer:       otel.Tracer("noterer/flow"),
		historyTurns: conversation.DefaultHistoryTurns,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InputResult is the outcome of processing one user input.
type InputResult struct {
	Response             string                `json:"response"`
	ProposedActions      []conversation.Action `json:"proposed_actions"`
	RequiresConfirmation bool                  `json:"requires_confirmation"`
	State                conversation.State    `json:"conversation_state"`
}

// ConfirmationResult is the outcome of processing a confirmation decision.
type ConfirmationResult struct {
	Confirmed       bool                          `json:"confirmed"`
	ExecutedActions []conversation.ExecutedAction `json:"executed_actions"`
	Response        string                        `json:"response"`
	State           conversation.State            `json:"conversation_state"`
}

// ProcessUserInput opens a new turn, queries the reasoning service with the
// input plus rendered history, extracts proposed actions, and attaches the
// proposal to the turn. Zero proposed actions is a valid, successful
// outcome; confirmation is then moot.
//
// A service failure is recorded on the turn (which stays open, in the error
// state) and returned as a *ServiceError alongside a usable result.
func (c *Controller) ProcessUserInput(ctx context.Context, conv *conversation.Conversation, text string, extra []ai.ContextItem) (*InputResult, error) {
	ctx, span := c.tracer.Start(ctx, "flow.ProcessUserInput",
		trace.WithAttributes(attribute.String("conversation.id", conv.ID)))
	defer span.End()

	conv.StartNewTurn(text)

	history := c.renderHistory(conv)

	items := make([]ai.ContextItem, 0, len(extra)+1)
	items = append(items, extra...)
	if history != "" {
		items = append(items, ai.ContextItem{
			Type:    ai.ContextConversationHistory,
			Content: history,
		})
	}

	result, err := c.client.Query(ctx, analysisPrompt(text, history), items)
	if err != nil {
		message := fmt.Sprintf("An error occurred: %s", err)
		if recErr := conv.RecordServiceFailure(message); recErr != nil {
			return nil, recErr
		}
		c.logger.Error("reasoning service query failed",
			slog.String("conversation_id", conv.ID),
			slog.String("error", err.Error()),
		)
		return &InputResult{
			Response: message,
			State:    conv.State,
		}, &ServiceError{Err: err}
	}

	display, actions := extract.Extract(result.Response)
	if err := conv.AttachProposal(display, actions); err != nil {
		return nil, err
	}

	c.logger.Info("proposal attached",
		slog.String("conversation_id", conv.ID),
		slog.Int("proposed_actions", len(actions)),
	)

	return &InputResult{
		Response:             display,
		ProposedActions:      conv.ProposedActions(),
		RequiresConfirmation: len(actions) > 0,
		State:                conv.State,
	}, nil
}

// ProcessConfirmation records the user's decision and, when confirmed,
// dispatches every proposed action exactly once, independently. Outcomes are
// recorded in proposed order; a failed action never aborts the rest.
func (c *Controller) ProcessConfirmation(ctx context.Context, conv *conversation.Conversation, confirmed bool, handlers dispatch.Registry) (*ConfirmationResult, error) {
	ctx, span := c.tracer.Start(ctx, "flow.ProcessConfirmation",
		trace.WithAttributes(
			attribute.String("conversation.id", conv.ID),
			attribute.Bool("confirmed", confirmed),
		))
	defer span.End()

	proposed := conv.ProposedActions()

	if err := conv.SetConfirmation(confirmed); err != nil {
		return nil, err
	}

	if !confirmed {
		return &ConfirmationResult{
			Confirmed:       false,
			ExecutedActions: []conversation.ExecutedAction{},
			Response:        cancelledMessage,
			State:           conv.State,
		}, nil
	}

	executed := dispatch.All(ctx, proposed, handlers)

	if err := conv.SetExecutedActions(executed); err != nil {
		return nil, err
	}

	response := summarize(executed)
	c.logger.Info("actions executed",
		slog.String("conversation_id", conv.ID),
		slog.Int("total", len(executed)),
		slog.Int("failed", countFailed(executed)),
	)

	return &ConfirmationResult{
		Confirmed:       true,
		ExecutedActions: executed,
		Response:        response,
		State:           conv.State,
	}, nil
}

func (c *Controller) renderHistory(conv *conversation.Conversation) string {
	var blocks []string
	for block := range conv.RenderHistory(c.historyTurns) {
		blocks = append(blocks, block)
	}
	if c.budgeter != nil {
		blocks = c.budgeter.TrimToBudget(blocks, c.historyBudget)
	}
	return strings.Join(blocks, "\n")
}

// summarize derives the batch-level response text: a fixed success message,
// or the distinct failure reasons joined by "; ". Per-action detail lives in
// the executed actions themselves.
func summarize(executed []conversation.ExecutedAction) string {
	var reasons []string
	seen := make(map[string]bool)
	for _, ea := range executed {
		if ea.Status == conversation.ActionFailed && !seen[ea.Error] {
			seen[ea.Error] = true
			reasons = append(reasons, ea.Error)
		}
	}
	if len(reasons) == 0 {
		return successMessage
	}
	return "Some actions could not be completed: " + strings.Join(reasons, "; ")
}

func countFailed(executed []conversation.ExecutedAction) int {
	n := 0
	for _, ea := range executed {
		if ea.Status == conversation.ActionFailed {
			n++
		}
	}
	return n
}
