package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o"
)

// OpenAIOption configures the client.
type OpenAIOption func(*OpenAIClient)

// WithBaseURL sets a custom base URL, e.g. for an OpenAI-compatible service.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) OpenAIOption {
	return func(c *OpenAIClient) {
		c.httpClient = httpClient
	}
}

// WithModel sets the model used for all requests.
func WithModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.model = model
	}
}

// OpenAIClient talks to an OpenAI-compatible chat-completions API.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

var (
	_ Client   = (*OpenAIClient)(nil)
	_ Analyzer = (*OpenAIClient)(nil)
)

// NewOpenAIClient creates a client for the OpenAI chat completions API.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Query sends the prompt with its context to the chat completions API using
// the general system prompt.
func (c *OpenAIClient) Query(ctx context.Context, prompt string, items []ContextItem) (*QueryResult, error) {
	return c.query(ctx, prompt, items, PromptGeneral, false)
}

// AnalyzeNote extracts concepts, categories, and relationship suggestions
// from note content as structured JSON.
func (c *OpenAIClient) AnalyzeNote(ctx context.Context, content string) (*NoteAnalysis, error) {
	prompt := fmt.Sprintf(noteAnalysisPrompt, content)

	result, err := c.query(ctx, prompt, nil, PromptAnalysis, true)
	if err != nil {
		return nil, err
	}

	var analysis NoteAnalysis
	if err := json.Unmarshal([]byte(result.Response), &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	return &analysis, nil
}

func (c *OpenAIClient) query(ctx context.Context, prompt string, items []ContextItem, promptType PromptType, structured bool) (*QueryResult, error) {
	messages := []chatMessage{{Role: "system", Content: systemPrompt(promptType)}}

	for _, item := range items {
		if item.Type == ContextConversationHistory {
			messages = append(messages, historyMessages(item.Content)...)
		}
	}
	messages = append(messages, chatMessage{Role: "user", Content: buildPrompt(prompt, items, structured)})

	req := &chatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if structured {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("API error (%s): %s", apiErr.Error.Type, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("response contained no choices")
	}

	return &QueryResult{
		Response: result.Choices[0].Message.Content,
		Model:    result.Model,
	}, nil
}

// buildPrompt folds non-history context items into a context block ahead of
// the query. History items are skipped here; they travel as chat messages.
func buildPrompt(prompt string, items []ContextItem, structured bool) string {
	var filtered []ContextItem
	for _, item := range items {
		if item.Type != ContextConversationHistory && item.Type != "" && item.Content != "" {
			filtered = append(filtered, item)
		}
	}
	if len(filtered) == 0 && !structured {
		return prompt
	}

	var b strings.Builder
	if len(filtered) > 0 {
		b.WriteString("### CONTEXT:\n")
		for _, item := range filtered {
			fmt.Fprintf(&b, "\n%s:\n%s\n", strings.ToUpper(item.Type), item.Content)
		}
		b.WriteString("\n")
	}
	b.WriteString("### QUERY:\n")
	b.WriteString(prompt)
	if structured {
		b.WriteString("\n\n### OUTPUT FORMAT:\nProvide your response in valid JSON format.")
	}
	return b.String()
}

// historyMessages parses a rendered history block back into alternating chat
// messages so the model sees prior turns as real dialogue.
func historyMessages(history string) []chatMessage {
	var messages []chatMessage
	var role string
	var content []string

	flush := func() {
		if role != "" && len(content) > 0 {
			messages = append(messages, chatMessage{Role: role, Content: strings.Join(content, "\n")})
		}
		content = nil
	}

	for line := range strings.Lines(history) {
		line = strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(line, "User: "):
			flush()
			role = "user"
			content = []string{strings.TrimPrefix(line, "User: ")}
		case strings.HasPrefix(line, "AI: "):
			flush()
			role = "assistant"
			content = []string{strings.TrimPrefix(line, "AI: ")}
		case len(content) > 0:
			content = append(content, line)
		}
	}
	flush()

	return messages
}
