package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/noterer/noterer/internal/testutil"
)

func TestOpenAIClient_Query(t *testing.T) {
	var captured chatCompletionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Hello there."}},
			},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-key", WithBaseURL(srv.URL), WithModel("gpt-4o"))

	history := "Turn 1:\nUser: first question\nAI: first answer\nUser rejected actions.\n"
	result, err := client.Query(context.Background(), "second question", []ContextItem{
		{Type: "note", Content: "an existing note"},
		{Type: ContextConversationHistory, Content: history},
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	if result.Response != "Hello there." {
		t.Errorf("Response = %q", result.Response)
	}
	if captured.Model != "gpt-4o" {
		t.Errorf("Model = %q", captured.Model)
	}

	// system, history user, history assistant, final user prompt.
	if len(captured.Messages) != 4 {
		t.Fatalf("len(Messages) = %d, want 4: %+v", len(captured.Messages), captured.Messages)
	}
	if captured.Messages[0].Role != "system" {
		t.Errorf("Messages[0].Role = %q", captured.Messages[0].Role)
	}
	if captured.Messages[1].Role != "user" || captured.Messages[1].Content != "first question" {
		t.Errorf("history user message = %+v", captured.Messages[1])
	}
	if captured.Messages[2].Role != "assistant" {
		t.Errorf("history assistant message = %+v", captured.Messages[2])
	}

	final := captured.Messages[3].Content
	if !strings.Contains(final, "NOTE:\nan existing note") {
		t.Errorf("note context missing from prompt: %q", final)
	}
	if strings.Contains(final, "conversation_history") {
		t.Errorf("history should not appear in the inline context block: %q", final)
	}
}

func TestOpenAIClient_QueryAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient("bad-key", WithBaseURL(srv.URL))

	_, err := client.Query(context.Background(), "hello", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Incorrect API key provided") {
		t.Errorf("error = %v", err)
	}
}

func TestOpenAIClient_AnalyzeNote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("ResponseFormat = %+v, want json_object", req.ResponseFormat)
		}
		analysis := `{"concepts": ["stoicism"], "categories": [{"name": "Axiology", "confidence": 0.9}], "relationships": []}`
		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": analysis}},
			},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-key", WithBaseURL(srv.URL))

	analysis, err := client.AnalyzeNote(context.Background(), "Notes on stoicism")
	if err != nil {
		t.Fatalf("AnalyzeNote() error = %v", err)
	}
	if len(analysis.Concepts) != 1 || analysis.Concepts[0] != "stoicism" {
		t.Errorf("Concepts = %v", analysis.Concepts)
	}
	if len(analysis.Categories) != 1 || analysis.Categories[0].Name != "Axiology" {
		t.Errorf("Categories = %v", analysis.Categories)
	}
}

func TestOpenAIClient_Query_VCR(t *testing.T) {
	client := NewOpenAIClient("test-key", WithHTTPClient(testutil.VCRClient(t, "openai_query")))

	result, err := client.Query(context.Background(), "Say hello", nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if result.Response == "" {
		t.Error("expected a non-empty response")
	}
}

func TestHistoryMessages_MultilineContent(t *testing.T) {
	history := "Turn 1:\nUser: line one\nline two\nAI: answer\nUser confirmed actions.\n"

	messages := historyMessages(history)

	if len(messages) != 2 {
		t.Fatalf("len(messages) = %d, want 2: %+v", len(messages), messages)
	}
	if messages[0].Content != "line one\nline two" {
		t.Errorf("messages[0].Content = %q", messages[0].Content)
	}
}

func TestBuildPrompt_NoContext(t *testing.T) {
	if got := buildPrompt("just the prompt", nil, false); got != "just the prompt" {
		t.Errorf("buildPrompt() = %q, want prompt unchanged", got)
	}
}
