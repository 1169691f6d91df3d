package tokens

import (
	"strings"
	"testing"
)

func TestBudgeter_Count(t *testing.T) {
	b := NewBudgeter("gpt-4o")

	n, err := b.Count("Hello, world")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n == 0 {
		t.Error("Count() = 0, want > 0")
	}
}

func TestBudgeter_TrimToBudget_DropsOldest(t *testing.T) {
	b := NewBudgeter("gpt-4o")

	long := strings.Repeat("philosophy of language and mind ", 40)
	blocks := []string{
		"Turn 1:\n" + long,
		"Turn 2:\n" + long,
		"Turn 3:\nUser: latest\n",
	}

	trimmed := b.TrimToBudget(blocks, 50)

	if len(trimmed) >= len(blocks) {
		t.Fatalf("len(trimmed) = %d, want fewer than %d", len(trimmed), len(blocks))
	}
	// The newest block always survives.
	if trimmed[len(trimmed)-1] != blocks[2] {
		t.Error("newest block was dropped")
	}
}

func TestBudgeter_TrimToBudget_UnlimitedAndFitting(t *testing.T) {
	b := NewBudgeter("gpt-4o")
	blocks := []string{"Turn 1:\nUser: hi\n", "Turn 2:\nUser: again\n"}

	if got := b.TrimToBudget(blocks, 0); len(got) != 2 {
		t.Errorf("budget 0 should be unlimited, got %d blocks", len(got))
	}
	if got := b.TrimToBudget(blocks, 10000); len(got) != 2 {
		t.Errorf("fitting blocks should be untouched, got %d", len(got))
	}
	if got := b.TrimToBudget(nil, 10); got != nil {
		t.Errorf("nil blocks should pass through, got %v", got)
	}
}

func TestModelEncoding(t *testing.T) {
	cases := map[string]string{
		"gpt-4o":        "o200k_base",
		"o3-mini":       "o200k_base",
		"gpt-3.5-turbo": "cl100k_base",
		"unknown-model": "cl100k_base",
	}
	for model, want := range cases {
		if got := string(modelEncoding(model)); got != want {
			t.Errorf("modelEncoding(%q) = %q, want %q", model, got, want)
		}
	}
}
