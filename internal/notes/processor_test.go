package notes

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/noterer/noterer/internal/ai"
	"github.com/noterer/noterer/internal/graph"
)

var dbCounter atomic.Int64

func testStore(t *testing.T) *graph.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:notestest%d?mode=memory&cache=shared", dbCounter.Add(1))
	store, err := graph.Open(dsn)
	if err != nil {
		t.Fatalf("graph.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

type stubAnalyzer struct {
	analysis *ai.NoteAnalysis
	err      error
}

func (s *stubAnalyzer) AnalyzeNote(ctx context.Context, content string) (*ai.NoteAnalysis, error) {
	return s.analysis, s.err
}

func TestProcess(t *testing.T) {
	store := testStore(t)
	analyzer := &stubAnalyzer{analysis: &ai.NoteAnalysis{
		Concepts: []string{"stoicism", "virtue"},
		Categories: []ai.CategoryScore{
			{Name: "ethics", Confidence: 0.9},
		},
	}}
	p := NewProcessor(analyzer, store, nil)

	result, err := p.Process(context.Background(), "Virtue is the sole good.", map[string]any{"source": "api"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if result.Note == nil || result.Note.ID == "" {
		t.Fatal("note was not stored")
	}
	if len(result.Concepts) != 2 {
		t.Fatalf("len(Concepts) = %d, want 2", len(result.Concepts))
	}
	if len(result.Categories) != 1 || result.Categories[0] != "ethics" {
		t.Errorf("Categories = %v", result.Categories)
	}

	rels, err := store.Neighbors(context.Background(), result.Note.ID)
	if err != nil {
		t.Fatalf("Neighbors() error = %v", err)
	}
	// Two ABOUT edges plus one BELONGS_TO edge.
	var about, belongs int
	for _, rel := range rels {
		switch rel.Type {
		case graph.RelAbout:
			about++
		case graph.RelBelongsTo:
			belongs++
			if rel.Properties["weight"] != 0.9 {
				t.Errorf("category weight = %v, want 0.9", rel.Properties["weight"])
			}
		}
	}
	if about != 2 || belongs != 1 {
		t.Errorf("edges = %d ABOUT / %d BELONGS_TO, want 2/1", about, belongs)
	}
}

func TestProcess_AnalysisFailureStillStores(t *testing.T) {
	store := testStore(t)
	p := NewProcessor(&stubAnalyzer{err: errors.New("model overloaded")}, store, nil)

	result, err := p.Process(context.Background(), "unanalyzed thought", nil)
	if err != nil {
		t.Fatalf("Process() error = %v, analysis failure should not be fatal", err)
	}
	if result.Note == nil {
		t.Fatal("note missing from result")
	}
	if len(result.Concepts) != 0 {
		t.Errorf("Concepts = %v, want none", result.Concepts)
	}

	stored, err := store.GetNote(context.Background(), result.Note.ID)
	if err != nil {
		t.Fatalf("GetNote() error = %v", err)
	}
	if stored.Content != "unanalyzed thought" {
		t.Errorf("Content = %q", stored.Content)
	}
}

func TestProcess_EmptyContent(t *testing.T) {
	p := NewProcessor(&stubAnalyzer{}, testStore(t), nil)

	if _, err := p.Process(context.Background(), "", nil); err == nil {
		t.Error("Process() with empty content should fail")
	}
}

func TestProcess_DuplicateConceptsConverge(t *testing.T) {
	store := testStore(t)
	analyzer := &stubAnalyzer{analysis: &ai.NoteAnalysis{Concepts: []string{"stoicism"}}}
	p := NewProcessor(analyzer, store, nil)

	first, err := p.Process(context.Background(), "first note", nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	second, err := p.Process(context.Background(), "second note", nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if first.Concepts[0].ID != second.Concepts[0].ID {
		t.Error("same concept name created twice")
	}
}
