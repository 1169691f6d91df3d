// Package notes implements the note ingestion pipeline: store the note,
// analyze it, and weave the analysis into the knowledge graph.
package notes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/noterer/noterer/internal/ai"
	"github.com/noterer/noterer/internal/graph"
)

// ProcessResult reports what one ingestion produced.
type ProcessResult struct {
	Note       *graph.Note      `json:"note"`
	Concepts   []*graph.Concept `json:"concepts"`
	Categories []string         `json:"categories"`
}

// Processor ingests notes. Analysis failures are not fatal: the note is
// always stored, and graph enrichment is best effort.
type Processor struct {
	analyzer ai.Analyzer
	store    *graph.Store
	logger   *slog.Logger
}

// NewProcessor creates a Processor. A nil logger means slog.Default().
func NewProcessor(analyzer ai.Analyzer, store *graph.Store, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{analyzer: analyzer, store: store, logger: logger}
}

// Process stores the note, runs analysis, and persists the extracted
// concepts and category links.
func (p *Processor) Process(ctx context.Context, content string, metadata map[string]any) (*ProcessResult, error) {
	if content == "" {
		return nil, fmt.Errorf("note content is required")
	}

	note, err := p.store.CreateNote(ctx, content, metadata)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{Note: note, Concepts: []*graph.Concept{}, Categories: []string{}}

	analysis, err := p.analyzer.AnalyzeNote(ctx, content)
	if err != nil {
		p.logger.Warn("note analysis failed, stored without enrichment",
			slog.String("note_id", note.ID),
			slog.String("error", err.Error()),
		)
		return result, nil
	}

	for _, name := range analysis.Concepts {
		concept, err := p.store.CreateConcept(ctx, name, "")
		if err != nil {
			return nil, err
		}
		if _, err := p.store.CreateRelationship(ctx, note.ID, concept.ID, graph.RelAbout, nil); err != nil {
			return nil, err
		}
		result.Concepts = append(result.Concepts, concept)
	}

	for _, category := range analysis.Categories {
		_, err := p.store.CreateRelationship(ctx, note.ID, category.Name, graph.RelBelongsTo,
			map[string]any{"weight": category.Confidence})
		if err != nil {
			return nil, err
		}
		result.Categories = append(result.Categories, category.Name)
	}

	for _, suggestion := range analysis.Relationships {
		if suggestion.Source == "" || suggestion.Target == "" {
			continue
		}
		if _, err := p.store.CreateRelationship(ctx, suggestion.Source, suggestion.Target, suggestion.Type, nil); err != nil {
			return nil, err
		}
	}

	p.logger.Info("note processed",
		slog.String("note_id", note.ID),
		slog.Int("concepts", len(result.Concepts)),
		slog.Int("categories", len(result.Categories)),
	)
	return result, nil
}
