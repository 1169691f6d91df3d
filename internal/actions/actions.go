// Package actions provides the built-in action handlers that turn confirmed
// proposals into knowledge-graph mutations.
package actions

import (
	"context"
	"fmt"

	"github.com/noterer/noterer/internal/conversation"
	"github.com/noterer/noterer/internal/dispatch"
	"github.com/noterer/noterer/internal/graph"
)

// NewRegistry returns the handler registry for the built-in action types.
func NewRegistry(store *graph.Store) dispatch.Registry {
	r := dispatch.Registry{}
	r.Register("create_note", dispatch.HandlerFunc(func(ctx context.Context, a conversation.Action) (any, error) {
		return createNote(ctx, store, a)
	}))
	r.Register("create_concept", dispatch.HandlerFunc(func(ctx context.Context, a conversation.Action) (any, error) {
		return createConcept(ctx, store, a)
	}))
	r.Register("create_relationship", dispatch.HandlerFunc(func(ctx context.Context, a conversation.Action) (any, error) {
		return createRelationship(ctx, store, a)
	}))
	return r
}

// createNote stores a note and links it to any named concepts, creating the
// concepts on the fly.
func createNote(ctx context.Context, store *graph.Store, a conversation.Action) (any, error) {
	content := stringField(a, "content")
	if content == "" {
		return nil, fmt.Errorf("note content is required")
	}

	var metadata map[string]any
	if m, ok := a["metadata"].(map[string]any); ok {
		metadata = m
	}

	note, err := store.CreateNote(ctx, content, metadata)
	if err != nil {
		return nil, err
	}

	for _, name := range stringSlice(a, "concepts") {
		concept, err := store.CreateConcept(ctx, name, "")
		if err != nil {
			return nil, err
		}
		if _, err := store.CreateRelationship(ctx, note.ID, concept.ID, graph.RelAbout, nil); err != nil {
			return nil, err
		}
	}

	return map[string]any{"note_id": note.ID, "created": true}, nil
}

func createConcept(ctx context.Context, store *graph.Store, a conversation.Action) (any, error) {
	name := stringField(a, "name")
	if name == "" {
		return nil, fmt.Errorf("concept name is required")
	}

	concept, err := store.CreateConcept(ctx, name, stringField(a, "description"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"concept_id": concept.ID, "created": true}, nil
}

func createRelationship(ctx context.Context, store *graph.Store, a conversation.Action) (any, error) {
	source := stringField(a, "source")
	target := stringField(a, "target")
	if source == "" || target == "" {
		return nil, fmt.Errorf("relationship source and target are required")
	}

	var props map[string]any
	if p, ok := a["properties"].(map[string]any); ok {
		props = p
	}

	rel, err := store.CreateRelationship(ctx, source, target, stringField(a, "relationship_type"), props)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"relationship_id": rel.ID,
		"source_id":       rel.SourceID,
		"target_id":       rel.TargetID,
		"created":         true,
	}, nil
}

func stringField(a conversation.Action, key string) string {
	s, _ := a[key].(string)
	return s
}

// stringSlice reads a JSON array field, skipping non-string elements.
func stringSlice(a conversation.Action, key string) []string {
	raw, ok := a[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
