// Package graph persists Noterer's knowledge graph: notes, concepts, and the
// relationships between them. It is only ever invoked from action handlers
// and HTTP routes; the conversation core never touches it.
package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Relationship types written by the built-in handlers and the note pipeline.
const (
	RelAbout     = "ABOUT"
	RelBelongsTo = "BELONGS_TO"
	RelRelatesTo = "RELATES_TO"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("entity not found")

// Note is a stored note with opaque metadata.
type Note struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Concept is a named idea extracted from notes. Names are unique; creating
// an existing name returns the stored concept.
type Concept struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Relationship is a typed, directed edge with opaque properties. Targets may
// reference entities that are not stored rows (category names, for one), so
// no foreign keys are enforced on edges.
type Relationship struct {
	ID         string         `json:"id"`
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Store is a SQLite-backed graph store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a graph store at the given SQLite path.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS concepts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS relationships (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			rel_type TEXT NOT NULL,
			properties TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_concepts_name ON concepts(name)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// CreateNote stores a new note and returns it.
func (s *Store) CreateNote(ctx context.Context, content string, metadata map[string]any) (*Note, error) {
	now := time.Now().UTC()
	note := &Note{
		ID:        uuid.New().String(),
		Content:   content,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	metaJSON, err := marshalMeta(metadata)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notes (id, content, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		note.ID, note.Content, metaJSON, note.CreatedAt, note.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	return note, nil
}

// GetNote returns the note with the given id, or ErrNotFound.
func (s *Store) GetNote(ctx context.Context, id string) (*Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content, metadata, created_at, updated_at FROM notes WHERE id = ?`, id)
	return scanNote(row)
}

// ListNotes returns notes newest first.
func (s *Store) ListNotes(ctx context.Context, limit, offset int) ([]*Note, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, metadata, created_at, updated_at
		 FROM notes ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := []*Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// UpdateNote replaces a note's content and/or metadata. Empty content leaves
// the stored content unchanged; nil metadata leaves metadata unchanged.
func (s *Store) UpdateNote(ctx context.Context, id, content string, metadata map[string]any) (*Note, error) {
	note, err := s.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}

	if content != "" {
		note.Content = content
	}
	if metadata != nil {
		note.Metadata = metadata
	}
	note.UpdatedAt = time.Now().UTC()

	metaJSON, err := marshalMeta(note.Metadata)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE notes SET content = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		note.Content, metaJSON, note.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	return note, nil
}

// DeleteNote removes a note and every relationship touching it.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM relationships WHERE source_id = ? OR target_id = ?`, id, id)
	if err != nil {
		return fmt.Errorf("failed to delete note relationships: %w", err)
	}
	return nil
}

// CreateConcept stores a concept, or returns the existing one when the name
// is already taken. A non-empty description updates the stored concept.
func (s *Store) CreateConcept(ctx context.Context, name, description string) (*Concept, error) {
	if existing, err := s.GetConceptByName(ctx, name); err == nil {
		if description != "" && description != existing.Description {
			existing.Description = description
			existing.UpdatedAt = time.Now().UTC()
			_, err = s.db.ExecContext(ctx,
				`UPDATE concepts SET description = ?, updated_at = ? WHERE id = ?`,
				existing.Description, existing.UpdatedAt, existing.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to update concept: %w", err)
			}
		}
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	concept := &Concept{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO concepts (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		concept.ID, concept.Name, concept.Description, concept.CreatedAt, concept.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create concept: %w", err)
	}
	return concept, nil
}

// GetConcept returns the concept with the given id, or ErrNotFound.
func (s *Store) GetConcept(ctx context.Context, id string) (*Concept, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM concepts WHERE id = ?`, id)
	return scanConcept(row)
}

// GetConceptByName returns the concept with the given name, or ErrNotFound.
func (s *Store) GetConceptByName(ctx context.Context, name string) (*Concept, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM concepts WHERE name = ?`, name)
	return scanConcept(row)
}

// UpdateConcept replaces a concept's name and/or description. Empty fields
// leave the stored values unchanged. Renaming onto a taken name fails on the
// name's uniqueness constraint.
func (s *Store) UpdateConcept(ctx context.Context, id, name, description string) (*Concept, error) {
	concept, err := s.GetConcept(ctx, id)
	if err != nil {
		return nil, err
	}

	if name != "" {
		concept.Name = name
	}
	if description != "" {
		concept.Description = description
	}
	concept.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`UPDATE concepts SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		concept.Name, concept.Description, concept.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update concept: %w", err)
	}
	return concept, nil
}

// DeleteConcept removes a concept and every relationship touching it.
func (s *Store) DeleteConcept(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM concepts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete concept: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM relationships WHERE source_id = ? OR target_id = ?`, id, id)
	if err != nil {
		return fmt.Errorf("failed to delete concept relationships: %w", err)
	}
	return nil
}

// ListConcepts returns concepts ordered by name.
func (s *Store) ListConcepts(ctx context.Context, limit, offset int) ([]*Concept, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at
		 FROM concepts ORDER BY name LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list concepts: %w", err)
	}
	defer rows.Close()

	concepts := []*Concept{}
	for rows.Next() {
		concept, err := scanConcept(rows)
		if err != nil {
			return nil, err
		}
		concepts = append(concepts, concept)
	}
	return concepts, rows.Err()
}

// CreateRelationship stores a typed edge between two entities.
func (s *Store) CreateRelationship(ctx context.Context, sourceID, targetID, relType string, properties map[string]any) (*Relationship, error) {
	if relType == "" {
		relType = RelRelatesTo
	}

	rel := &Relationship{
		ID:         uuid.New().String(),
		SourceID:   sourceID,
		TargetID:   targetID,
		Type:       relType,
		Properties: properties,
		CreatedAt:  time.Now().UTC(),
	}

	propsJSON, err := marshalMeta(properties)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO relationships (id, source_id, target_id, rel_type, properties, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rel.ID, rel.SourceID, rel.TargetID, rel.Type, propsJSON, rel.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create relationship: %w", err)
	}
	return rel, nil
}

// ListBySource returns relationships originating at sourceID, oldest first,
// optionally filtered by relationship type.
func (s *Store) ListBySource(ctx context.Context, sourceID, relType string) ([]*Relationship, error) {
	query := `SELECT id, source_id, target_id, rel_type, properties, created_at
		 FROM relationships WHERE source_id = ?`
	args := []any{sourceID}
	if relType != "" {
		query += ` AND rel_type = ?`
		args = append(args, relType)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()
	return scanRelationships(rows)
}

// DeleteRelationship removes a single edge by id.
func (s *Store) DeleteRelationship(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM relationships WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete relationship: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Neighbors returns every relationship where the entity is source or target,
// oldest first.
func (s *Store) Neighbors(ctx context.Context, entityID string) ([]*Relationship, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, target_id, rel_type, properties, created_at
		 FROM relationships WHERE source_id = ? OR target_id = ?
		 ORDER BY created_at, id`, entityID, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()
	return scanRelationships(rows)
}

// TraversalNode is one entity reached during a traversal, tagged with the
// table it resolved to ("note", "concept", or "entity" for bare identifiers
// such as category names).
type TraversalNode struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// Traversal is the subgraph reachable from a start node.
type Traversal struct {
	Nodes         []TraversalNode `json:"nodes"`
	Relationships []*Relationship `json:"relationships"`
}

// Traverse walks relationships breadth-first from startID up to maxDepth
// hops (default 2) and returns the visited subgraph. Edges are undirected
// for traversal purposes; each edge appears once.
func (s *Store) Traverse(ctx context.Context, startID string, maxDepth int) (*Traversal, error) {
	if maxDepth <= 0 {
		maxDepth = 2
	}

	visited := map[string]bool{startID: true}
	order := []string{startID}
	seenEdges := map[string]bool{}
	result := &Traversal{Nodes: []TraversalNode{}, Relationships: []*Relationship{}}

	frontier := []string{startID}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			rels, err := s.Neighbors(ctx, id)
			if err != nil {
				return nil, err
			}
			for _, rel := range rels {
				if seenEdges[rel.ID] {
					continue
				}
				seenEdges[rel.ID] = true
				result.Relationships = append(result.Relationships, rel)
				for _, endpoint := range []string{rel.SourceID, rel.TargetID} {
					if !visited[endpoint] {
						visited[endpoint] = true
						order = append(order, endpoint)
						next = append(next, endpoint)
					}
				}
			}
		}
		frontier = next
	}

	for _, id := range order {
		result.Nodes = append(result.Nodes, TraversalNode{ID: id, Kind: s.nodeKind(ctx, id)})
	}
	return result, nil
}

func (s *Store) nodeKind(ctx context.Context, id string) string {
	if _, err := s.GetNote(ctx, id); err == nil {
		return "note"
	}
	if _, err := s.GetConcept(ctx, id); err == nil {
		return "concept"
	}
	return "entity"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRelationships(rows *sql.Rows) ([]*Relationship, error) {
	rels := []*Relationship{}
	for rows.Next() {
		var rel Relationship
		var propsJSON sql.NullString
		if err := rows.Scan(&rel.ID, &rel.SourceID, &rel.TargetID, &rel.Type, &propsJSON, &rel.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		if err := unmarshalMeta(propsJSON, &rel.Properties); err != nil {
			return nil, err
		}
		rels = append(rels, &rel)
	}
	return rels, rows.Err()
}

func scanNote(row rowScanner) (*Note, error) {
	var note Note
	var metaJSON sql.NullString
	err := row.Scan(&note.ID, &note.Content, &metaJSON, &note.CreatedAt, &note.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan note: %w", err)
	}
	if err := unmarshalMeta(metaJSON, &note.Metadata); err != nil {
		return nil, err
	}
	return &note, nil
}

func scanConcept(row rowScanner) (*Concept, error) {
	var concept Concept
	var desc sql.NullString
	err := row.Scan(&concept.ID, &concept.Name, &desc, &concept.CreatedAt, &concept.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan concept: %w", err)
	}
	concept.Description = desc.String
	return &concept, nil
}

func marshalMeta(m map[string]any) (string, error) {
	if m == nil {
		return "", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(data), nil
}

func unmarshalMeta(s sql.NullString, out *map[string]any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s.String), out); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return nil
}
