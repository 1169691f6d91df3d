package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noterer/noterer/internal/graph"
	"github.com/noterer/noterer/internal/notes"
)

// GraphAPI exposes the knowledge graph: notes, concepts, relationships.
type GraphAPI struct {
	Store     *graph.Store
	Processor *notes.Processor
	Logger    *slog.Logger
}

// Register mounts the graph routes.
func (a *GraphAPI) Register(r chi.Router) {
	r.Post("/notes", a.createNote)
	r.Get("/notes", a.listNotes)
	r.Get("/notes/{id}", a.getNote)
	r.Put("/notes/{id}", a.updateNote)
	r.Delete("/notes/{id}", a.deleteNote)

	r.Post("/concepts", a.createConcept)
	r.Get("/concepts", a.listConcepts)
	r.Get("/concepts/{id}", a.getConcept)
	r.Put("/concepts/{id}", a.updateConcept)
	r.Delete("/concepts/{id}", a.deleteConcept)

	r.Get("/graph/neighbors/{id}", a.neighbors)
	r.Get("/graph/relationships/{source_id}", a.relationshipsBySource)
	r.Delete("/graph/relationships/{id}", a.deleteRelationship)
	r.Get("/graph/traverse/{id}", a.traverse)
}

type noteRequest struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// createNote runs the full ingestion pipeline, not a bare insert: the note
// is analyzed and woven into the graph.
func (a *GraphAPI) createNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		respondError(w, http.StatusBadRequest, "note content is required")
		return
	}

	result, err := a.Processor.Process(r.Context(), req.Content, req.Metadata)
	if err != nil {
		AddError(r.Context(), err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	AddLogField(r.Context(), "note_id", result.Note.ID)
	respondJSON(w, http.StatusCreated, result)
}

func (a *GraphAPI) listNotes(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	list, err := a.Store.ListNotes(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"notes": list})
}

func (a *GraphAPI) getNote(w http.ResponseWriter, r *http.Request) {
	note, err := a.Store.GetNote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err, "note not found")
		return
	}
	respondJSON(w, http.StatusOK, note)
}

func (a *GraphAPI) updateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	note, err := a.Store.UpdateNote(r.Context(), chi.URLParam(r, "id"), req.Content, req.Metadata)
	if err != nil {
		respondStoreError(w, err, "note not found")
		return
	}
	respondJSON(w, http.StatusOK, note)
}

func (a *GraphAPI) deleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Store.DeleteNote(r.Context(), id); err != nil {
		respondStoreError(w, err, "note not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

type conceptRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (a *GraphAPI) createConcept(w http.ResponseWriter, r *http.Request) {
	var req conceptRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "concept name is required")
		return
	}

	concept, err := a.Store.CreateConcept(r.Context(), req.Name, req.Description)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, concept)
}

func (a *GraphAPI) listConcepts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	list, err := a.Store.ListConcepts(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"concepts": list})
}

func (a *GraphAPI) getConcept(w http.ResponseWriter, r *http.Request) {
	concept, err := a.Store.GetConcept(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err, "concept not found")
		return
	}
	respondJSON(w, http.StatusOK, concept)
}

func (a *GraphAPI) updateConcept(w http.ResponseWriter, r *http.Request) {
	var req conceptRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	concept, err := a.Store.UpdateConcept(r.Context(), chi.URLParam(r, "id"), req.Name, req.Description)
	if err != nil {
		respondStoreError(w, err, "concept not found")
		return
	}
	respondJSON(w, http.StatusOK, concept)
}

func (a *GraphAPI) deleteConcept(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Store.DeleteConcept(r.Context(), id); err != nil {
		respondStoreError(w, err, "concept not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (a *GraphAPI) relationshipsBySource(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source_id")
	relType := r.URL.Query().Get("relationship_type")

	rels, err := a.Store.ListBySource(r.Context(), sourceID, relType)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"source_id": sourceID, "relationships": rels})
}

func (a *GraphAPI) deleteRelationship(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Store.DeleteRelationship(r.Context(), id); err != nil {
		respondStoreError(w, err, "relationship not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (a *GraphAPI) traverse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	maxDepth, _ := strconv.Atoi(r.URL.Query().Get("max_depth"))

	traversal, err := a.Store.Traverse(r.Context(), id, maxDepth)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"start_id":      id,
		"nodes":         traversal.Nodes,
		"relationships": traversal.Relationships,
	})
}

func (a *GraphAPI) neighbors(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rels, err := a.Store.Neighbors(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"entity_id": id, "relationships": rels})
}

func respondStoreError(w http.ResponseWriter, err error, notFoundMsg string) {
	if errors.Is(err, graph.ErrNotFound) {
		respondError(w, http.StatusNotFound, notFoundMsg)
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
