package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noterer/noterer/internal/ai"
	"github.com/noterer/noterer/internal/conversation"
	"github.com/noterer/noterer/internal/dispatch"
	"github.com/noterer/noterer/internal/flow"
)

// ConversationAPI exposes the confirmation-driven conversation cycle.
type ConversationAPI struct {
	Registry   *conversation.Registry
	Controller *flow.Controller
	Handlers   dispatch.Registry
	Logger     *slog.Logger
}

// Register mounts the conversation routes.
func (a *ConversationAPI) Register(r chi.Router) {
	r.Post("/conversation/start", a.start)
	r.Post("/conversation/{id}/input", a.input)
	r.Post("/conversation/{id}/confirm", a.confirm)
	r.Get("/conversation/{id}", a.get)
	r.Delete("/conversation/{id}", a.end)
}

func (a *ConversationAPI) start(w http.ResponseWriter, r *http.Request) {
	conv := a.Registry.Create("")
	AddLogField(r.Context(), "conversation_id", conv.ID)
	respondJSON(w, http.StatusOK, map[string]string{
		"conversation_id": conv.ID,
		"status":          "started",
	})
}

type inputRequest struct {
	Text    string           `json:"text"`
	Context []ai.ContextItem `json:"context,omitempty"`
}

func (a *ConversationAPI) input(w http.ResponseWriter, r *http.Request) {
	conv, ok := a.lookup(w, r)
	if !ok {
		return
	}

	var req inputRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := a.Controller.ProcessUserInput(r.Context(), conv, req.Text, req.Context)
	if err != nil {
		var svcErr *flow.ServiceError
		if errors.As(err, &svcErr) {
			AddError(r.Context(), err)
			// The conversation already carries the failure; surface both the
			// upstream status and the recorded response.
			respondJSON(w, http.StatusBadGateway, result)
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

type confirmRequest struct {
	Confirmed bool `json:"confirmed"`
}

func (a *ConversationAPI) confirm(w http.ResponseWriter, r *http.Request) {
	conv, ok := a.lookup(w, r)
	if !ok {
		return
	}

	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := a.Controller.ProcessConfirmation(r.Context(), conv, req.Confirmed, a.Handlers)
	if err != nil {
		if errors.Is(err, conversation.ErrNoActiveTurn) {
			respondError(w, http.StatusConflict, "no pending turn to confirm")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (a *ConversationAPI) get(w http.ResponseWriter, r *http.Request) {
	conv, ok := a.lookup(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"conversation_id":  conv.ID,
		"state":            conv.State,
		"turns":            conv.TurnCount(),
		"has_current_turn": conv.HasCurrentTurn(),
	})
}

func (a *ConversationAPI) end(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !a.Registry.Delete(id) {
		respondError(w, http.StatusNotFound, "conversation not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"conversation_id": id,
		"status":          "ended",
	})
}

func (a *ConversationAPI) lookup(w http.ResponseWriter, r *http.Request) (*conversation.Conversation, bool) {
	id := chi.URLParam(r, "id")
	conv, ok := a.Registry.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "conversation not found")
		return nil, false
	}
	AddLogField(r.Context(), "conversation_id", id)
	return conv, true
}
