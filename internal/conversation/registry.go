package conversation

import (
	"sync"

	"github.com/google/uuid"
)

// Registry holds the process's active conversations keyed by identity. It is
// safe for concurrent use across request handlers; entries are created on
// first reference and removed only by explicit Delete, never by expiry.
type Registry struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conversations: make(map[string]*Conversation),
	}
}

// Create registers a new conversation. An empty id is replaced with a
// generated UUID. An existing conversation under the same id is returned
// unchanged rather than replaced.
func (r *Registry) Create(id string) *Conversation {
	if id == "" {
		id = uuid.New().String()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.conversations[id]; ok {
		return existing
	}
	conv := New(id)
	r.conversations[id] = conv
	return conv
}

// Get returns the conversation for id, if registered.
func (r *Registry) Get(id string) (*Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.conversations[id]
	return conv, ok
}

// Delete removes the conversation for id, reporting whether it existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conversations[id]
	delete(r.conversations, id)
	return ok
}

// Len reports the number of active conversations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversations)
}
