package conversation

// Snapshot is a JSON-serializable view of a conversation's full state,
// suitable for host wire formats. Action payloads survive the round trip
// unchanged.
type Snapshot struct {
	ConversationID string         `json:"conversation_id"`
	State          State          `json:"state"`
	Turns          []*Turn        `json:"turns"`
	CurrentTurn    *Turn          `json:"current_turn,omitempty"`
	Metadata       map[string]any `json:"metadata"`
}

// Snapshot captures the conversation's current state. The returned value
// shares turn pointers with the conversation; callers treat it as read-only.
func (c *Conversation) Snapshot() *Snapshot {
	return &Snapshot{
		ConversationID: c.ID,
		State:          c.State,
		Turns:          c.Turns,
		CurrentTurn:    c.Current,
		Metadata:       c.Metadata,
	}
}

// FromSnapshot reconstructs a conversation from a snapshot.
func FromSnapshot(s *Snapshot) *Conversation {
	conv := New(s.ConversationID)
	if s.State != "" {
		conv.State = s.State
	}
	conv.Turns = s.Turns
	conv.Current = s.CurrentTurn
	if s.Metadata != nil {
		conv.Metadata = s.Metadata
	}
	return conv
}
