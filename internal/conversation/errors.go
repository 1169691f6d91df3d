package conversation

import "errors"

// ErrNoActiveTurn is returned when a turn mutation is attempted with no open
// current turn. It signals a sequencing bug in the caller and is never
// retried.
var ErrNoActiveTurn = errors.New("no active conversation turn")

// ErrNotFound is returned by the registry for unknown conversation IDs.
var ErrNotFound = errors.New("conversation not found")
