package ports

import (
	"context"
	"errors"
	"time"
)

// ErrTranscriptNotFound is returned when a session has no recorded transcript.
var ErrTranscriptNotFound = errors.New("transcript not found")

// EntryKind categorizes a transcript entry.
type EntryKind string

const (
	EntryPrompt   EntryKind = "prompt"
	EntryNote     EntryKind = "note"
	EntryInvoke   EntryKind = "invoke"
	EntryResult   EntryKind = "result"
	EntryComplete EntryKind = "complete"
	EntryError    EntryKind = "error"
)

// Entry is one line of a session transcript.
type Entry struct {
	Time time.Time `json:"time"`
	Kind EntryKind `json:"kind"`
	Text string    `json:"text"`
}

// TranscriptStore records the per-session audit trail of prompts,
// notifications, invokes, and terminal messages. Implementations must be safe
// for concurrent use.
type TranscriptStore interface {
	// Append adds an entry to the session's transcript, creating it if needed.
	Append(ctx context.Context, sessionID string, entry Entry) error

	// History returns the session's entries in append order.
	// Returns ErrTranscriptNotFound if no entry was ever appended.
	History(ctx context.Context, sessionID string) ([]Entry, error)
}
