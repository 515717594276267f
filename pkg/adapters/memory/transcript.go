package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/arborlabs/arbor/pkg/ports"
)

// TranscriptStore implements ports.TranscriptStore in memory.
// Safe for concurrent use.
type TranscriptStore struct {
	mu      sync.RWMutex
	entries map[string][]ports.Entry
}

// NewTranscriptStore creates an empty in-memory transcript store.
func NewTranscriptStore() *TranscriptStore {
	return &TranscriptStore{
		entries: make(map[string][]ports.Entry),
	}
}

// Append adds an entry to the session's transcript.
func (s *TranscriptStore) Append(ctx context.Context, sessionID string, entry ports.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = append(s.entries[sessionID], entry)
	return nil
}

// SessionIDs returns the identifiers of every recorded session, sorted.
func (s *TranscriptStore) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// History returns the session's entries in append order.
func (s *TranscriptStore) History(ctx context.Context, sessionID string) ([]ports.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.entries[sessionID]
	if !ok {
		return nil, ports.ErrTranscriptNotFound
	}
	out := make([]ports.Entry, len(entries))
	copy(out, entries)
	return out, nil
}
