package middleware_test

import (
	"context"

	"github.com/arborlabs/arbor/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
type MockStore struct {
	data map[string][]ports.Entry
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string][]ports.Entry),
	}
}

func (s *MockStore) Append(ctx context.Context, sessionID string, entry ports.Entry) error {
	s.data[sessionID] = append(s.data[sessionID], entry)
	return nil
}

func (s *MockStore) History(ctx context.Context, sessionID string) ([]ports.Entry, error) {
	entries, ok := s.data[sessionID]
	if !ok {
		return nil, ports.ErrTranscriptNotFound
	}
	return entries, nil
}

var _ ports.TranscriptStore = (*MockStore)(nil)
