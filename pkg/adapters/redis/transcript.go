package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arborlabs/arbor/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// TranscriptStore implements ports.TranscriptStore using Redis lists, one
// list per session.
type TranscriptStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the store.
type Option func(*TranscriptStore)

// WithTTL sets the expiration for session transcripts.
func WithTTL(ttl time.Duration) Option {
	return func(s *TranscriptStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for transcripts.
func WithPrefix(prefix string) Option {
	return func(s *TranscriptStore) {
		s.prefix = prefix
	}
}

// New creates a new Redis transcript store with options.
func New(address, password string, db int, opts ...Option) *TranscriptStore {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a new Redis transcript store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *TranscriptStore {
	store := &TranscriptStore{
		client: client,
		prefix: "arbor:transcript:",
		ttl:    0, // No expiration by default
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *TranscriptStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// Append pushes the entry onto the session's list and refreshes its TTL.
func (s *TranscriptStore) Append(ctx context.Context, sessionID string, entry ports.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.key(sessionID), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(sessionID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to redis: %w", err)
	}
	return nil
}

// History returns the session's entries in append order.
func (s *TranscriptStore) History(ctx context.Context, sessionID string) ([]ports.Entry, error) {
	values, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}
	if len(values) == 0 {
		return nil, ports.ErrTranscriptNotFound
	}

	entries := make([]ports.Entry, 0, len(values))
	for _, v := range values {
		var e ports.Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close closes the redis client.
func (s *TranscriptStore) Close() error {
	return s.client.Close()
}
