package middleware

import (
	"context"
	"regexp"

	"github.com/arborlabs/arbor/pkg/ports"
)

type piiMiddleware struct {
	next     ports.TranscriptStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks text matching the given
// patterns before it is persisted. Transcripts carry free-form prompt and
// result text, so redaction happens on the content, not on field names.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.TranscriptStore) ports.TranscriptStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Append(ctx context.Context, sessionID string, entry ports.Entry) error {
	for _, p := range m.patterns {
		entry.Text = p.ReplaceAllString(entry.Text, "***")
	}
	return m.next.Append(ctx, sessionID, entry)
}

func (m *piiMiddleware) History(ctx context.Context, sessionID string) ([]ports.Entry, error) {
	return m.next.History(ctx, sessionID)
}
