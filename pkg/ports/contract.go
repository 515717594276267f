package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTranscriptStoreContract runs a suite of tests to verify that a
// TranscriptStore implementation adheres to the defined interface contract.
func RunTranscriptStoreContract(t *testing.T, store TranscriptStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405.000")

	t.Run("Append and History", func(t *testing.T) {
		entries := []Entry{
			{Time: time.Now().UTC(), Kind: EntryPrompt, Text: "pick one"},
			{Time: time.Now().UTC(), Kind: EntryNote, Text: "thinking"},
			{Time: time.Now().UTC(), Kind: EntryComplete, Text: "done"},
		}
		for _, e := range entries {
			require.NoError(t, store.Append(ctx, sessionID, e), "Append should not return error")
		}

		got, err := store.History(ctx, sessionID)
		require.NoError(t, err, "History should not return error")
		require.Len(t, got, len(entries))
		for i, e := range entries {
			assert.Equal(t, e.Kind, got[i].Kind, "entry %d kind", i)
			assert.Equal(t, e.Text, got[i].Text, "entry %d text", i)
		}
	})

	t.Run("History preserves append order", func(t *testing.T) {
		sid := sessionID + "-order"
		for i, text := range []string{"first", "second", "third"} {
			require.NoError(t, store.Append(ctx, sid, Entry{
				Time: time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
				Kind: EntryNote,
				Text: text,
			}))
		}
		got, err := store.History(ctx, sid)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "first", got[0].Text)
		assert.Equal(t, "second", got[1].Text)
		assert.Equal(t, "third", got[2].Text)
	})

	t.Run("History of unknown session", func(t *testing.T) {
		_, err := store.History(ctx, "never-seen-"+sessionID)
		assert.ErrorIs(t, err, ErrTranscriptNotFound)
	})
}
