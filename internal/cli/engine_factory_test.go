package cli

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborlabs/arbor/pkg/ports"
)

func hexKey(b byte) string {
	key := make([]byte, 32)
	for i := range key {
		key[i] = b
	}
	return hex.EncodeToString(key)
}

func TestCreateStore(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		store, err := createStore(RunOptions{})
		require.NoError(t, err)
		assert.Nil(t, store)
	})

	t.Run("memory store with masking", func(t *testing.T) {
		store, err := createStore(RunOptions{
			Transcripts:  true,
			MaskPatterns: []string{`\d{3}-\d{2}-\d{4}`},
		})
		require.NoError(t, err)
		require.NotNil(t, store)

		ctx := context.Background()
		require.NoError(t, store.Append(ctx, "s-1", ports.Entry{Kind: ports.EntryNote, Text: "SSN 123-45-6789 on file"}))

		history, err := store.History(ctx, "s-1")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "SSN *** on file", history[0].Text)
	})

	t.Run("encrypted store round-trips", func(t *testing.T) {
		store, err := createStore(RunOptions{
			Transcripts: true,
			EncryptKey:  hexKey(0xAB),
		})
		require.NoError(t, err)

		ctx := context.Background()
		require.NoError(t, store.Append(ctx, "s-1", ports.Entry{Kind: ports.EntryPrompt, Text: "route this ticket"}))

		history, err := store.History(ctx, "s-1")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "route this ticket", history[0].Text)
	})

	t.Run("rejects malformed encryption key", func(t *testing.T) {
		_, err := createStore(RunOptions{Transcripts: true, EncryptKey: "not-hex"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid encryption key")
	})

	t.Run("rejects short encryption key", func(t *testing.T) {
		_, err := createStore(RunOptions{Transcripts: true, EncryptKey: "abcd"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected 32 bytes")
	})
}

func TestParseEncryptionConfigFallbacks(t *testing.T) {
	config, err := parseEncryptionConfig(hexKey(0x01), []string{hexKey(0x02), hexKey(0x03)})
	require.NoError(t, err)
	assert.Len(t, config.ActiveKey, 32)
	require.Len(t, config.FallbackKeys, 2)

	_, err = parseEncryptionConfig(hexKey(0x01), []string{"zz"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid fallback key 0")
}
