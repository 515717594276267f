package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"
	"time"

	"github.com/arborlabs/arbor/pkg/persistence/middleware"
	"github.com/arborlabs/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := NewMockStore()
	key := generateKey(t)
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	sessionID := "test-session"
	entry := ports.Entry{Time: time.Now().UTC(), Kind: ports.EntryPrompt, Text: "my-secret-sauce"}

	require.NoError(t, secureStore.Append(ctx, sessionID, entry))

	// The underlying store must only see ciphertext.
	stored, err := underlyingStore.History(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotEqual(t, "my-secret-sauce", stored[0].Text)
	assert.NotContains(t, stored[0].Text, "secret")
	assert.Equal(t, ports.EntryPrompt, stored[0].Kind, "kind stays in the clear")

	// Reading through the middleware restores the plaintext.
	loaded, err := secureStore.History(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "my-secret-sauce", loaded[0].Text)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := NewMockStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	// Write with the old key.
	oldStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)
	require.NoError(t, oldStore.Append(ctx, "s", ports.Entry{Kind: ports.EntryNote, Text: "written long ago"}))

	// Read with the new active key and the old key as fallback.
	rotated := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	entries, err := rotated.History(ctx, "s")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "written long ago", entries[0].Text)
}

func TestEncryptionMiddleware_WrongKey(t *testing.T) {
	underlyingStore := NewMockStore()
	ctx := context.Background()

	writer := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	require.NoError(t, writer.Append(ctx, "s", ports.Entry{Text: "hidden"}))

	reader := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	_, err := reader.History(ctx, "s")
	assert.ErrorContains(t, err, "decrypt")
}

func TestEncryptionMiddleware_RejectsShortKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	})
}
