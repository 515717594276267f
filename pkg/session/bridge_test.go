package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeDo(t *testing.T) {
	r := session.NewRouter()
	defer r.Close()
	b := session.NewBridge(r)

	h := make(chan domain.SessionEvent, 4)
	r.Push(h)
	defer r.Pop() //nolint:errcheck

	// A stand-in for the worker loop on the other side of the handle.
	go func() {
		for ev := range h {
			inv, ok := ev.(domain.Invoke)
			if !ok {
				continue
			}
			switch inv.OptionIndex {
			case 0:
				inv.Reply <- domain.InvokeResult{Text: "subtree output"}
			default:
				inv.Reply <- domain.InvokeResult{Err: domain.ErrInvalidOptionIndex}
			}
		}
	}()

	t.Run("returns the evaluation text", func(t *testing.T) {
		text, err := b.Do(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, "subtree output", text)
	})

	t.Run("relays the worker's error", func(t *testing.T) {
		_, err := b.Do(context.Background(), 7)
		assert.ErrorIs(t, err, domain.ErrInvalidOptionIndex)
	})
}

func TestBridgeDoWithNoActiveSession(t *testing.T) {
	r := session.NewRouter()
	defer r.Close()
	b := session.NewBridge(r)

	// Nothing on the stack: the router resolves the reply slot itself so the
	// caller gets an immediate error instead of hanging.
	_, err := b.Do(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrRouterProtocol)
}

func TestBridgeDoContextCancellation(t *testing.T) {
	r := session.NewRouter()
	defer r.Close()
	b := session.NewBridge(r)

	// A handle that never services the invoke.
	h := make(chan domain.SessionEvent, 4)
	r.Push(h)
	defer r.Pop() //nolint:errcheck

	ctx, cancel := context.WithCancelCause(context.Background())
	cause := errors.New("caller gave up")
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel(cause)
	}()

	_, err := b.Do(ctx, 0)
	assert.ErrorIs(t, err, cause)
}
