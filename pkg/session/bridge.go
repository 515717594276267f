package session

import (
	"context"
	"log/slog"

	"github.com/arborlabs/arbor/internal/logging"
	"github.com/arborlabs/arbor/pkg/domain"
)

// Bridge is the callback surface the oracle's tool-call mechanism lands on.
// It is stateless with respect to which worker answers: it only enqueues the
// invoke on the router and waits on its single-use reply slot.
type Bridge struct {
	router *Router
	logger *slog.Logger
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithBridgeLogger sets a structured logger for the bridge.
func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBridge creates a bridge over the given router.
func NewBridge(router *Router, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		router: router,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Do requests evaluation of the child at optionIndex of the currently active
// decision and blocks until the text result is ready. Concurrent callers are
// multiplexed through the router's FIFO queue.
func (b *Bridge) Do(ctx context.Context, optionIndex int) (string, error) {
	reply := make(chan domain.InvokeResult, 1)
	b.logger.Debug("bridge: invoke", "option", optionIndex)
	b.router.Deliver(domain.Invoke{OptionIndex: optionIndex, Reply: reply})

	select {
	case <-ctx.Done():
		return "", context.Cause(ctx)
	case res := <-reply:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Text, nil
	}
}
