package arbor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/arborlabs/arbor/internal/logging"
	"github.com/arborlabs/arbor/internal/runtime"
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/observability"
	"github.com/arborlabs/arbor/pkg/ports"
	"github.com/arborlabs/arbor/pkg/session"
)

// Engine is the high-level entry point for the Arbor library. It wires an
// oracle adapter, the session router, the tool bridge and the interpreter
// into one evaluation pipeline.
type Engine struct {
	oracle  ports.Oracle
	router  *session.Router
	bridge  *session.Bridge
	interp  *runtime.Interpreter
	logger  *slog.Logger
	metrics *observability.Metrics

	hooks      domain.LifecycleHooks
	transcript ports.TranscriptStore
	output     io.Writer
	maxDepth   int

	// evalMu serializes top-level evaluations: the stack routing discipline
	// is only correct for strictly nested sessions, so one Engine runs one
	// evaluation chain at a time. Independent concurrent evaluations belong
	// on independent Engines.
	evalMu   sync.Mutex
	pumpOnce sync.Once

	activeMu     sync.Mutex
	activeCancel context.CancelCauseFunc
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics attaches prometheus instrumentation shared across the router,
// workers and interpreter.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithTranscriptStore records per-session audit trails to the given store.
func WithTranscriptStore(store ports.TranscriptStore) Option {
	return func(e *Engine) {
		e.transcript = store
	}
}

// WithOutputWriter mirrors every emitted message to w as evaluation proceeds.
func WithOutputWriter(w io.Writer) Option {
	return func(e *Engine) {
		e.output = w
	}
}

// WithMaxDepth overrides the maximum decision nesting depth.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// New initializes an Engine over the given oracle adapter. If the adapter
// implements ports.ToolBinder, the tool bridge callback is wired in here.
func New(oracle ports.Oracle, opts ...Option) (*Engine, error) {
	if oracle == nil {
		return nil, fmt.Errorf("oracle adapter is required")
	}

	e := &Engine{
		oracle:   oracle,
		logger:   logging.NewNop(),
		maxDepth: runtime.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.router = session.NewRouter(
		session.WithRouterLogger(e.logger),
		session.WithRouterMetrics(e.metrics),
	)
	e.bridge = session.NewBridge(e.router, session.WithBridgeLogger(e.logger))
	e.interp = runtime.NewInterpreter(oracle, e.router,
		runtime.WithLogger(e.logger),
		runtime.WithMetrics(e.metrics),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithTranscriptStore(e.transcript),
		runtime.WithOutputWriter(e.output),
		runtime.WithMaxDepth(e.maxDepth),
	)

	if binder, ok := oracle.(ports.ToolBinder); ok {
		binder.BindTool(e.bridge.Do)
	}

	return e, nil
}

// Evaluate executes the tree against the oracle and returns the accumulated
// output. The tree is shape-validated first; evaluation failures bubble up
// from the failing frame with their error kind intact.
func (e *Engine) Evaluate(ctx context.Context, node domain.Node) (string, error) {
	if err := node.Validate(); err != nil {
		return "", err
	}

	e.evalMu.Lock()
	defer e.evalMu.Unlock()

	e.startPump()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	e.setActive(cancel)
	defer e.setActive(nil)

	out, err := e.interp.Evaluate(ctx, node)
	e.metrics.EvaluationDone(err)
	if err != nil {
		e.logger.Warn("evaluation failed", "err", err)
		return "", err
	}
	return out, nil
}

// Do exposes the tool bridge to remote transports ("do" on the wire): it
// requests evaluation of the given child of the currently active decision
// and blocks until the text result is ready.
func (e *Engine) Do(ctx context.Context, optionIndex int) (string, error) {
	return e.bridge.Do(ctx, optionIndex)
}

// Router returns the underlying session router. Intended for introspection;
// the stack is never exposed as shared mutable state.
func (e *Engine) Router() *session.Router {
	return e.router
}

// Close stops the session router. The oracle adapter's own shutdown (which
// closes the event stream and thereby the pump) is owned by its creator.
func (e *Engine) Close() {
	e.router.Close()
}

// startPump forwards the oracle's untagged event stream into the router's
// FIFO queue for the lifetime of the transport. If the stream closes while
// an evaluation is active, that evaluation fails with a communication error.
func (e *Engine) startPump() {
	e.pumpOnce.Do(func() {
		go func() {
			for ev := range e.oracle.Events() {
				e.router.Deliver(ev)
			}
			e.failActive(fmt.Errorf("%w: oracle event stream closed", domain.ErrSessionComm))
		}()
	})
}

func (e *Engine) setActive(cancel context.CancelCauseFunc) {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	e.activeCancel = cancel
}

func (e *Engine) failActive(err error) {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	if e.activeCancel != nil {
		e.activeCancel(err)
	}
}
