package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/arborlabs/arbor/internal/logging"
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/observability"
	"github.com/arborlabs/arbor/pkg/ports"
	"github.com/arborlabs/arbor/pkg/session"
)

// DefaultMaxDepth bounds decision nesting. The tree model has no hard limit;
// this guards the recursive evaluator against runaway nesting.
const DefaultMaxDepth = 32

// Interpreter evaluates a node tree, recursing through decision sessions.
// One Interpreter serves one evaluation chain at a time; the engine layer
// serializes top-level calls.
type Interpreter struct {
	oracle     ports.Oracle
	router     *session.Router
	logger     *slog.Logger
	metrics    *observability.Metrics
	hooks      domain.LifecycleHooks
	transcript ports.TranscriptStore
	output     io.Writer
	maxDepth   int
}

// Option configures the Interpreter.
type Option func(*Interpreter)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(it *Interpreter) {
		if logger != nil {
			it.logger = logger
		}
	}
}

// WithMetrics attaches prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(it *Interpreter) {
		it.metrics = m
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(it *Interpreter) {
		it.hooks = hooks
	}
}

// WithTranscriptStore records session audit trails to the given store.
func WithTranscriptStore(store ports.TranscriptStore) Option {
	return func(it *Interpreter) {
		it.transcript = store
	}
}

// WithOutputWriter mirrors every emitted message to w as it is produced.
func WithOutputWriter(w io.Writer) Option {
	return func(it *Interpreter) {
		it.output = w
	}
}

// WithMaxDepth overrides the maximum decision nesting depth.
func WithMaxDepth(depth int) Option {
	return func(it *Interpreter) {
		if depth > 0 {
			it.maxDepth = depth
		}
	}
}

// NewInterpreter creates an interpreter bound to the given oracle and router.
func NewInterpreter(oracle ports.Oracle, router *session.Router, opts ...Option) *Interpreter {
	it := &Interpreter{
		oracle:   oracle,
		router:   router,
		logger:   logging.NewNop(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(it)
	}
	return it
}

// Evaluate executes the tree and returns the accumulated, order-preserving
// output produced while executing it.
func (it *Interpreter) Evaluate(ctx context.Context, node domain.Node) (string, error) {
	return it.eval(ctx, node, 0)
}

func (it *Interpreter) eval(ctx context.Context, node domain.Node, depth int) (string, error) {
	if ctx.Err() != nil {
		return "", context.Cause(ctx)
	}

	switch node.Kind {
	case domain.NodeKindOutput:
		it.emit(ctx, node.Message)
		return node.Message, nil

	case domain.NodeKindSequence:
		// Strictly left to right; the first failure stops the sequence with
		// no partial-success fallback.
		var out strings.Builder
		for i, child := range node.Children {
			text, err := it.eval(ctx, child, depth)
			if err != nil {
				return "", fmt.Errorf("sequence child %d: %w", i, err)
			}
			out.WriteString(text)
		}
		return out.String(), nil

	case domain.NodeKindDecision:
		if depth >= it.maxDepth {
			return "", fmt.Errorf("%w: %d", domain.ErrMaxDepthExceeded, it.maxDepth)
		}
		return it.evalDecision(ctx, node, depth)

	default:
		return "", fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidNode, node.Kind)
	}
}

// evalDecision blocks the current call frame on a decision worker. The worker
// recurses back into eval for every invoke the oracle issues, stacking nested
// sessions above this one until the terminal completion arrives.
func (it *Interpreter) evalDecision(ctx context.Context, node domain.Node, depth int) (string, error) {
	worker := session.NewWorker(it.oracle, it.router,
		session.WithWorkerLogger(it.logger),
		session.WithWorkerMetrics(it.metrics),
		session.WithWorkerHooks(it.hooks),
		session.WithWorkerTranscript(it.transcript),
	)

	req := domain.DecisionRequest{Prompt: node.Prompt, Children: node.Children}
	it.logger.Debug("interpreter: entering decision", "depth", depth, "options", req.Options())

	message, err := worker.Run(ctx, req, func(ctx context.Context, optionIndex int) (string, error) {
		return it.eval(ctx, node.Children[optionIndex], depth+1)
	})
	if err != nil {
		return "", fmt.Errorf("decision %q: %w", truncate(node.Prompt, 40), err)
	}
	return message, nil
}

func (it *Interpreter) emit(ctx context.Context, message string) {
	if it.output != nil {
		fmt.Fprintln(it.output, message)
	}
	if it.hooks.OnOutput != nil {
		it.hooks.OnOutput(ctx, &domain.OutputEvent{
			EventBase: domain.EventBase{Timestamp: time.Now()},
			Message:   message,
		})
	}
}

// truncate shortens s to at most n bytes, backing up to a rune boundary so
// the cut never produces invalid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
