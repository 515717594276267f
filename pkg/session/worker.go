package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arborlabs/arbor/internal/logging"
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/observability"
	"github.com/arborlabs/arbor/pkg/ports"
)

// inboundBuffer decouples the router's delivery from the worker's servicing
// pace. A worker deep in a nested evaluation is not reading its channel; the
// buffer absorbs the events that race its resumption.
const inboundBuffer = 16

// workerState tracks the lifecycle of one decision session.
type workerState string

const (
	stateStarting   workerState = "starting"
	stateActive     workerState = "active"
	stateDraining   workerState = "draining"
	stateTerminated workerState = "terminated"
)

// EvalFunc evaluates the child subtree at optionIndex and returns its
// accumulated output. The index is validated by the worker before the call.
type EvalFunc func(ctx context.Context, optionIndex int) (string, error)

// Worker drives exactly one in-flight decision node evaluation. It owns one
// oracle session, registers with the router for the session's active
// interval, services inbound events, and reports the terminal message back
// to the interpreter call that spawned it.
type Worker struct {
	oracle     ports.Oracle
	router     *Router
	inbound    chan domain.SessionEvent
	logger     *slog.Logger
	metrics    *observability.Metrics
	hooks      domain.LifecycleHooks
	transcript ports.TranscriptStore

	sessionID string
	state     workerState
	cause     error
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerLogger sets a structured logger for the worker.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithWorkerMetrics attaches prometheus instrumentation.
func WithWorkerMetrics(m *observability.Metrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithWorkerHooks registers lifecycle callbacks.
func WithWorkerHooks(hooks domain.LifecycleHooks) WorkerOption {
	return func(w *Worker) {
		w.hooks = hooks
	}
}

// WithWorkerTranscript records the session's audit trail to the given store.
func WithWorkerTranscript(store ports.TranscriptStore) WorkerOption {
	return func(w *Worker) {
		w.transcript = store
	}
}

// NewWorker creates a worker bound to the given oracle and router.
func NewWorker(oracle ports.Oracle, router *Router, opts ...WorkerOption) *Worker {
	w := &Worker{
		oracle:  oracle,
		router:  router,
		inbound: make(chan domain.SessionEvent, inboundBuffer),
		logger:  logging.NewNop(),
		state:   stateStarting,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SessionID returns the oracle session identifier once the worker is active.
func (w *Worker) SessionID() string {
	return w.sessionID
}

// Run drives the decision session to its terminal state and returns the
// oracle's completion message. It blocks the calling frame; nested decisions
// recurse through the eval callback, stacking further workers above this one.
//
// The router registration is released on every exit path, so a failure
// mid-session never leaves a stale entry on the stack.
func (w *Worker) Run(ctx context.Context, req domain.DecisionRequest, eval EvalFunc) (string, error) {
	sessionID, err := w.oracle.OpenSession(ctx)
	if err != nil {
		// Never registered: no push occurred, so no pop is owed.
		w.state = stateTerminated
		w.metrics.SessionFailed()
		return "", fmt.Errorf("%w: %w", domain.ErrSessionStart, err)
	}
	w.sessionID = sessionID
	w.metrics.SessionOpened()
	started := time.Now()
	defer func() {
		w.metrics.DecisionObserved(time.Since(started).Seconds())
	}()

	w.fireDecisionStart(ctx, req)

	// Register before the prompt goes out so no event can be routed to a
	// worker that is not yet on the stack.
	w.router.Push(w.inbound)
	w.state = stateActive
	defer w.release()

	w.record(ctx, ports.EntryPrompt, req.Prompt)
	if err := w.oracle.SendPrompt(ctx, sessionID, req.Prompt); err != nil {
		return w.fail(ctx, req, fmt.Errorf("%w: send prompt: %w", domain.ErrSessionComm, err))
	}

	for {
		select {
		case <-ctx.Done():
			err := context.Cause(ctx)
			w.record(ctx, ports.EntryError, err.Error())
			return w.fail(ctx, req, fmt.Errorf("session %s: %w", sessionID, err))

		case ev, ok := <-w.inbound:
			if !ok {
				return w.fail(ctx, req, fmt.Errorf("%w: inbound channel closed", domain.ErrSessionComm))
			}
			switch e := ev.(type) {
			case domain.Notification:
				w.logger.Debug("worker: notification", "session_id", sessionID, "text", e.Text)
				w.record(ctx, ports.EntryNote, e.Text)

			case domain.Invoke:
				w.handleInvoke(ctx, e, req, eval)

			case domain.TurnComplete:
				w.state = stateDraining
				w.logger.Debug("worker: turn complete", "session_id", sessionID)
				w.record(ctx, ports.EntryComplete, e.Message)
				w.fireDecisionEnd(ctx, req, e.Message, nil)
				return e.Message, nil

			case domain.SessionError:
				w.record(ctx, ports.EntryError, e.Err.Error())
				return w.fail(ctx, req, fmt.Errorf("%w: %w", domain.ErrSessionComm, e.Err))
			}
		}
	}
}

// handleInvoke validates the option index, recurses into the child subtree,
// and resolves the single-use reply slot. Failures here are local to this
// invoke; they are relayed to the oracle as tool errors and never abort the
// enclosing decision evaluation.
func (w *Worker) handleInvoke(ctx context.Context, inv domain.Invoke, req domain.DecisionRequest, eval EvalFunc) {
	w.record(ctx, ports.EntryInvoke, fmt.Sprintf("option %d", inv.OptionIndex))

	if inv.OptionIndex < 0 || inv.OptionIndex >= req.Options() {
		w.metrics.InvokeServiced(true)
		w.fireInvoke(ctx, inv.OptionIndex, true)
		w.logger.Warn("worker: invoke with out-of-range option",
			"session_id", w.sessionID, "option", inv.OptionIndex, "options", req.Options())
		inv.Reply <- domain.InvokeResult{
			Err: fmt.Errorf("%w: option %d of %d", domain.ErrInvalidOptionIndex, inv.OptionIndex, req.Options()),
		}
		return
	}

	text, err := eval(ctx, inv.OptionIndex)
	if err != nil {
		w.metrics.InvokeServiced(false)
		w.fireInvoke(ctx, inv.OptionIndex, true)
		w.record(ctx, ports.EntryError, err.Error())
		inv.Reply <- domain.InvokeResult{
			Err: fmt.Errorf("%w: option %d: %w", domain.ErrNestedEvaluation, inv.OptionIndex, err),
		}
		return
	}

	w.metrics.InvokeServiced(false)
	w.fireInvoke(ctx, inv.OptionIndex, false)
	w.record(ctx, ports.EntryResult, text)
	inv.Reply <- domain.InvokeResult{Text: text}
}

// release pops this worker's registration and then resolves whatever is
// still buffered on the inbound channel. It runs on every exit path after a
// successful push.
func (w *Worker) release() {
	w.state = stateTerminated
	if err := w.router.Pop(); err != nil {
		// Unbalanced pop means the stack discipline is broken somewhere.
		w.logger.Error("worker: release failed", "session_id", w.sessionID, "err", err)
	}
	w.drainInbound()
}

// drainInbound discards events that were delivered but never serviced. Each
// leftover invoke gets its reply slot resolved with the terminating error so
// no bridge caller stays suspended on a dead session. Running after the pop,
// the router can no longer deliver here, and ops are processed in order, so
// everything owed to this worker is already in the buffer.
func (w *Worker) drainInbound() {
	cause := w.cause
	if cause == nil {
		cause = domain.ErrRouterProtocol
	}
	for {
		select {
		case ev, ok := <-w.inbound:
			if !ok {
				return
			}
			w.logger.Warn("worker: discarding event buffered at shutdown",
				"session_id", w.sessionID, "event", eventName(ev))
			if inv, ok := ev.(domain.Invoke); ok {
				inv.Reply <- domain.InvokeResult{Err: cause}
			}
		default:
			return
		}
	}
}

func (w *Worker) fail(ctx context.Context, req domain.DecisionRequest, err error) (string, error) {
	w.cause = err
	w.metrics.SessionFailed()
	w.fireDecisionEnd(ctx, req, "", err)
	return "", err
}

// record appends to the transcript. Audit failures are logged, never
// propagated: the evaluation result must not depend on the audit backend.
func (w *Worker) record(ctx context.Context, kind ports.EntryKind, text string) {
	if w.transcript == nil {
		return
	}
	entry := ports.Entry{Time: time.Now().UTC(), Kind: kind, Text: text}
	if err := w.transcript.Append(ctx, w.sessionID, entry); err != nil {
		w.logger.Warn("worker: transcript append failed", "session_id", w.sessionID, "err", err)
	}
}

func (w *Worker) fireDecisionStart(ctx context.Context, req domain.DecisionRequest) {
	if w.hooks.OnDecisionStart == nil {
		return
	}
	w.hooks.OnDecisionStart(ctx, &domain.DecisionEvent{
		EventBase: domain.EventBase{Timestamp: time.Now()},
		SessionID: w.sessionID,
		Prompt:    req.Prompt,
		Options:   req.Options(),
	})
}

func (w *Worker) fireDecisionEnd(ctx context.Context, req domain.DecisionRequest, message string, err error) {
	if w.hooks.OnDecisionEnd == nil {
		return
	}
	w.hooks.OnDecisionEnd(ctx, &domain.DecisionEvent{
		EventBase: domain.EventBase{Timestamp: time.Now()},
		SessionID: w.sessionID,
		Prompt:    req.Prompt,
		Options:   req.Options(),
		Message:   message,
		Err:       err,
	})
}

func (w *Worker) fireInvoke(ctx context.Context, option int, isError bool) {
	if w.hooks.OnInvoke == nil {
		return
	}
	w.hooks.OnInvoke(ctx, &domain.InvokeEvent{
		EventBase:   domain.EventBase{Timestamp: time.Now()},
		SessionID:   w.sessionID,
		OptionIndex: option,
		IsError:     isError,
	})
}
