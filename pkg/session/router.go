package session

import (
	"log/slog"
	"sync"

	"github.com/arborlabs/arbor/internal/logging"
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/observability"
)

// Handle is a worker's delivery address: the send side of its inbound channel.
// The router holds handles only by reference and has no authority over worker
// lifetime.
type Handle chan<- domain.SessionEvent

type opKind int

const (
	opPush opKind = iota
	opPop
	opDeliver
	opDepth
	opStop
)

type routerOp struct {
	kind   opKind
	handle Handle
	event  domain.SessionEvent
	ack    chan routerAck
}

type routerAck struct {
	depth int
	err   error
}

// Router is the single-owner actor that multiplexes untagged inbound events
// to the correct waiting worker. It holds a LIFO stack of handles, mutated
// only by its own goroutine via push/pop messages; every event is delivered
// to whichever handle is topmost at processing time.
//
// This is correct only under the synchronous-nesting invariant: a session is
// pushed only while its parent session is quiescent, blocked waiting on the
// child. If the transport ever allows two sessions to be externally active
// without nesting, events can be misrouted; such a transport needs explicit
// per-session tagging instead of this stack.
type Router struct {
	ops     chan routerOp
	logger  *slog.Logger
	metrics *observability.Metrics

	stopOnce sync.Once
}

// RouterOption configures the Router.
type RouterOption func(*Router)

// WithRouterLogger sets a structured logger for the router.
func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRouterMetrics attaches prometheus instrumentation.
func WithRouterMetrics(m *observability.Metrics) RouterOption {
	return func(r *Router) {
		r.metrics = m
	}
}

// NewRouter creates a router and starts its actor goroutine.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		ops:    make(chan routerOp, 64),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.loop()
	return r
}

// loop owns the stack. Ops are processed strictly in arrival order, which
// gives the system-wide FIFO delivery guarantee.
func (r *Router) loop() {
	var stack []Handle

	for op := range r.ops {
		switch op.kind {
		case opPush:
			stack = append(stack, op.handle)
			r.metrics.StackDepth(len(stack))
			r.logger.Debug("router: worker registered", "depth", len(stack))
			op.ack <- routerAck{depth: len(stack)}

		case opPop:
			if len(stack) == 0 {
				// Lifecycle bug: every pop must be owed by a prior push.
				r.logger.Error("router: pop on empty stack")
				op.ack <- routerAck{err: domain.ErrRouterProtocol}
				continue
			}
			stack = stack[:len(stack)-1]
			r.metrics.StackDepth(len(stack))
			r.logger.Debug("router: worker released", "depth", len(stack))
			op.ack <- routerAck{depth: len(stack)}

		case opDeliver:
			if len(stack) == 0 {
				r.drop(op.event, "empty stack")
				continue
			}
			// A full inbound buffer means the topmost worker has stopped
			// servicing its channel. Blocking here would wedge the loop and
			// every session behind it, so the event is shed instead.
			select {
			case stack[len(stack)-1] <- op.event:
			default:
				r.drop(op.event, "inbound buffer full")
			}

		case opDepth:
			op.ack <- routerAck{depth: len(stack)}

		case opStop:
			op.ack <- routerAck{}
			return
		}
	}
}

// drop handles an event that cannot be delivered. The event is logged and
// discarded; an invoke additionally gets its reply slot resolved so no
// bridge caller is left suspended.
func (r *Router) drop(ev domain.SessionEvent, reason string) {
	r.metrics.EventDropped()
	r.logger.Warn("router: dropping undeliverable event", "event", eventName(ev), "reason", reason)
	if inv, ok := ev.(domain.Invoke); ok {
		inv.Reply <- domain.InvokeResult{Err: domain.ErrRouterProtocol}
	}
}

// Push registers a worker handle on top of the stack. It returns once the
// registration is applied, so no event enqueued afterwards can miss it.
func (r *Router) Push(h Handle) {
	ack := make(chan routerAck, 1)
	r.ops <- routerOp{kind: opPush, handle: h, ack: ack}
	<-ack
}

// Pop releases the topmost handle. Popping an empty stack indicates a
// lifecycle bug and returns ErrRouterProtocol.
func (r *Router) Pop() error {
	ack := make(chan routerAck, 1)
	r.ops <- routerOp{kind: opPop, ack: ack}
	return (<-ack).err
}

// Deliver enqueues an inbound event for the currently topmost worker.
// Events are processed in arrival order across the whole system.
func (r *Router) Deliver(ev domain.SessionEvent) {
	r.ops <- routerOp{kind: opDeliver, event: ev}
}

// Depth reports the number of registered workers.
func (r *Router) Depth() int {
	ack := make(chan routerAck, 1)
	r.ops <- routerOp{kind: opDepth, ack: ack}
	return (<-ack).depth
}

// Close stops the actor goroutine. The router must not be used afterwards.
func (r *Router) Close() {
	r.stopOnce.Do(func() {
		ack := make(chan routerAck, 1)
		r.ops <- routerOp{kind: opStop, ack: ack}
		<-ack
	})
}

func eventName(ev domain.SessionEvent) string {
	switch ev.(type) {
	case domain.Notification:
		return "notification"
	case domain.Invoke:
		return "invoke"
	case domain.TurnComplete:
		return "turn_complete"
	case domain.SessionError:
		return "session_error"
	default:
		return "unknown"
	}
}
