package domain

// SessionEvent is one inbound event from the oracle transport. The transport
// does not tag events with a session identifier; delivery to the correct
// worker is the router's job.
type SessionEvent interface {
	sessionEvent()
}

// Notification is free-form text emitted by the oracle during a turn.
// Its use is implementation-defined (transcripts, audit, logging).
type Notification struct {
	Text string
}

// Invoke is an oracle-initiated request to evaluate the child at OptionIndex
// of the currently active decision. Reply is a single-use slot; exactly one
// InvokeResult must eventually be sent to it.
type Invoke struct {
	OptionIndex int
	Reply       chan<- InvokeResult
}

// TurnComplete is the terminal signal of a session turn. Message becomes the
// decision node's contribution to the accumulated output.
type TurnComplete struct {
	Message string
}

// SessionError reports an in-band transport failure for the active session.
type SessionError struct {
	Err error
}

func (Notification) sessionEvent() {}
func (Invoke) sessionEvent()       {}
func (TurnComplete) sessionEvent() {}
func (SessionError) sessionEvent() {}

// InvokeResult is the outcome of one invoke, relayed back to the oracle as
// the tool result.
type InvokeResult struct {
	Text string
	Err  error
}
