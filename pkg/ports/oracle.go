package ports

import (
	"context"

	"github.com/arborlabs/arbor/pkg/domain"
)

// Oracle is the external, non-deterministic judge reachable only through a
// request/response protocol. One Oracle multiplexes any number of
// conversation-scoped sessions, but its inbound event stream is untagged:
// events carry no session identifier, which is why delivery is stack-routed.
type Oracle interface {
	// OpenSession provisions a new conversation-scoped session and returns
	// its identifier. Errors here mean the decision evaluation never starts.
	OpenSession(ctx context.Context) (string, error)

	// SendPrompt submits the decision prompt to an open session. The oracle
	// answers asynchronously on the event stream and through the tool bridge.
	SendPrompt(ctx context.Context, sessionID, prompt string) error

	// Events is the single untagged inbound stream shared by all sessions of
	// this oracle. The channel is closed when the transport shuts down;
	// closing it while a session is active is a communication failure.
	Events() <-chan domain.SessionEvent
}

// DoFunc is the tool-bridge callback handed to oracle adapters that call the
// bridge in-process. It requests evaluation of the child at optionIndex of
// the currently active decision and blocks until the text result is ready.
type DoFunc func(ctx context.Context, optionIndex int) (string, error)

// ToolBinder is implemented by oracle adapters that need the tool bridge
// callback wired in at engine construction time.
type ToolBinder interface {
	BindTool(do DoFunc)
}
