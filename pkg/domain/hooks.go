package domain

import (
	"context"
	"time"
)

// EventBase contains common fields for all lifecycle events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
}

// OutputEvent fires when an output node emits its message.
type OutputEvent struct {
	EventBase
	Message string `json:"message"`
}

// DecisionEvent fires around a decision session's lifetime.
type DecisionEvent struct {
	EventBase
	SessionID string `json:"session_id,omitempty"`
	Prompt    string `json:"prompt"`
	Options   int    `json:"options"`
	// Message is the terminal completion text (end event only).
	Message string `json:"message,omitempty"`
	// Err is set when the decision evaluation failed (end event only).
	Err error `json:"-"`
}

// InvokeEvent fires for every invoke serviced by a worker.
type InvokeEvent struct {
	EventBase
	SessionID   string `json:"session_id"`
	OptionIndex int    `json:"option_index"`
	IsError     bool   `json:"is_error,omitempty"`
}

// LifecycleHooks defines callbacks for evaluation observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnOutput        func(context.Context, *OutputEvent)
	OnDecisionStart func(context.Context, *DecisionEvent)
	OnDecisionEnd   func(context.Context, *DecisionEvent)
	OnInvoke        func(context.Context, *InvokeEvent)
}
