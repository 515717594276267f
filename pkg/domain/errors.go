package domain

import "errors"

// ErrInvalidNode is returned when a tree violates the node shape invariants.
var ErrInvalidNode = errors.New("invalid node")

// ErrInvalidOptionIndex is returned through an invoke reply slot when the
// requested option index is out of range for the active decision. It is local
// to one invoke and never aborts the enclosing decision evaluation.
var ErrInvalidOptionIndex = errors.New("invalid option index")

// ErrSessionStart is returned when an oracle session could not be opened.
// It fails the whole decision evaluation.
var ErrSessionStart = errors.New("session start failure")

// ErrSessionComm is returned on a transport-level failure mid-session.
// It fails the in-flight decision evaluation; the worker still releases its
// router registration.
var ErrSessionComm = errors.New("session communication failure")

// ErrNestedEvaluation marks the failure of a recursive child evaluation.
// It is surfaced to the oracle as a tool error for that specific invoke; the
// session may continue or end its turn on its own.
var ErrNestedEvaluation = errors.New("nested evaluation failure")

// ErrRouterProtocol indicates a router lifecycle bug: a pop on an empty stack,
// or an event that arrived with no registered worker. It is an
// internal-consistency fault, not a recoverable external condition.
var ErrRouterProtocol = errors.New("router protocol anomaly")

// ErrMaxDepthExceeded is returned when decision nesting exceeds the
// interpreter's configured maximum.
var ErrMaxDepthExceeded = errors.New("maximum decision nesting depth exceeded")
