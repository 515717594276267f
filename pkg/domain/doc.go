/*
Package domain contains the core domain models for the Arbor engine.

It defines the fundamental entities of the evaluation model: the three-variant
node tree, the decision request submitted to the session layer, the inbound
session events, and the error taxonomy. This package is kept pure and free of
external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - Node: One variant of the evaluation tree (output, sequence, or decision).
  - DecisionRequest: The prompt and the indexed option subtrees of an open session.
  - SessionEvent: Untagged inbound events (Notification, Invoke, TurnComplete).
  - InvokeResult: The single-use reply payload for one invoke.
*/
package domain
