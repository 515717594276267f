/*
Package ports defines the driven ports (interfaces) for the Arbor engine.

These interfaces decouple the core logic from external implementations,
allowing the engine to work with various oracle transports and audit
backends.

# Key Interfaces

  - Oracle: The external judge (session opening, prompt delivery, untagged event stream).
  - ToolBinder: Oracle adapters that need the tool-bridge callback wired in.
  - TranscriptStore: Per-session audit trail of prompts, notifications, and results.
*/
package ports
