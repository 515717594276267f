/*
Package session implements the decision session layer: the router, the
per-decision worker, and the tool bridge.

The router is a single-owner actor holding a LIFO stack of worker delivery
handles. The oracle transport does not tag events by session, so every
inbound event goes to whichever worker is topmost; this is correct exactly
because nesting is strictly synchronous (a parent session is quiescent while
its child is on the stack). Workers guarantee one pop per push on every exit
path, and the bridge guarantees exactly one eventual reply per invoke.
*/
package session
