/*
Package observability provides prometheus instrumentation for the Arbor engine.

A single Metrics value is shared by the router, the decision workers and the
interpreter. The nil value records nothing, so instrumentation is always safe
to call.
*/
package observability
