// Package schema defines the versioned on-disk document format for trees.
//
// A document wraps a tree in an envelope carrying authoring metadata:
//
//	version: 1
//	name: expense-intake
//	description: Routes scanned documents to the right pipeline.
//	tree:
//	  kind: decision
//	  prompt: Which kind of document is this?
//	  children:
//	    - kind: output
//	      message: Filing as receipt
//	    - kind: output
//	      message: Filing as invoice
//
// Bare trees without the envelope are also accepted and treated as
// current-version documents. Validate reports every shape violation with its
// node path, which suits editors and the validate command; the runtime's own
// validation stays fail-fast.
package schema
