/*
Package arbor evaluates node trees whose decision points are judged by an
external oracle.

A tree mixes deterministic structure (ordered sequences of output leaves)
with non-deterministic decision nodes. Evaluating a decision node opens a
conversation-scoped session with the oracle, sends it the node's prompt, and
suspends that call frame until the oracle ends its turn. While suspended, the
oracle may ask, through a tool call named "do", for any of the decision's
indexed children to be evaluated; that sub-evaluation recurses through the
same interpreter and may open further nested sessions.

The oracle transport does not tag inbound events with a session identifier.
Arbor therefore routes events with a LIFO stack of active decision workers:
a nested session is only ever opened while its parent is quiescent, so the
topmost worker is always the right recipient. The router is a single-owner
actor; the stack is never shared mutable state.

# Usage

Wire an oracle adapter into an Engine and evaluate a tree:

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/arborlabs/arbor"
		"github.com/arborlabs/arbor/pkg/adapters/memory"
		"github.com/arborlabs/arbor/pkg/domain"
	)

	func main() {
		tree := arbor.Decision("Categorize this document.",
			arbor.Sequence(
				arbor.Output("Categorized as: RECEIPT"),
				arbor.Output("Extracting amount..."),
			),
			arbor.Output("Categorized as: PERSONAL"),
		)

		// A scripted oracle stands in for the external judge.
		oracle := memory.NewOracle(memory.SessionScript{
			Steps: []memory.Step{
				memory.Notify("inspecting document"),
				memory.Invoke(0),
				memory.Complete("done"),
			},
		})

		eng, err := arbor.New(oracle)
		if err != nil {
			log.Fatal(err)
		}
		defer eng.Close()

		out, err := eng.Evaluate(context.Background(), tree)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(out)
	}

Remote oracles connect over HTTP (pkg/adapters/http) or MCP
(pkg/adapters/mcp); an interactive console oracle (pkg/adapters/console)
lets a human judge decisions from a terminal.

The domain package owns the node type; arbor re-exports the constructors
(Output, Sequence, Decision) for convenience. See domain.Node for the wire
shape and the shape invariants.
*/
package arbor

import "github.com/arborlabs/arbor/pkg/domain"

// Output constructs an output leaf. See domain.Output.
func Output(message string) domain.Node { return domain.Output(message) }

// Sequence constructs a sequence node. See domain.Sequence.
func Sequence(children ...domain.Node) domain.Node { return domain.Sequence(children...) }

// Decision constructs a decision node. See domain.Decision.
func Decision(prompt string, children ...domain.Node) domain.Node {
	return domain.Decision(prompt, children...)
}
