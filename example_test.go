package arbor_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/arborlabs/arbor"
	"github.com/arborlabs/arbor/pkg/adapters/memory"
)

// ExampleNew demonstrates evaluating a tree with a scripted oracle standing
// in for the external judge. This is useful for tests, embedded scenarios,
// or headless runs where decisions are known in advance.
func ExampleNew() {
	// 1. Define the tree using pure Go constructors
	tree := arbor.Decision("Categorize this document.",
		arbor.Sequence(
			arbor.Output("Categorized as: RECEIPT"),
			arbor.Output("Extracting amount..."),
		),
		arbor.Output("Categorized as: PERSONAL"),
	)

	// 2. Script the oracle: inspect branch 0, then end the turn
	oracle := memory.NewOracle(memory.SessionScript{
		Steps: []memory.Step{
			memory.Invoke(0),
			memory.Complete("categorized as receipt"),
		},
	})

	// 3. Evaluate; emitted messages stream to the output writer
	eng, err := arbor.New(oracle, arbor.WithOutputWriter(os.Stdout))
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	message, err := eng.Evaluate(context.Background(), tree)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("verdict:", message)

	// Output:
	// Categorized as: RECEIPT
	// Extracting amount...
	// verdict: categorized as receipt
}

// ExampleEngine_Evaluate_nested shows a decision branch that itself contains
// a decision: the nested session opens while the outer one is suspended, and
// each session consumes its own script in open order.
func ExampleEngine_Evaluate_nested() {
	tree := arbor.Decision("Triage this incident.",
		arbor.Decision("Assess the severity.",
			arbor.Output("Severity: LOW"),
			arbor.Output("Severity: HIGH"),
		),
		arbor.Output("Not an incident."),
	)

	oracle := memory.NewOracle(
		memory.SessionScript{Steps: []memory.Step{
			memory.Invoke(0),
			memory.Complete("triaged"),
		}},
		memory.SessionScript{Steps: []memory.Step{
			memory.Invoke(1),
			memory.Complete("assessed"),
		}},
	)

	eng, err := arbor.New(oracle, arbor.WithOutputWriter(os.Stdout))
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	message, err := eng.Evaluate(context.Background(), tree)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("verdict:", message)

	// Output:
	// Severity: HIGH
	// verdict: triaged
}
