package main

import (
	"fmt"
	"os"

	"github.com/arborlabs/arbor/internal/presentation/graph"
	"github.com/arborlabs/arbor/pkg/schema"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <tree-file>",
	Short: "Export the tree visualization",
	Long:  `Loads the tree file and outputs a Mermaid diagram (graph TD) of its structure.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		doc, err := schema.Load(args[0])
		if err != nil {
			fmt.Printf("Error loading tree: %v\n", err)
			os.Exit(1)
		}
		if err := schema.Validate(doc); err != nil {
			fmt.Printf("Error validating tree: %v\n", err)
			os.Exit(1)
		}

		fmt.Print(graph.GenerateMermaid(doc.Tree))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
