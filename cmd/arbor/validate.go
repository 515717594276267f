package main

import (
	"fmt"
	"os"

	"github.com/arborlabs/arbor/internal/validator"
	"github.com/arborlabs/arbor/pkg/schema"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <tree-file>",
	Short: "Check a tree file for shape errors",
	Long: `Loads the tree file, reports every shape violation with its node path,
and prints advisory lint findings for suspicious but legal constructs.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		strict, _ := cmd.Flags().GetBool("strict")
		if err := runValidate(args[0], strict); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Tree is valid! ✅")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("strict", false, "Treat lint warnings as errors")
}

func runValidate(path string, strict bool) error {
	doc, err := schema.Load(path)
	if err != nil {
		return err
	}

	if err := schema.Validate(doc); err != nil {
		return err
	}

	findings := validator.Lint(doc.Tree)
	for _, f := range findings {
		fmt.Printf("lint: %s\n", f)
	}
	if strict && len(findings) > 0 {
		return fmt.Errorf("%d lint finding(s) in strict mode", len(findings))
	}

	return nil
}
