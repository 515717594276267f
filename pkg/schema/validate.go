package schema

import (
	"fmt"

	"github.com/arborlabs/arbor/pkg/domain"
)

// Validate checks the whole document and reports every shape violation at
// once. Unlike the fail-fast runtime validation, this collects all findings
// with their node paths, which suits authoring tools.
func Validate(doc *Document) error {
	if doc == nil {
		return &ValidationError{Reason: "nil document"}
	}

	var errs []error
	if doc.Version <= 0 || doc.Version > CurrentVersion {
		errs = append(errs, &ValidationError{
			Reason: fmt.Sprintf("unsupported version %d", doc.Version),
		})
	}
	errs = append(errs, validateNode(doc.Tree, "$")...)

	if len(errs) == 0 {
		return nil
	}
	return &AggregateError{Errors: errs}
}

func validateNode(node domain.Node, path string) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, &ValidationError{Path: path, Reason: fmt.Sprintf(format, args...)})
	}

	switch node.Kind {
	case domain.NodeKindOutput:
		if len(node.Children) > 0 {
			fail("output node cannot have children")
		}
		if node.Prompt != "" {
			fail("output node cannot carry a prompt")
		}

	case domain.NodeKindSequence:
		if node.Message != "" {
			fail("sequence node cannot carry a message")
		}
		if node.Prompt != "" {
			fail("sequence node cannot carry a prompt")
		}

	case domain.NodeKindDecision:
		if node.Prompt == "" {
			fail("decision node requires a prompt")
		}
		if node.Message != "" {
			fail("decision node cannot carry a message")
		}

	default:
		fail("unknown node kind %q", node.Kind)
	}

	for i, child := range node.Children {
		errs = append(errs, validateNode(child, fmt.Sprintf("%s.children[%d]", path, i))...)
	}
	return errs
}
