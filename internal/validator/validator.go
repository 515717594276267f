// Package validator lints tree documents for authoring mistakes that are
// legal at runtime but usually unintended. Hard shape violations are the
// schema package's job; this reports advisory findings.
package validator

import (
	"fmt"
	"strings"

	"github.com/arborlabs/arbor/pkg/domain"
)

// Severity grades a finding.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Finding is one lint result.
type Finding struct {
	Severity Severity
	Path     string
	Message  string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s: %s", f.Severity, f.Path, f.Message)
}

// Lint walks the tree and collects findings. An empty result means clean.
func Lint(node domain.Node) []Finding {
	var findings []Finding
	seenPrompts := make(map[string]string)
	lintNode(node, "$", 0, seenPrompts, &findings)
	return findings
}

func lintNode(node domain.Node, path string, depth int, seenPrompts map[string]string, findings *[]Finding) {
	add := func(sev Severity, format string, args ...any) {
		*findings = append(*findings, Finding{
			Severity: sev,
			Path:     path,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	switch node.Kind {
	case domain.NodeKindOutput:
		if strings.TrimSpace(node.Message) == "" {
			add(SeverityWarning, "output node has an empty message")
		}

	case domain.NodeKindSequence:
		if len(node.Children) == 0 {
			add(SeverityWarning, "sequence node has no children and produces nothing")
		}
		if len(node.Children) == 1 {
			add(SeverityInfo, "sequence with a single child is redundant")
		}

	case domain.NodeKindDecision:
		if len(node.Children) == 0 {
			add(SeverityInfo, "decision node has no branches; the judge can only complete")
		}
		if prev, ok := seenPrompts[node.Prompt]; ok {
			add(SeverityWarning, "prompt duplicates the one at %s; the judge cannot tell the sessions apart", prev)
		} else {
			seenPrompts[node.Prompt] = path
		}
	}

	for i, child := range node.Children {
		lintNode(child, fmt.Sprintf("%s.children[%d]", path, i), depth+1, seenPrompts, findings)
	}
}
