// Package graph renders trees as Mermaid flowcharts for documentation and
// quick visual review.
package graph

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/arborlabs/arbor/pkg/domain"
)

// GenerateMermaid produces a Mermaid flowchart from a tree.
// Semantic shapes:
//   - Decision: {Diamond}
//   - Output: [Rectangle]
//   - Sequence: [[Subroutine]]
func GenerateMermaid(root domain.Node) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	counter := 0
	writeNode(&sb, root, &counter)

	sb.WriteString("\n    classDef decision fill:#fff3e0,stroke:#e65100,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef output fill:#e1f5fe,stroke:#01579b,stroke-width:1px,color:#000;\n")
	return sb.String()
}

// writeNode emits one node and its subtree, returning the node's Mermaid ID.
func writeNode(sb *strings.Builder, node domain.Node, counter *int) string {
	id := fmt.Sprintf("n%d", *counter)
	*counter++

	switch node.Kind {
	case domain.NodeKindDecision:
		fmt.Fprintf(sb, "    %s{\"%s\"}\n", id, escapeMermaidLabel(node.Prompt))
		fmt.Fprintf(sb, "    class %s decision;\n", id)
	case domain.NodeKindOutput:
		fmt.Fprintf(sb, "    %s[\"%s\"]\n", id, escapeMermaidLabel(node.Message))
		fmt.Fprintf(sb, "    class %s output;\n", id)
	default:
		fmt.Fprintf(sb, "    %s[[\"sequence\"]]\n", id)
	}

	for i, child := range node.Children {
		childID := writeNode(sb, child, counter)
		if node.Kind == domain.NodeKindDecision {
			// Branches are taken on the judge's request; label with the index
			// the judge must pass to take them.
			fmt.Fprintf(sb, "    %s -. \"do %d\" .-> %s\n", id, i, childID)
		} else {
			fmt.Fprintf(sb, "    %s --> %s\n", id, childID)
		}
	}
	return id
}

func escapeMermaidLabel(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 60 {
		// Back up to a rune boundary so the cut never splits a multi-byte
		// character.
		cut := 60
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
