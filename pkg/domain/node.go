package domain

import "fmt"

// NodeKind is the tag discriminating the node variants.
type NodeKind string

// NodeKind constants define the three node shapes.
const (
	// NodeKindOutput emits a message and contributes it to the accumulated output (leaf).
	NodeKindOutput NodeKind = "output"
	// NodeKindSequence evaluates its children strictly in order and concatenates their output.
	NodeKindSequence NodeKind = "sequence"
	// NodeKindDecision suspends evaluation until an external oracle session completes,
	// servicing sub-evaluation requests for its indexed children while it waits.
	NodeKindDecision NodeKind = "decision"
)

// Node is one variant of the evaluation tree. Trees are immutable once
// constructed and must be finite and acyclic; children are owned by their
// parent and never shared.
//
// Each kind carries only its own fields:
//
//	output   { message }
//	sequence { children }
//	decision { prompt, children }
type Node struct {
	Kind NodeKind `json:"kind" yaml:"kind" mapstructure:"kind"`

	// Message is the emitted text. Only valid on output nodes.
	Message string `json:"message,omitempty" yaml:"message,omitempty" mapstructure:"message"`

	// Prompt is the text submitted to the oracle. Only valid on decision nodes.
	Prompt string `json:"prompt,omitempty" yaml:"prompt,omitempty" mapstructure:"prompt"`

	// Children are the ordered subtrees. On decision nodes each child is
	// addressed by its 0-based position (the option index).
	Children []Node `json:"children,omitempty" yaml:"children,omitempty" mapstructure:"children"`
}

// Output constructs an output leaf.
func Output(message string) Node {
	return Node{Kind: NodeKindOutput, Message: message}
}

// Sequence constructs a sequence node over the given children.
func Sequence(children ...Node) Node {
	return Node{Kind: NodeKindSequence, Children: children}
}

// Decision constructs a decision node with the given prompt and option subtrees.
func Decision(prompt string, children ...Node) Node {
	return Node{Kind: NodeKindDecision, Prompt: prompt, Children: children}
}

// Validate checks the shape invariants of the node and its whole subtree.
// It does not bound the tree depth; that is an evaluation concern.
func (n Node) Validate() error {
	switch n.Kind {
	case NodeKindOutput:
		if len(n.Children) > 0 {
			return fmt.Errorf("%w: output node cannot have children", ErrInvalidNode)
		}
		if n.Prompt != "" {
			return fmt.Errorf("%w: output node cannot carry a prompt", ErrInvalidNode)
		}
	case NodeKindSequence:
		if n.Message != "" {
			return fmt.Errorf("%w: sequence node cannot carry a message", ErrInvalidNode)
		}
		if n.Prompt != "" {
			return fmt.Errorf("%w: sequence node cannot carry a prompt", ErrInvalidNode)
		}
	case NodeKindDecision:
		if n.Message != "" {
			return fmt.Errorf("%w: decision node cannot carry a message", ErrInvalidNode)
		}
		if n.Prompt == "" {
			return fmt.Errorf("%w: decision node requires a prompt", ErrInvalidNode)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidNode, n.Kind)
	}

	for i, c := range n.Children {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("child %d: %w", i, err)
		}
	}
	return nil
}

// DecisionRequest is submitted by the interpreter to open a decision session.
// The interpreter owns the request until a terminal response arrives.
type DecisionRequest struct {
	Prompt   string
	Children []Node
}

// Options returns the number of addressable children.
func (r DecisionRequest) Options() int {
	return len(r.Children)
}
