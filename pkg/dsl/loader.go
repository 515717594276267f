package dsl

import (
	"fmt"
	"os"

	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// nodeDoc is the raw document shape of one tree node. Children stay untyped
// here; they are decoded recursively so shape errors carry their path.
type nodeDoc struct {
	Kind     string           `mapstructure:"kind"`
	Message  string           `mapstructure:"message"`
	Prompt   string           `mapstructure:"prompt"`
	Children []map[string]any `mapstructure:"children"`
}

// Parse decodes a tree document (YAML, or JSON via the YAML superset) into a
// validated domain.Node.
func Parse(data []byte) (domain.Node, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return domain.Node{}, fmt.Errorf("failed to parse tree document: %w", err)
	}

	node, err := decodeNode(raw, "$")
	if err != nil {
		return domain.Node{}, err
	}
	if err := node.Validate(); err != nil {
		return domain.Node{}, err
	}
	return node, nil
}

// ParseFile reads and decodes a tree file.
func ParseFile(path string) (domain.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Node{}, fmt.Errorf("failed to read tree file: %w", err)
	}
	node, err := Parse(data)
	if err != nil {
		return domain.Node{}, fmt.Errorf("%s: %w", path, err)
	}
	return node, nil
}

// DecodeNode decodes one raw node mapping. The result is not shape-validated;
// callers wrapping nodes in larger documents validate after assembly.
func DecodeNode(raw map[string]any) (domain.Node, error) {
	return decodeNode(raw, "$")
}

func decodeNode(raw map[string]any, path string) (domain.Node, error) {
	var doc nodeDoc
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &doc,
		ErrorUnused: true,
	})
	if err != nil {
		return domain.Node{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return domain.Node{}, fmt.Errorf("%s: %w", path, err)
	}

	node := domain.Node{
		Kind:    domain.NodeKind(doc.Kind),
		Message: doc.Message,
		Prompt:  doc.Prompt,
	}
	for i, child := range doc.Children {
		decoded, err := decodeNode(child, fmt.Sprintf("%s.children[%d]", path, i))
		if err != nil {
			return domain.Node{}, err
		}
		node.Children = append(node.Children, decoded)
	}
	return node, nil
}
