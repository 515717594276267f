package schema

import (
	"fmt"
	"os"

	"github.com/arborlabs/arbor/pkg/dsl"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// envelopeDoc is the raw envelope shape. The tree stays untyped here so it
// can be decoded with per-node path errors.
type envelopeDoc struct {
	Version     int               `mapstructure:"version"`
	Name        string            `mapstructure:"name"`
	Description string            `mapstructure:"description"`
	Labels      map[string]string `mapstructure:"labels"`
	Tree        map[string]any    `mapstructure:"tree"`
}

// Unmarshal decodes a tree document (YAML, or JSON via the YAML superset).
// Both enveloped documents and bare trees are accepted; a bare tree is
// wrapped in an implicit current-version envelope.
func Unmarshal(data []byte) (*Document, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	// Bare tree: no envelope fields, just a node mapping.
	if _, ok := raw["tree"]; !ok {
		node, err := dsl.DecodeNode(raw)
		if err != nil {
			return nil, err
		}
		return &Document{Version: CurrentVersion, Tree: node}, nil
	}

	var env envelopeDoc
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &env,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid document envelope: %w", err)
	}

	if env.Version == 0 {
		env.Version = CurrentVersion
	}
	if env.Version > CurrentVersion {
		return nil, fmt.Errorf("unsupported document version %d (this build reads up to %d)", env.Version, CurrentVersion)
	}

	node, err := dsl.DecodeNode(env.Tree)
	if err != nil {
		return nil, err
	}

	return &Document{
		Version:     env.Version,
		Name:        env.Name,
		Description: env.Description,
		Labels:      env.Labels,
		Tree:        node,
	}, nil
}

// Marshal serializes the document as YAML.
func Marshal(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return out, nil
}

// Load reads and decodes a document file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document file: %w", err)
	}
	doc, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
