package schema

import (
	"github.com/arborlabs/arbor/pkg/domain"
)

// CurrentVersion is the document format version this build writes and the
// highest version it accepts.
const CurrentVersion = 1

// Document is the on-disk envelope around a tree. The envelope carries
// authoring metadata the runtime does not interpret.
type Document struct {
	Version     int               `json:"version" yaml:"version" mapstructure:"version"`
	Name        string            `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Labels      map[string]string `json:"labels,omitempty" yaml:"labels,omitempty" mapstructure:"labels"`
	Tree        domain.Node       `json:"tree" yaml:"tree" mapstructure:"tree"`
}

// NewDocument wraps a tree in a current-version envelope.
func NewDocument(name string, tree domain.Node) *Document {
	return &Document{
		Version: CurrentVersion,
		Name:    name,
		Tree:    tree,
	}
}
