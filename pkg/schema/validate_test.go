package schema_test

import (
	"testing"

	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsWellFormedDocument(t *testing.T) {
	doc := schema.NewDocument("ok", domain.Sequence(
		domain.Output("a"),
		domain.Decision("pick", domain.Output("b")),
	))

	assert.NoError(t, schema.Validate(doc))
}

func TestValidateCollectsAllFindings(t *testing.T) {
	doc := schema.NewDocument("broken", domain.Node{
		Kind: domain.NodeKindSequence,
		Children: []domain.Node{
			{Kind: domain.NodeKindOutput, Message: "x", Prompt: "illegal"},
			{Kind: domain.NodeKindDecision}, // missing prompt
			{Kind: "mystery"},
		},
	})

	err := schema.Validate(doc)
	require.Error(t, err)

	errs := schema.ValidationErrors(err)
	require.Len(t, errs, 3, "all findings must be reported in one pass")
	assert.ErrorContains(t, errs[0], "$.children[0]")
	assert.ErrorContains(t, errs[0], "prompt")
	assert.ErrorContains(t, errs[1], "$.children[1]")
	assert.ErrorContains(t, errs[2], "unknown node kind")
}

func TestValidateRejectsBadVersion(t *testing.T) {
	doc := &schema.Document{Version: 99, Tree: domain.Output("hi")}

	err := schema.Validate(doc)
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported version 99")
}

func TestValidateNilDocument(t *testing.T) {
	assert.Error(t, schema.Validate(nil))
}
