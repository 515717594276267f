package runtime_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/arborlabs/arbor/internal/runtime"
	"github.com/arborlabs/arbor/pkg/adapters/memory"
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// harness wires an interpreter to a scripted oracle the way the engine does:
// a pump goroutine moves the oracle's untagged events onto the router, and the
// oracle's invoke steps call back through the bridge.
type harness struct {
	oracle *memory.Oracle
	router *session.Router
	interp *runtime.Interpreter
}

func newHarness(t *testing.T, scripts []memory.SessionScript, opts ...runtime.Option) *harness {
	t.Helper()

	oracle := memory.NewOracle(scripts...)
	router := session.NewRouter()
	bridge := session.NewBridge(router)
	oracle.BindTool(bridge.Do)

	go func() {
		for ev := range oracle.Events() {
			router.Deliver(ev)
		}
	}()
	t.Cleanup(func() {
		oracle.Close()
		router.Close()
	})

	return &harness{
		oracle: oracle,
		router: router,
		interp: runtime.NewInterpreter(oracle, router, opts...),
	}
}

func TestInterpreterOutputNode(t *testing.T) {
	var buf bytes.Buffer
	h := newHarness(t, nil, runtime.WithOutputWriter(&buf))

	text, err := h.interp.Evaluate(context.Background(), domain.Output("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, "hello\n", buf.String())
}

func TestInterpreterSequenceOrder(t *testing.T) {
	h := newHarness(t, nil)

	tree := domain.Sequence(domain.Output("a"), domain.Output("b"))
	text, err := h.interp.Evaluate(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, "ab", text)
}

func TestInterpreterSequenceFailsFast(t *testing.T) {
	var buf bytes.Buffer
	h := newHarness(t, []memory.SessionScript{
		{FailOpen: true},
	}, runtime.WithOutputWriter(&buf))

	tree := domain.Sequence(
		domain.Output("a"),
		domain.Decision("doomed", domain.Output("x")),
		domain.Output("c"),
	)
	_, err := h.interp.Evaluate(context.Background(), tree)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSessionStart)
	assert.ErrorContains(t, err, "sequence child 1")
	assert.Equal(t, "a\n", buf.String(), "children after the failure must not run")
}

func TestInterpreterDecisionCompletes(t *testing.T) {
	h := newHarness(t, []memory.SessionScript{
		{Steps: []memory.Step{
			memory.Notify("considering"),
			memory.Complete("chose nothing"),
		}},
	})

	tree := domain.Decision("pick", domain.Output("a"), domain.Output("b"))
	text, err := h.interp.Evaluate(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, "chose nothing", text)
	assert.Equal(t, []string{"pick"}, h.oracle.Prompts())
	assert.Equal(t, 0, h.router.Depth())
}

func TestInterpreterDecisionWithInvoke(t *testing.T) {
	var buf bytes.Buffer
	h := newHarness(t, []memory.SessionScript{
		{Steps: []memory.Step{
			memory.Invoke(1),
			memory.Complete("went with the second"),
		}},
	}, runtime.WithOutputWriter(&buf))

	tree := domain.Decision("pick", domain.Output("first"), domain.Output("second"))
	text, err := h.interp.Evaluate(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, "went with the second", text)
	assert.Equal(t, "second\n", buf.String())

	outcomes := h.oracle.Outcomes()
	require.Len(t, outcomes, 1)
	assert.Equal(t, 1, outcomes[0].OptionIndex)
	assert.Equal(t, "second", outcomes[0].Text)
	require.NoError(t, outcomes[0].Err)
}

func TestInterpreterInvalidOptionIndexDoesNotAbort(t *testing.T) {
	h := newHarness(t, []memory.SessionScript{
		{Steps: []memory.Step{
			memory.Invoke(9),
			memory.Complete("recovered"),
		}},
	})

	tree := domain.Decision("pick", domain.Output("only"))
	text, err := h.interp.Evaluate(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)

	outcomes := h.oracle.Outcomes()
	require.Len(t, outcomes, 1)
	assert.ErrorIs(t, outcomes[0].Err, domain.ErrInvalidOptionIndex)
	assert.Equal(t, 0, h.router.Depth())
}

func TestInterpreterNestedDecisions(t *testing.T) {
	h := newHarness(t, []memory.SessionScript{
		// Outer session: delegate to the nested decision, then complete.
		{Steps: []memory.Step{
			memory.Invoke(0),
			memory.Complete("outer done"),
		}},
		// Inner session, opened mid-invoke of the outer one.
		{Steps: []memory.Step{
			memory.Notify("inner is thinking"),
			memory.Complete("inner done"),
		}},
	})

	tree := domain.Decision("outer",
		domain.Decision("inner", domain.Output("leaf")),
	)
	text, err := h.interp.Evaluate(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, "outer done", text)
	assert.Equal(t, []string{"outer", "inner"}, h.oracle.Prompts())

	outcomes := h.oracle.Outcomes()
	require.Len(t, outcomes, 1)
	assert.Equal(t, "inner done", outcomes[0].Text)
	assert.Equal(t, 0, h.router.Depth())
}

func TestInterpreterMaxDepth(t *testing.T) {
	h := newHarness(t, []memory.SessionScript{
		{Steps: []memory.Step{
			memory.Invoke(0),
			memory.Complete("still fine"),
		}},
	}, runtime.WithMaxDepth(1))

	tree := domain.Decision("outer",
		domain.Decision("too deep", domain.Output("leaf")),
	)
	text, err := h.interp.Evaluate(context.Background(), tree)
	require.NoError(t, err, "depth violations surface as invoke errors, not evaluation aborts")
	assert.Equal(t, "still fine", text)

	outcomes := h.oracle.Outcomes()
	require.Len(t, outcomes, 1)
	assert.ErrorIs(t, outcomes[0].Err, domain.ErrMaxDepthExceeded)
}

func TestInterpreterSessionFailurePropagates(t *testing.T) {
	h := newHarness(t, []memory.SessionScript{
		{Steps: []memory.Step{
			memory.Notify("about to die"),
			memory.Fail("connection reset"),
		}},
	})

	tree := domain.Decision("pick", domain.Output("a"))
	_, err := h.interp.Evaluate(context.Background(), tree)
	assert.ErrorIs(t, err, domain.ErrSessionComm)
	assert.ErrorContains(t, err, "connection reset")
	assert.Equal(t, 0, h.router.Depth())
}

func TestInterpreterUnknownKind(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.interp.Evaluate(context.Background(), domain.Node{Kind: "mystery"})
	assert.ErrorIs(t, err, domain.ErrInvalidNode)
}

func TestInterpreterCancellation(t *testing.T) {
	// A script with no terminal step never completes the session.
	h := newHarness(t, []memory.SessionScript{
		{Steps: []memory.Step{memory.Notify("stalling")}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.interp.Evaluate(ctx, domain.Decision("pick", domain.Output("a")))
		done <- err
	}()

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, h.router.Depth())
}
