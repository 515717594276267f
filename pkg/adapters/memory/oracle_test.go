package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arborlabs/arbor/pkg/adapters/memory"
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOracleScriptPlayback(t *testing.T) {
	oracle := memory.NewOracle(memory.SessionScript{
		Steps: []memory.Step{
			memory.Notify("warming up"),
			memory.Invoke(2),
			memory.Complete("all done"),
		},
	})
	defer oracle.Close()

	oracle.BindTool(func(ctx context.Context, optionIndex int) (string, error) {
		return "result for " + string(rune('0'+optionIndex)), nil
	})

	ctx := context.Background()
	id, err := oracle.OpenSession(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.NoError(t, oracle.SendPrompt(ctx, id, "the prompt"))

	assert.Equal(t, domain.Notification{Text: "warming up"}, nextEvent(t, oracle))
	assert.Equal(t, domain.TurnComplete{Message: "all done"}, nextEvent(t, oracle))

	assert.Equal(t, []string{"the prompt"}, oracle.Prompts())
	outcomes := oracle.Outcomes()
	require.Len(t, outcomes, 1)
	assert.Equal(t, 2, outcomes[0].OptionIndex)
	assert.Equal(t, "result for 2", outcomes[0].Text)
}

func TestOracleScriptExhaustion(t *testing.T) {
	oracle := memory.NewOracle() // no scripts at all
	defer oracle.Close()

	_, err := oracle.OpenSession(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, oracle.SessionsOpened())
}

func TestOracleScriptedOpenFailure(t *testing.T) {
	oracle := memory.NewOracle(memory.SessionScript{FailOpen: true})
	defer oracle.Close()

	_, err := oracle.OpenSession(context.Background())
	assert.Error(t, err)
}

func TestOracleInvokeWithoutBoundTool(t *testing.T) {
	oracle := memory.NewOracle(memory.SessionScript{
		Steps: []memory.Step{
			memory.Invoke(0),
			memory.Complete("done"),
		},
	})
	defer oracle.Close()

	ctx := context.Background()
	id, err := oracle.OpenSession(ctx)
	require.NoError(t, err)
	require.NoError(t, oracle.SendPrompt(ctx, id, "p"))

	assert.Equal(t, domain.TurnComplete{Message: "done"}, nextEvent(t, oracle))
	outcomes := oracle.Outcomes()
	require.Len(t, outcomes, 1)
	assert.Error(t, outcomes[0].Err)
}

func TestOracleCloseUnblocksPlayback(t *testing.T) {
	oracle := memory.NewOracle(memory.SessionScript{
		Steps: []memory.Step{
			// More notifications than the event buffer holds, with no reader:
			// playback stalls until Close drains it.
			memory.Notify("0"), memory.Notify("1"), memory.Notify("2"),
			memory.Notify("3"), memory.Notify("4"), memory.Notify("5"),
			memory.Notify("6"), memory.Notify("7"), memory.Notify("8"),
			memory.Notify("9"), memory.Notify("10"), memory.Notify("11"),
			memory.Notify("12"), memory.Notify("13"), memory.Notify("14"),
			memory.Notify("15"), memory.Notify("16"), memory.Notify("17"),
			memory.Complete("unreachable"),
		},
	})

	ctx := context.Background()
	id, err := oracle.OpenSession(ctx)
	require.NoError(t, err)
	require.NoError(t, oracle.SendPrompt(ctx, id, "p"))

	closed := make(chan struct{})
	go func() {
		oracle.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not unblock stalled playback")
	}

	// The stream must end cleanly for range-based pumps.
	for range oracle.Events() {
	}
}

func TestOracleBoundToolErrorIsRecorded(t *testing.T) {
	oracle := memory.NewOracle(memory.SessionScript{
		Steps: []memory.Step{
			memory.Invoke(1),
			memory.Complete("done"),
		},
	})
	defer oracle.Close()

	toolErr := errors.New("subtree failed")
	oracle.BindTool(func(ctx context.Context, optionIndex int) (string, error) {
		return "", toolErr
	})

	ctx := context.Background()
	id, err := oracle.OpenSession(ctx)
	require.NoError(t, err)
	require.NoError(t, oracle.SendPrompt(ctx, id, "p"))
	assert.Equal(t, domain.TurnComplete{Message: "done"}, nextEvent(t, oracle))

	outcomes := oracle.Outcomes()
	require.Len(t, outcomes, 1)
	assert.ErrorIs(t, outcomes[0].Err, toolErr)
}

func nextEvent(t *testing.T, oracle *memory.Oracle) domain.SessionEvent {
	t.Helper()
	select {
	case ev := <-oracle.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for oracle event")
		return nil
	}
}
