package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arborlabs/arbor/pkg/adapters/memory"
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/ports"
	"github.com/arborlabs/arbor/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubOracle gives tests direct control over session setup outcomes. Events
// are injected through the router, so Events is never read from here.
type stubOracle struct {
	openErr error
	sendErr error
	prompts []string
	events  chan domain.SessionEvent
}

func newStubOracle() *stubOracle {
	return &stubOracle{events: make(chan domain.SessionEvent)}
}

func (s *stubOracle) OpenSession(ctx context.Context) (string, error) {
	if s.openErr != nil {
		return "", s.openErr
	}
	return "session-1", nil
}

func (s *stubOracle) SendPrompt(ctx context.Context, sessionID, prompt string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.prompts = append(s.prompts, prompt)
	return nil
}

func (s *stubOracle) Events() <-chan domain.SessionEvent {
	return s.events
}

type runResult struct {
	message string
	err     error
}

func startWorker(t *testing.T, w *session.Worker, req domain.DecisionRequest, eval session.EvalFunc) <-chan runResult {
	t.Helper()
	done := make(chan runResult, 1)
	go func() {
		msg, err := w.Run(context.Background(), req, eval)
		done <- runResult{message: msg, err: err}
	}()
	return done
}

// waitDepth blocks until the worker has registered with the router, so a
// test's first Deliver cannot race the push and get dropped.
func waitDepth(t *testing.T, r *session.Router, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.Depth() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("router never reached depth %d", want)
}

func waitResult(t *testing.T, done <-chan runResult) runResult {
	t.Helper()
	select {
	case res := <-done:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not terminate")
		return runResult{}
	}
}

func TestWorkerCompletesOnTurnComplete(t *testing.T) {
	r := session.NewRouter()
	defer r.Close()

	oracle := newStubOracle()
	store := memory.NewTranscriptStore()
	w := session.NewWorker(oracle, r, session.WithWorkerTranscript(store))

	req := domain.DecisionRequest{Prompt: "pick one", Children: []domain.Node{domain.Output("a")}}
	done := startWorker(t, w, req, nil)
	waitDepth(t, r, 1)

	r.Deliver(domain.Notification{Text: "thinking"})
	r.Deliver(domain.TurnComplete{Message: "picked a"})

	res := waitResult(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, "picked a", res.message)
	assert.Equal(t, []string{"pick one"}, oracle.prompts)
	assert.Equal(t, 0, r.Depth(), "registration must be released after completion")

	entries, err := store.History(context.Background(), "session-1")
	require.NoError(t, err)
	kinds := make([]ports.EntryKind, 0, len(entries))
	for _, e := range entries {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []ports.EntryKind{ports.EntryPrompt, ports.EntryNote, ports.EntryComplete}, kinds)
}

func TestWorkerOpenSessionFailure(t *testing.T) {
	r := session.NewRouter()
	defer r.Close()

	oracle := newStubOracle()
	oracle.openErr = errors.New("backend down")
	w := session.NewWorker(oracle, r)

	_, err := w.Run(context.Background(), domain.DecisionRequest{Prompt: "p"}, nil)
	assert.ErrorIs(t, err, domain.ErrSessionStart)
	assert.Equal(t, 0, r.Depth(), "failed open must not leave a registration")
}

func TestWorkerSendPromptFailure(t *testing.T) {
	r := session.NewRouter()
	defer r.Close()

	oracle := newStubOracle()
	oracle.sendErr = errors.New("pipe broken")
	w := session.NewWorker(oracle, r)

	_, err := w.Run(context.Background(), domain.DecisionRequest{Prompt: "p"}, nil)
	assert.ErrorIs(t, err, domain.ErrSessionComm)
	assert.Equal(t, 0, r.Depth())
}

func TestWorkerServicesInvokes(t *testing.T) {
	r := session.NewRouter()
	defer r.Close()

	oracle := newStubOracle()
	w := session.NewWorker(oracle, r)

	req := domain.DecisionRequest{
		Prompt:   "choose",
		Children: []domain.Node{domain.Output("first"), domain.Output("second")},
	}
	var evaluated []int
	eval := func(ctx context.Context, optionIndex int) (string, error) {
		evaluated = append(evaluated, optionIndex)
		return req.Children[optionIndex].Message, nil
	}
	done := startWorker(t, w, req, eval)
	waitDepth(t, r, 1)

	t.Run("valid index returns child output", func(t *testing.T) {
		reply := make(chan domain.InvokeResult, 1)
		r.Deliver(domain.Invoke{OptionIndex: 1, Reply: reply})
		res := <-reply
		require.NoError(t, res.Err)
		assert.Equal(t, "second", res.Text)
	})

	t.Run("out-of-range index is rejected without aborting", func(t *testing.T) {
		reply := make(chan domain.InvokeResult, 1)
		r.Deliver(domain.Invoke{OptionIndex: 5, Reply: reply})
		res := <-reply
		assert.ErrorIs(t, res.Err, domain.ErrInvalidOptionIndex)
	})

	t.Run("session still completes after a rejected invoke", func(t *testing.T) {
		r.Deliver(domain.TurnComplete{Message: "done"})
		res := waitResult(t, done)
		require.NoError(t, res.err)
		assert.Equal(t, "done", res.message)
	})

	assert.Equal(t, []int{1}, evaluated)
	assert.Equal(t, 0, r.Depth())
}

func TestWorkerWrapsEvalFailures(t *testing.T) {
	r := session.NewRouter()
	defer r.Close()

	oracle := newStubOracle()
	w := session.NewWorker(oracle, r)

	req := domain.DecisionRequest{Prompt: "choose", Children: []domain.Node{domain.Output("a")}}
	eval := func(ctx context.Context, optionIndex int) (string, error) {
		return "", errors.New("child blew up")
	}
	done := startWorker(t, w, req, eval)
	waitDepth(t, r, 1)

	reply := make(chan domain.InvokeResult, 1)
	r.Deliver(domain.Invoke{OptionIndex: 0, Reply: reply})
	res := <-reply
	assert.ErrorIs(t, res.Err, domain.ErrNestedEvaluation)
	assert.ErrorContains(t, res.Err, "child blew up")

	r.Deliver(domain.TurnComplete{Message: "recovered"})
	run := waitResult(t, done)
	require.NoError(t, run.err)
	assert.Equal(t, "recovered", run.message)
}

func TestWorkerSessionErrorEvent(t *testing.T) {
	r := session.NewRouter()
	defer r.Close()

	oracle := newStubOracle()
	w := session.NewWorker(oracle, r)

	done := startWorker(t, w, domain.DecisionRequest{Prompt: "p"}, nil)
	waitDepth(t, r, 1)
	r.Deliver(domain.SessionError{Err: errors.New("stream reset")})

	res := waitResult(t, done)
	assert.ErrorIs(t, res.err, domain.ErrSessionComm)
	assert.ErrorContains(t, res.err, "stream reset")
	assert.Equal(t, 0, r.Depth())
}

func TestWorkerContextCancellation(t *testing.T) {
	r := session.NewRouter()
	defer r.Close()

	oracle := newStubOracle()
	w := session.NewWorker(oracle, r)

	ctx, cancel := context.WithCancelCause(context.Background())
	done := make(chan runResult, 1)
	go func() {
		msg, err := w.Run(ctx, domain.DecisionRequest{Prompt: "p"}, nil)
		done <- runResult{message: msg, err: err}
	}()

	cause := errors.New("operator abort")
	cancel(cause)

	res := waitResult(t, done)
	assert.ErrorIs(t, res.err, cause)
	assert.Equal(t, 0, r.Depth())
}

func TestWorkerResolvesBufferedInvokesOnFailure(t *testing.T) {
	r := session.NewRouter()
	defer r.Close()

	oracle := newStubOracle()
	w := session.NewWorker(oracle, r)

	req := domain.DecisionRequest{Prompt: "choose", Children: []domain.Node{domain.Output("a")}}
	gate := make(chan struct{})
	eval := func(ctx context.Context, optionIndex int) (string, error) {
		<-gate
		return "a", nil
	}
	done := startWorker(t, w, req, eval)
	waitDepth(t, r, 1)

	// The first invoke parks the worker inside eval; everything after it
	// piles up in the inbound buffer, the failure event first.
	first := make(chan domain.InvokeResult, 1)
	r.Deliver(domain.Invoke{OptionIndex: 0, Reply: first})
	r.Deliver(domain.SessionError{Err: errors.New("stream reset")})

	buffered := make([]chan domain.InvokeResult, 3)
	for i := range buffered {
		buffered[i] = make(chan domain.InvokeResult, 1)
		r.Deliver(domain.Invoke{OptionIndex: 0, Reply: buffered[i]})
	}
	close(gate)

	res := waitResult(t, done)
	assert.ErrorIs(t, res.err, domain.ErrSessionComm)

	in := <-first
	require.NoError(t, in.Err)
	assert.Equal(t, "a", in.Text)

	for i, reply := range buffered {
		select {
		case res := <-reply:
			assert.ErrorIs(t, res.Err, domain.ErrSessionComm, "invoke %d", i)
		case <-time.After(time.Second):
			t.Fatalf("invoke %d: reply slot was never resolved", i)
		}
	}
	assert.Equal(t, 0, r.Depth())
}

func TestWorkerResolvesBufferedInvokesOnCancellation(t *testing.T) {
	r := session.NewRouter()
	defer r.Close()

	oracle := newStubOracle()
	w := session.NewWorker(oracle, r)

	req := domain.DecisionRequest{Prompt: "choose", Children: []domain.Node{domain.Output("a")}}
	eval := func(ctx context.Context, optionIndex int) (string, error) {
		<-ctx.Done()
		return "", context.Cause(ctx)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	done := make(chan runResult, 1)
	go func() {
		msg, err := w.Run(ctx, req, eval)
		done <- runResult{message: msg, err: err}
	}()
	waitDepth(t, r, 1)

	replies := make([]chan domain.InvokeResult, 4)
	for i := range replies {
		replies[i] = make(chan domain.InvokeResult, 1)
		r.Deliver(domain.Invoke{OptionIndex: 0, Reply: replies[i]})
	}

	cause := errors.New("operator abort")
	cancel(cause)

	res := waitResult(t, done)
	assert.ErrorIs(t, res.err, cause)

	// Every delivered invoke must resolve, whether it was serviced before
	// the worker noticed the cancellation or drained afterwards.
	for i, reply := range replies {
		select {
		case res := <-reply:
			assert.ErrorIs(t, res.Err, cause, "invoke %d", i)
		case <-time.After(time.Second):
			t.Fatalf("invoke %d: reply slot was never resolved", i)
		}
	}
	assert.Equal(t, 0, r.Depth())
}

func TestWorkerLifecycleHooks(t *testing.T) {
	r := session.NewRouter()
	defer r.Close()

	var starts, ends, invokes int
	hooks := domain.LifecycleHooks{
		OnDecisionStart: func(ctx context.Context, ev *domain.DecisionEvent) { starts++ },
		OnDecisionEnd: func(ctx context.Context, ev *domain.DecisionEvent) {
			ends++
			assert.Equal(t, "final", ev.Message)
		},
		OnInvoke: func(ctx context.Context, ev *domain.InvokeEvent) {
			invokes++
			assert.False(t, ev.IsError)
		},
	}
	w := session.NewWorker(newStubOracle(), r, session.WithWorkerHooks(hooks))

	req := domain.DecisionRequest{Prompt: "p", Children: []domain.Node{domain.Output("a")}}
	eval := func(ctx context.Context, optionIndex int) (string, error) { return "a", nil }
	done := startWorker(t, w, req, eval)
	waitDepth(t, r, 1)

	reply := make(chan domain.InvokeResult, 1)
	r.Deliver(domain.Invoke{OptionIndex: 0, Reply: reply})
	<-reply
	r.Deliver(domain.TurnComplete{Message: "final"})

	res := waitResult(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, ends)
	assert.Equal(t, 1, invokes)
}
