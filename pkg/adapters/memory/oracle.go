package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/ports"
	"github.com/google/uuid"
)

// StepKind identifies one scripted oracle action.
type StepKind string

const (
	StepNotify   StepKind = "notify"
	StepInvoke   StepKind = "invoke"
	StepComplete StepKind = "complete"
	StepFail     StepKind = "fail"
)

// Step is one scripted action within a session turn.
type Step struct {
	Kind        StepKind `json:"kind" yaml:"kind" mapstructure:"kind"`
	Text        string   `json:"text,omitempty" yaml:"text,omitempty" mapstructure:"text"`
	OptionIndex int      `json:"option_index,omitempty" yaml:"option_index,omitempty" mapstructure:"option_index"`
}

// Notify scripts a free-form notification.
func Notify(text string) Step {
	return Step{Kind: StepNotify, Text: text}
}

// Invoke scripts a sub-evaluation request for the given option index.
func Invoke(optionIndex int) Step {
	return Step{Kind: StepInvoke, OptionIndex: optionIndex}
}

// Complete scripts the terminal turn completion with the given message.
func Complete(message string) Step {
	return Step{Kind: StepComplete, Text: message}
}

// Fail scripts a mid-session transport failure.
func Fail(reason string) Step {
	return Step{Kind: StepFail, Text: reason}
}

// SessionScript describes one oracle session's behavior. Scripts are consumed
// in session-open order, which under synchronous nesting means outer decision
// first, then its nested decisions in the order they are entered.
type SessionScript struct {
	// FailOpen makes OpenSession fail for this script slot.
	FailOpen bool `json:"fail_open,omitempty" yaml:"fail_open,omitempty" mapstructure:"fail_open"`

	Steps []Step `json:"steps" yaml:"steps" mapstructure:"steps"`
}

// InvokeOutcome records the bridge result of one scripted invoke, for
// assertions in tests and dry runs.
type InvokeOutcome struct {
	SessionID   string
	OptionIndex int
	Text        string
	Err         error
}

// Oracle is a deterministic, scripted stand-in for the external judge. It is
// used by tests and by headless CLI runs.
type Oracle struct {
	mu       sync.Mutex
	scripts  []SessionScript
	opened   int
	prompts  []string
	outcomes []InvokeOutcome

	events chan domain.SessionEvent
	do     ports.DoFunc

	done      chan struct{}
	playWG    sync.WaitGroup
	closeOnce sync.Once
}

var _ ports.Oracle = (*Oracle)(nil)
var _ ports.ToolBinder = (*Oracle)(nil)

// NewOracle creates a scripted oracle. The nth opened session plays the nth
// script.
func NewOracle(scripts ...SessionScript) *Oracle {
	return &Oracle{
		scripts: scripts,
		events:  make(chan domain.SessionEvent, 16),
		done:    make(chan struct{}),
	}
}

// BindTool wires in the tool-bridge callback used by invoke steps.
func (o *Oracle) BindTool(do ports.DoFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.do = do
}

// OpenSession consumes the next script slot and returns a fresh session ID.
func (o *Oracle) OpenSession(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.opened >= len(o.scripts) {
		return "", fmt.Errorf("no script for session %d", o.opened)
	}
	script := o.scripts[o.opened]
	o.opened++
	if script.FailOpen {
		return "", fmt.Errorf("scripted open failure for session %d", o.opened-1)
	}
	return uuid.NewString(), nil
}

// SendPrompt starts playing the session's script. Steps run asynchronously,
// in order; an invoke step blocks the script until its sub-evaluation result
// is back, exactly like a real oracle awaiting its tool call.
func (o *Oracle) SendPrompt(ctx context.Context, sessionID, prompt string) error {
	o.mu.Lock()
	o.prompts = append(o.prompts, prompt)
	script := o.scripts[o.opened-1]
	o.mu.Unlock()

	o.playWG.Add(1)
	go o.play(ctx, sessionID, script)
	return nil
}

func (o *Oracle) play(ctx context.Context, sessionID string, script SessionScript) {
	defer o.playWG.Done()
	for _, step := range script.Steps {
		switch step.Kind {
		case StepNotify:
			if !o.emit(domain.Notification{Text: step.Text}) {
				return
			}

		case StepInvoke:
			text, err := o.invoke(ctx, step.OptionIndex)
			o.mu.Lock()
			o.outcomes = append(o.outcomes, InvokeOutcome{
				SessionID:   sessionID,
				OptionIndex: step.OptionIndex,
				Text:        text,
				Err:         err,
			})
			o.mu.Unlock()

		case StepComplete:
			o.emit(domain.TurnComplete{Message: step.Text})
			return

		case StepFail:
			o.emit(domain.SessionError{Err: fmt.Errorf("scripted failure: %s", step.Text)})
			return
		}
	}
	// A script without a terminal step leaves the session hanging on purpose;
	// tests use this to exercise cancellation.
}

// emit sends on the event stream unless the oracle is shutting down. It
// reports whether the event went out.
func (o *Oracle) emit(ev domain.SessionEvent) bool {
	select {
	case o.events <- ev:
		return true
	case <-o.done:
		return false
	}
}

func (o *Oracle) invoke(ctx context.Context, optionIndex int) (string, error) {
	o.mu.Lock()
	do := o.do
	o.mu.Unlock()
	if do == nil {
		return "", fmt.Errorf("no tool bridge bound")
	}
	return do(ctx, optionIndex)
}

// Events returns the shared untagged inbound stream.
func (o *Oracle) Events() <-chan domain.SessionEvent {
	return o.events
}

// Close shuts the event stream down. In-flight script playback is unblocked
// and drained before the stream closes, so no step can send on a closed
// channel.
func (o *Oracle) Close() {
	o.closeOnce.Do(func() {
		close(o.done)
		o.playWG.Wait()
		close(o.events)
	})
}

// Prompts returns the prompts received so far, in order.
func (o *Oracle) Prompts() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.prompts))
	copy(out, o.prompts)
	return out
}

// Outcomes returns the recorded invoke outcomes, in order.
func (o *Oracle) Outcomes() []InvokeOutcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]InvokeOutcome, len(o.outcomes))
	copy(out, o.outcomes)
	return out
}

// SessionsOpened returns how many sessions were opened (or attempted).
func (o *Oracle) SessionsOpened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened
}
