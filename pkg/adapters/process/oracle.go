// Package process runs the judge as a local subprocess speaking
// newline-delimited JSON over stdio. Outbound messages (session prompts, tool
// results) go to the child's stdin; inbound messages (notifications, "do"
// requests, completions) arrive on its stdout and surface as session events.
package process

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/arborlabs/arbor/internal/logging"
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/ports"
	"github.com/google/uuid"
)

// message is one line of the stdio protocol, in either direction.
type message struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	Options     int    `json:"options,omitempty"`
	Text        string `json:"text,omitempty"`
	Message     string `json:"message,omitempty"`
	OptionIndex int    `json:"option_index,omitempty"`
	CallID      string `json:"call_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

const (
	msgOpen     = "open"
	msgPrompt   = "prompt"
	msgNotify   = "notify"
	msgDo       = "do"
	msgResult   = "result"
	msgComplete = "complete"
	msgFail     = "fail"
)

// Oracle drives an external judge subprocess. One subprocess serves all
// sessions of one Oracle; sessions are multiplexed by ID on the wire even
// though the engine keeps them strictly nested.
type Oracle struct {
	cfg    Config
	logger *slog.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	events chan domain.SessionEvent

	mu      sync.Mutex
	do      ports.DoFunc
	started bool

	closeOnce sync.Once
}

var _ ports.Oracle = (*Oracle)(nil)
var _ ports.ToolBinder = (*Oracle)(nil)

// Option configures the Oracle.
type Option func(*Oracle)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Oracle) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOracle creates a subprocess oracle for the given judge configuration.
// The process is launched on Start, not here.
func NewOracle(cfg Config, opts ...Option) *Oracle {
	o := &Oracle{
		cfg:    cfg,
		logger: logging.NewNop(),
		events: make(chan domain.SessionEvent, 16),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// BindTool wires in the tool-bridge callback serviced on "do" requests.
func (o *Oracle) BindTool(do ports.DoFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.do = do
}

// Start launches the judge process and begins reading its stdout. The event
// stream closes when the process's stdout does.
func (o *Oracle) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return fmt.Errorf("judge process already started")
	}

	cmd := exec.CommandContext(ctx, o.cfg.Command, o.cfg.Args...)
	cmd.Dir = o.cfg.Dir
	env := cmd.Environ()
	for k, v := range o.cfg.Environment {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("judge stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("judge stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start judge %q: %w", o.cfg.Command, err)
	}

	o.cmd = cmd
	o.stdin = stdin
	o.started = true
	o.logger.Info("judge process started", "command", o.cfg.Command, "pid", cmd.Process.Pid)

	go o.readLoop(ctx, stdout)
	return nil
}

// OpenSession announces a new session to the judge and returns its ID.
func (o *Oracle) OpenSession(ctx context.Context) (string, error) {
	o.mu.Lock()
	started := o.started
	o.mu.Unlock()
	if !started {
		return "", fmt.Errorf("judge process not started")
	}

	sessionID := uuid.NewString()
	if err := o.send(message{Type: msgOpen, SessionID: sessionID}); err != nil {
		return "", err
	}
	return sessionID, nil
}

// SendPrompt forwards the decision prompt to the judge.
func (o *Oracle) SendPrompt(ctx context.Context, sessionID, prompt string) error {
	return o.send(message{Type: msgPrompt, SessionID: sessionID, Prompt: prompt})
}

// Events returns the inbound session event stream.
func (o *Oracle) Events() <-chan domain.SessionEvent {
	return o.events
}

// Close shuts the judge's stdin down and waits for the process to exit. The
// read loop closes the event stream when stdout drains.
func (o *Oracle) Close() error {
	var err error
	o.closeOnce.Do(func() {
		o.mu.Lock()
		stdin, cmd := o.stdin, o.cmd
		o.mu.Unlock()
		if stdin != nil {
			stdin.Close()
		}
		if cmd != nil {
			err = cmd.Wait()
		}
	})
	return err
}

func (o *Oracle) send(msg message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode judge message: %w", err)
	}
	data = append(data, '\n')

	// One writer lock for the whole line keeps frames intact under
	// concurrent senders.
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stdin == nil {
		return fmt.Errorf("judge process not started")
	}
	if _, err := o.stdin.Write(data); err != nil {
		return fmt.Errorf("write to judge: %w", err)
	}
	return nil
}

// readLoop parses the judge's stdout line by line and converts each message
// into a session event. "do" requests are serviced on their own goroutine so
// a slow sub-evaluation never stalls the stream.
func (o *Oracle) readLoop(ctx context.Context, stdout io.Reader) {
	defer close(o.events)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg message
		if err := json.Unmarshal(line, &msg); err != nil {
			o.logger.Warn("judge emitted malformed line", "err", err)
			o.events <- domain.SessionError{Err: fmt.Errorf("malformed judge message: %w", err)}
			continue
		}

		switch msg.Type {
		case msgNotify:
			o.events <- domain.Notification{Text: msg.Text}

		case msgDo:
			go o.serviceDo(ctx, msg)

		case msgComplete:
			o.events <- domain.TurnComplete{Message: msg.Message}

		case msgFail:
			o.events <- domain.SessionError{Err: fmt.Errorf("judge failure: %s", msg.Error)}

		default:
			o.logger.Warn("judge emitted unknown message type", "type", msg.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		o.logger.Warn("judge stdout read failed", "err", err)
	}
}

// serviceDo runs the requested sub-evaluation through the tool bridge and
// writes the result line back to the judge.
func (o *Oracle) serviceDo(ctx context.Context, msg message) {
	o.mu.Lock()
	do := o.do
	o.mu.Unlock()

	reply := message{Type: msgResult, SessionID: msg.SessionID, CallID: msg.CallID}
	if do == nil {
		reply.Error = "no tool bridge bound"
	} else if text, err := do(ctx, msg.OptionIndex); err != nil {
		reply.Error = err.Error()
	} else {
		reply.Text = text
	}

	if err := o.send(reply); err != nil {
		o.logger.Warn("failed to send do result to judge", "call_id", msg.CallID, "err", err)
	}
}
