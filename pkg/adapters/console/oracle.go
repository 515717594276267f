// Package console puts a human in the judge's seat. Each decision session
// prints its prompt to the terminal; the judge answers with short commands
// read line by line from the input stream.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/arborlabs/arbor/internal/logging"
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/ports"
	"github.com/google/uuid"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Renderer turns prompt markdown into terminal text.
type Renderer func(string) (string, error)

// Oracle is an interactive judge reading commands from a terminal:
//
//	do <n>       evaluate child branch n and print its output
//	note <text>  emit a progress note
//	done <text>  finish the session with a terminal message
//	fail <text>  abort the session
type Oracle struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
	render Renderer
	color  bool

	events chan domain.SessionEvent
	done   chan struct{}

	mu sync.Mutex
	do ports.DoFunc

	readOnce  sync.Once
	closeOnce sync.Once
}

var _ ports.Oracle = (*Oracle)(nil)
var _ ports.ToolBinder = (*Oracle)(nil)

// Option configures the Oracle.
type Option func(*Oracle)

// WithInput sets the command input stream. Defaults to stdin.
func WithInput(r io.Reader) Option {
	return func(o *Oracle) {
		if r != nil {
			o.in = r
		}
	}
}

// WithOutput sets the prompt output stream. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(o *Oracle) {
		if w != nil {
			o.out = w
		}
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Oracle) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRenderer sets a markdown renderer for prompts.
func WithRenderer(render Renderer) Option {
	return func(o *Oracle) {
		o.render = render
	}
}

// NewOracle creates an interactive console oracle.
func NewOracle(opts ...Option) *Oracle {
	o := &Oracle{
		in:     os.Stdin,
		out:    os.Stdout,
		logger: logging.NewNop(),
		events: make(chan domain.SessionEvent, 16),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	if f, ok := o.out.(*os.File); ok {
		o.color = term.IsTerminal(int(f.Fd()))
	}
	return o
}

// BindTool wires in the tool-bridge callback serviced by the do command.
func (o *Oracle) BindTool(do ports.DoFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.do = do
}

// OpenSession starts the command reader on first use and returns a fresh
// session ID.
func (o *Oracle) OpenSession(ctx context.Context) (string, error) {
	o.readOnce.Do(func() {
		// The reader outlives the session that started it.
		go o.readLoop(context.WithoutCancel(ctx))
	})
	return uuid.NewString(), nil
}

// SendPrompt presents the decision to the judge.
func (o *Oracle) SendPrompt(ctx context.Context, sessionID, prompt string) error {
	rendered := prompt
	if o.render != nil {
		if out, err := o.render(prompt); err == nil {
			rendered = strings.TrimRight(out, "\n")
		}
	}

	fmt.Fprintf(o.out, "\n%s\n%s\n%s\n", o.styled("── decision ──", "12"), rendered,
		o.styled("commands: do <n> | note <text> | done <text> | fail <text>", "8"))
	return nil
}

// Events returns the inbound session event stream.
func (o *Oracle) Events() <-chan domain.SessionEvent {
	return o.events
}

// Close stops command emission. The event stream itself is closed by the
// read loop when the input ends; it is the single sender.
func (o *Oracle) Close() {
	o.closeOnce.Do(func() {
		close(o.done)
	})
}

// emit sends on the event stream unless the oracle is shutting down.
func (o *Oracle) emit(ev domain.SessionEvent) {
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

// readLoop parses judge commands until the input stream ends. Commands always
// target the innermost active session; the routing layer guarantees that.
func (o *Oracle) readLoop(ctx context.Context) {
	defer close(o.events)

	scanner := bufio.NewScanner(o.in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		verb, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch verb {
		case "do":
			index, err := strconv.Atoi(rest)
			if err != nil {
				fmt.Fprintln(o.out, o.styled("usage: do <n>", "9"))
				continue
			}
			// The sub-evaluation suspends this session until its result is
			// back; nested prompts appear on this same terminal meanwhile.
			go o.serviceDo(ctx, index)

		case "note":
			o.emit(domain.Notification{Text: rest})

		case "done", "complete":
			o.emit(domain.TurnComplete{Message: rest})

		case "fail":
			o.emit(domain.SessionError{Err: fmt.Errorf("judge aborted: %s", rest)})

		case "help":
			fmt.Fprintln(o.out, o.styled("commands: do <n> | note <text> | done <text> | fail <text>", "8"))

		default:
			fmt.Fprintf(o.out, "%s\n", o.styled(fmt.Sprintf("unknown command %q (try help)", verb), "9"))
		}
	}
	if err := scanner.Err(); err != nil {
		o.logger.Warn("console input read failed", "err", err)
	}
}

func (o *Oracle) serviceDo(ctx context.Context, index int) {
	o.mu.Lock()
	do := o.do
	o.mu.Unlock()
	if do == nil {
		fmt.Fprintln(o.out, o.styled("no tool bridge bound", "9"))
		return
	}

	text, err := do(ctx, index)
	if err != nil {
		fmt.Fprintf(o.out, "%s %v\n", o.styled("do failed:", "9"), err)
		return
	}
	fmt.Fprintf(o.out, "%s\n%s\n", o.styled(fmt.Sprintf("── result of do %d ──", index), "10"), text)
}

func (o *Oracle) styled(s, color string) string {
	if !o.color {
		return s
	}
	p := termenv.ColorProfile()
	return termenv.String(s).Foreground(p.Color(color)).String()
}
