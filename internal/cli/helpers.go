package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/arborlabs/arbor/internal/logging"
	"github.com/arborlabs/arbor/pkg/domain"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
				// Context cancelled elsewhere
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// createLogger configures the application logger.
// In debug mode, it writes to Stderr (to separate from Stdout flow UI).
func createLogger(debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.NewNop()
}

// printSystemMessage prints a standardized system message to stdout.
func printSystemMessage(format string, args ...any) {
	fmt.Printf(">>> %s\n", fmt.Sprintf(format, args...))
}

func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnOutput: func(ctx context.Context, e *domain.OutputEvent) {
			logger.Debug("Output", "message", e.Message)
		},
		OnDecisionStart: func(ctx context.Context, e *domain.DecisionEvent) {
			logger.Debug("Decision Start", "session_id", e.SessionID, "prompt", e.Prompt, "options", e.Options)
		},
		OnDecisionEnd: func(ctx context.Context, e *domain.DecisionEvent) {
			if e.Err != nil {
				logger.Debug("Decision End (Error)", "session_id", e.SessionID, "err", e.Err)
			} else {
				logger.Debug("Decision End", "session_id", e.SessionID, "message", e.Message)
			}
		},
		OnInvoke: func(ctx context.Context, e *domain.InvokeEvent) {
			logger.Debug("Invoke", "session_id", e.SessionID, "option_index", e.OptionIndex, "is_error", e.IsError)
		},
	}
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}

// handleExecutionError maps user interruptions to a clean exit.
func handleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil
	}
	return err
}

func logCompletion(err error, quiet bool, sig os.Signal) {
	if quiet {
		return
	}
	if err == nil {
		printSystemMessage("Evaluation finished.")
		return
	}
	if isInterrupted(err) {
		if sig == os.Interrupt {
			fmt.Printf("[CTRL+C]\n")
		}
		printSystemMessage("Evaluation interrupted.")
	}
}
