package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/arborlabs/arbor/internal/presentation/tui"
	"github.com/arborlabs/arbor/internal/validator"
	"github.com/arborlabs/arbor/pkg/adapters/console"
	"github.com/arborlabs/arbor/pkg/adapters/memory"
	"github.com/arborlabs/arbor/pkg/adapters/process"
	"github.com/arborlabs/arbor/pkg/ports"
	"github.com/arborlabs/arbor/pkg/registry"
	"github.com/arborlabs/arbor/pkg/schema"
)

// RunOptions contains all the configuration for the Run command.
type RunOptions struct {
	TreePath string

	// Oracle selects the judge transport: console, scripted or judge.
	Oracle     string
	ScriptPath string
	JudgePath  string

	// Transcript persistence.
	Transcripts   bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EncryptKey    string
	FallbackKeys  []string
	MaskPatterns  []string

	MaxDepth int
	Debug    bool
	Quiet    bool
}

// Execute handles the 'run' command logic: load the tree, open the selected
// oracle, evaluate, and report completion.
func Execute(opts RunOptions) error {
	logger := createLogger(opts.Debug)

	doc, err := schema.Load(opts.TreePath)
	if err != nil {
		return fmt.Errorf("error loading tree: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid tree %q: %w", opts.TreePath, err)
	}
	if !opts.Quiet {
		for _, finding := range validator.Lint(doc.Tree) {
			fmt.Fprintf(os.Stderr, "lint: %s\n", finding)
		}
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	oracle, err := newOracleRegistry(opts, logger).Open(sigCtx, opts.Oracle)
	if err != nil {
		return err
	}
	defer closeOracle(oracle)

	if !opts.Quiet && opts.Oracle == "console" {
		tui.PrintBanner()
	}

	engine, err := createEngine(opts, oracle, logger, os.Stdout)
	if err != nil {
		return err
	}
	defer engine.Close()

	_, runErr := engine.Evaluate(sigCtx, doc.Tree)
	if sigCtx.Err() != nil && runErr == nil {
		runErr = sigCtx.Err()
	}

	logCompletion(runErr, opts.Quiet, sigCtx.Signal())
	return handleExecutionError(runErr)
}

// newOracleRegistry wires the oracle transports selectable from the CLI.
func newOracleRegistry(opts RunOptions, logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry()

	reg.Register("console", func(ctx context.Context) (ports.Oracle, error) {
		return console.NewOracle(
			console.WithLogger(logger),
			console.WithRenderer(tui.NewRenderer()),
		), nil
	})

	reg.Register("scripted", func(ctx context.Context) (ports.Oracle, error) {
		if opts.ScriptPath == "" {
			return nil, fmt.Errorf("the scripted oracle requires --script")
		}
		scripts, err := memory.LoadScripts(opts.ScriptPath)
		if err != nil {
			return nil, err
		}
		return memory.NewOracle(scripts...), nil
	})

	reg.Register("judge", func(ctx context.Context) (ports.Oracle, error) {
		if opts.JudgePath == "" {
			return nil, fmt.Errorf("the judge oracle requires --judge")
		}
		cfg, err := process.LoadConfig(opts.JudgePath)
		if err != nil {
			return nil, err
		}
		oracle := process.NewOracle(cfg, process.WithLogger(logger))
		if err := oracle.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start judge process: %w", err)
		}
		return oracle, nil
	})

	return reg
}

func closeOracle(oracle ports.Oracle) {
	switch o := oracle.(type) {
	case *console.Oracle:
		o.Close()
	case *memory.Oracle:
		o.Close()
	case *process.Oracle:
		_ = o.Close()
	}
}
