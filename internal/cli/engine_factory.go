package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	"github.com/arborlabs/arbor"
	"github.com/arborlabs/arbor/pkg/adapters/memory"
	redisstore "github.com/arborlabs/arbor/pkg/adapters/redis"
	"github.com/arborlabs/arbor/pkg/persistence/middleware"
	"github.com/arborlabs/arbor/pkg/ports"
)

// createEngine initializes an Arbor engine with standard CLI conventions.
func createEngine(opts RunOptions, oracle ports.Oracle, logger *slog.Logger, out io.Writer) (*arbor.Engine, error) {
	engineOpts := []arbor.Option{
		arbor.WithLogger(logger),
		arbor.WithOutputWriter(out),
	}

	if opts.Debug {
		engineOpts = append(engineOpts, arbor.WithLifecycleHooks(createDebugHooks(logger)))
	}
	if opts.MaxDepth > 0 {
		engineOpts = append(engineOpts, arbor.WithMaxDepth(opts.MaxDepth))
	}

	store, err := createStore(opts)
	if err != nil {
		return nil, err
	}
	if store != nil {
		engineOpts = append(engineOpts, arbor.WithTranscriptStore(store))
	}

	engine, err := arbor.New(oracle, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}

	return engine, nil
}

// createStore builds the transcript store with any configured middleware.
// Returns nil when transcripts are disabled.
func createStore(opts RunOptions) (ports.TranscriptStore, error) {
	var store ports.TranscriptStore
	switch {
	case opts.RedisAddr != "":
		store = redisstore.New(opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	case opts.Transcripts:
		store = memory.NewTranscriptStore()
	default:
		return nil, nil
	}

	var chain []middleware.Middleware
	if len(opts.MaskPatterns) > 0 {
		chain = append(chain, middleware.NewPIIMiddleware(opts.MaskPatterns))
	}
	if opts.EncryptKey != "" {
		config, err := parseEncryptionConfig(opts.EncryptKey, opts.FallbackKeys)
		if err != nil {
			return nil, err
		}
		chain = append(chain, middleware.NewEncryptionMiddleware(config))
	}

	return middleware.Chain(store, chain...), nil
}

// parseEncryptionConfig decodes hex-encoded AES-256 keys.
func parseEncryptionConfig(activeHex string, fallbackHexes []string) (middleware.EncryptionConfig, error) {
	active, err := decodeKey(activeHex)
	if err != nil {
		return middleware.EncryptionConfig{}, fmt.Errorf("invalid encryption key: %w", err)
	}

	config := middleware.EncryptionConfig{ActiveKey: active}
	for i, h := range fallbackHexes {
		key, err := decodeKey(h)
		if err != nil {
			return middleware.EncryptionConfig{}, fmt.Errorf("invalid fallback key %d: %w", i, err)
		}
		config.FallbackKeys = append(config.FallbackKeys, key)
	}
	return config, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("expected 32 bytes (64 hex chars), got %d bytes", len(key))
	}
	return key, nil
}
