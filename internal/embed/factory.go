package embed

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ProviderType represents an embedding provider.
type ProviderType string

const (
	// ProviderOllama uses the Ollama API for embeddings (default).
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (offline fallback).
	ProviderStatic ProviderType = "static"
)

// Options configures embedder construction.
type Options struct {
	Provider   ProviderType
	Model      string
	Host       string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
	CacheSize  int
}

// NewEmbedder creates an embedder based on provider type with automatic
// fallback. The CARA_EMBEDDER environment variable overrides the
// provider ("ollama" or "static"). An explicitly requested Ollama
// provider fails hard when the server is unreachable; auto-detection
// falls back to the static embedder with a warning.
func NewEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	provider := opts.Provider
	explicit := false

	if env := strings.ToLower(os.Getenv("CARA_EMBEDDER")); env != "" {
		provider = ProviderType(env)
		explicit = true
	}

	var embedder Embedder
	var err error

	switch provider {
	case ProviderStatic:
		embedder = NewStaticEmbedder()

	case ProviderOllama:
		embedder, err = newOllamaWithFallback(ctx, opts, explicit)

	default:
		// Unrecognized provider: auto-detect.
		embedder, err = newOllamaWithFallback(ctx, opts, false)
	}
	if err != nil {
		return nil, err
	}

	return NewCachedEmbedder(embedder, opts.CacheSize), nil
}

// newOllamaWithFallback tries Ollama and, unless the provider was
// explicitly selected, falls back to the static embedder.
func newOllamaWithFallback(ctx context.Context, opts Options, explicit bool) (Embedder, error) {
	cfg := DefaultOllamaConfig()
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	if opts.Dimensions > 0 {
		cfg.Dimensions = opts.Dimensions
	}
	if opts.BatchSize > 0 {
		cfg.BatchSize = opts.BatchSize
	}
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}

	embedder, err := NewOllamaEmbedder(ctx, cfg)
	if err == nil {
		return embedder, nil
	}
	if explicit {
		return nil, err
	}

	slog.Warn("ollama_unavailable_falling_back_to_static",
		slog.String("host", cfg.Host),
		slog.String("error", err.Error()))
	return NewStaticEmbedder(), nil
}
