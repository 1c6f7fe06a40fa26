package faq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	apperrors "github.com/yanqian/faq-search/pkg/errors"
	"github.com/yanqian/faq-search/pkg/metrics"
)

const defaultEmbeddingTimeout = 10 * time.Second

// EmbeddingProvider maps text to a dense vector. Implementations are network backed.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, metrics.TokenUsage, error)
}

// TokenCounter estimates how many model tokens text occupies.
type TokenCounter interface {
	Count(text string) int
}

// Embedding is a unit-length query vector plus provider usage.
type Embedding struct {
	Vector []float64
	Usage  metrics.TokenUsage
}

// QueryEmbedder validates query text, calls the provider under a timeout and
// normalizes the result.
type QueryEmbedder struct {
	provider  EmbeddingProvider
	counter   TokenCounter
	timeout   time.Duration
	maxTokens int
	logger    *slog.Logger
}

// NewQueryEmbedder wraps provider. counter may be nil to skip the token budget check.
func NewQueryEmbedder(cfg Config, provider EmbeddingProvider, counter TokenCounter, logger *slog.Logger) *QueryEmbedder {
	timeout := cfg.EmbeddingTimeout
	if timeout <= 0 {
		timeout = defaultEmbeddingTimeout
	}
	return &QueryEmbedder{
		provider:  provider,
		counter:   counter,
		timeout:   timeout,
		maxTokens: cfg.MaxInputTokens,
		logger:    logger.With("component", "faq.embedder"),
	}
}

// Validate rejects text that must never reach the provider.
func (e *QueryEmbedder) Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return apperrors.Wrap(CodeInvalidInput, "query cannot be empty", nil)
	}
	if e.counter != nil && e.maxTokens > 0 {
		if tokens := e.counter.Count(text); tokens > e.maxTokens {
			return apperrors.Wrap(CodeInvalidInput, fmt.Sprintf("query is too long: %d tokens exceeds limit of %d", tokens, e.maxTokens), nil)
		}
	}
	return nil
}

// Embed returns the unit-length embedding of text.
func (e *QueryEmbedder) Embed(ctx context.Context, text string) (Embedding, error) {
	if err := e.Validate(text); err != nil {
		return Embedding{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	raw, usage, err := e.provider.Embed(callCtx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return Embedding{}, apperrors.Wrap(CodeProviderError, fmt.Sprintf("embedding provider timed out after %s", e.timeout), err)
		}
		return Embedding{}, apperrors.Wrap(CodeProviderError, "embedding provider failed", err)
	}
	if len(raw) == 0 {
		return Embedding{}, apperrors.Wrap(CodeProviderError, "embedding provider returned an empty vector", nil)
	}
	e.logger.Debug("query embedded", "dimension", len(raw), "latency_ms", time.Since(start).Milliseconds())

	vector := make([]float64, len(raw))
	for i, v := range raw {
		vector[i] = float64(v)
		if math.IsNaN(vector[i]) || math.IsInf(vector[i], 0) {
			return Embedding{}, apperrors.Wrap(CodeProviderError, "embedding provider returned a non-finite vector", nil)
		}
	}
	normalize(vector)
	return Embedding{Vector: vector, Usage: usage}, nil
}
