package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yanqian/faq-search/internal/domain/faq"
	"github.com/yanqian/faq-search/pkg/metrics"
)

// OpenAIConfig configures the OpenAI-compatible embeddings client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions asks text-embedding-3 models for shortened vectors. Zero keeps the model default.
	Dimensions int
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	logger     *slog.Logger
}

// NewOpenAIEmbedder constructs an embedder backed by go-openai.
func NewOpenAIEmbedder(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIEmbedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is not configured")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("embedding model is not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		clientCfg.BaseURL = base
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      strings.TrimSpace(cfg.Model),
		dimensions: cfg.Dimensions,
		logger:     logger.With("component", "embedder.openai"),
	}, nil
}

// Embed requests the embedding of a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, metrics.TokenUsage, error) {
	vectors, usage, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, metrics.TokenUsage{}, err
	}
	return vectors[0], usage, nil
}

// EmbedBatch requests embeddings for texts in one call, preserving input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, metrics.TokenUsage, error) {
	if len(texts) == 0 {
		return nil, metrics.TokenUsage{}, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      texts,
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, metrics.TokenUsage{}, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		e.logger.Warn("embedding result count mismatch", "expected", len(texts), "got", len(resp.Data))
		return nil, metrics.TokenUsage{}, fmt.Errorf("embedding result count mismatch: expected %d, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, metrics.TokenUsage{}, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		out[item.Index] = vec
	}
	usage := metrics.TokenUsage{PromptTokens: resp.Usage.PromptTokens, TotalTokens: resp.Usage.TotalTokens}
	return out, usage, nil
}

var _ faq.EmbeddingProvider = (*OpenAIEmbedder)(nil)
