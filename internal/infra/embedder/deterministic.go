package embedder

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/yanqian/faq-search/internal/domain/faq"
	"github.com/yanqian/faq-search/pkg/metrics"
)

const defaultDeterministicDimension = 64

// DeterministicEmbedder avoids network calls by hashing words into a fixed-size vector.
// Texts sharing words land close to each other, which is enough for local runs and tests.
type DeterministicEmbedder struct {
	dim int
}

// NewDeterministicEmbedder constructs the embedder.
func NewDeterministicEmbedder(dim int) *DeterministicEmbedder {
	if dim <= 0 {
		dim = defaultDeterministicDimension
	}
	return &DeterministicEmbedder{dim: dim}
}

// Embed hashes every lower-cased word into one bucket with a hash-derived sign.
func (e *DeterministicEmbedder) Embed(_ context.Context, text string) ([]float32, metrics.TokenUsage, error) {
	vector := make([]float32, e.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, word := range words {
		hash := fnv.New64a()
		_, _ = hash.Write([]byte(word))
		seed := hash.Sum64()
		bucket := int(seed % uint64(e.dim))
		if (seed>>32)&1 == 1 {
			vector[bucket]--
		} else {
			vector[bucket]++
		}
	}
	usage := metrics.TokenUsage{PromptTokens: len(words), TotalTokens: len(words)}
	return vector, usage, nil
}

// EmbedBatch embeds texts one by one.
func (e *DeterministicEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, metrics.TokenUsage, error) {
	out := make([][]float32, len(texts))
	var total metrics.TokenUsage
	for i, text := range texts {
		vec, usage, err := e.Embed(ctx, text)
		if err != nil {
			return nil, metrics.TokenUsage{}, err
		}
		out[i] = vec
		total = total.Add(usage)
	}
	return out, total, nil
}

var _ faq.EmbeddingProvider = (*DeterministicEmbedder)(nil)
