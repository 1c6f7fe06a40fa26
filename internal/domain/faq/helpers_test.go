package faq

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/faq-search/pkg/metrics"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withSimilarity returns a unit vector in 3 dimensions whose dot product with
// (1, 0, 0) is s. axis selects which orthogonal component absorbs the remainder.
func withSimilarity(s float64, axis int) []float64 {
	v := []float64{s, 0, 0}
	v[axis] = math.Sqrt(1 - s*s)
	return v
}

func q(id, answer, lang, text string) QuestionRecord {
	return QuestionRecord{QuestionID: ID(id), AnswerID: ID(answer), Language: lang, QuestionText: text}
}

func a(id, text string) AnswerRecord {
	return AnswerRecord{AnswerID: ID(id), AnswerText: text}
}

// scenarioDataset holds a1 in english and french (0.95 / 0.94 to the x axis), an
// unrelated a2 (0.40) and a3 (0.10).
func scenarioDataset() Dataset {
	return Dataset{
		Source: "test",
		Questions: []QuestionRecord{
			q("q1", "a1", "en", "How do I reset my password?"),
			q("q2", "a1", "fr", "Comment réinitialiser mon mot de passe ?"),
			q("q3", "a2", "en", "Where is the office?"),
			q("q4", "a3", "en", "What are the opening hours?"),
		},
		Answers: []AnswerRecord{
			a("a1", "Use the forgot password link."),
			a("a2", "Main street 1."),
			a("a3", "Nine to five."),
		},
		Embeddings: [][]float64{
			withSimilarity(0.95, 1),
			withSimilarity(0.94, 2),
			withSimilarity(0.40, 1),
			withSimilarity(0.10, 2),
		},
	}
}

func mustCatalog(t *testing.T, ds Dataset) *Catalog {
	t.Helper()
	catalog, err := NewCatalog(ds)
	require.NoError(t, err)
	return catalog
}

type stubProvider struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
	usage    metrics.TokenUsage
	embedFn  func(ctx context.Context, text string) ([]float32, metrics.TokenUsage, error)
	calls    int
}

func (s *stubProvider) Embed(ctx context.Context, text string) ([]float32, metrics.TokenUsage, error) {
	s.calls++
	if s.embedFn != nil {
		return s.embedFn(ctx, text)
	}
	if s.err != nil {
		return nil, metrics.TokenUsage{}, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return append([]float32(nil), v...), s.usage, nil
	}
	return append([]float32(nil), s.fallback...), s.usage, nil
}

type stubCounter struct {
	tokens int
}

func (s stubCounter) Count(string) int { return s.tokens }
