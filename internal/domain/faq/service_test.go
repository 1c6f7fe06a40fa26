package faq

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/faq-search/pkg/errors"
	"github.com/yanqian/faq-search/pkg/metrics"
)

func newServiceUnderTest(t *testing.T, provider EmbeddingProvider) Service {
	t.Helper()
	cfg := Config{
		EmbeddingModel:   "test-model",
		EmbeddingTimeout: time.Second,
		TopK:             3,
		MaxTopK:          5,
		Calibration:      DefaultCalibration(),
	}
	catalog := mustCatalog(t, scenarioDataset())
	embedder := NewQueryEmbedder(cfg, provider, nil, newTestLogger())
	return NewService(cfg, catalog, embedder, NewBruteForceRanker(catalog), newTestLogger())
}

func TestSearchReturnsDistinctAnswers(t *testing.T) {
	provider := &stubProvider{fallback: []float32{2, 0, 0}, usage: metrics.TokenUsage{PromptTokens: 4, TotalTokens: 4}}
	svc := newServiceUnderTest(t, provider)

	resp, err := svc.Search(context.Background(), Request{Query: "  how to reset password  ", TopK: 2})
	require.NoError(t, err)
	require.Equal(t, "how to reset password", resp.Query)
	require.Len(t, resp.Results, 2)

	require.Equal(t, ID("q1"), resp.Results[0].ID)
	require.Equal(t, "How do I reset my password?", resp.Results[0].QuestionText)
	require.Equal(t, "Use the forgot password link.", resp.Results[0].AnswerText)
	require.InDelta(t, 0.95, resp.Results[0].Similarity, 1e-6)

	require.Equal(t, ID("q3"), resp.Results[1].ID)
	require.InDelta(t, 0.40, resp.Results[1].Similarity, 1e-6)

	require.InDelta(t, 0.93, resp.Confidence, 1e-9)
	require.False(t, resp.BelowThreshold)
	require.Empty(t, resp.Error)
	require.NotNil(t, resp.TokenUsage)
	require.Equal(t, 4, resp.TokenUsage.TotalTokens)
}

func TestSearchIsDeterministic(t *testing.T) {
	svc := newServiceUnderTest(t, &stubProvider{fallback: []float32{0.3, 0.5, 0.2}})

	first, err := svc.Search(context.Background(), Request{Query: "opening hours"})
	require.NoError(t, err)
	second, err := svc.Search(context.Background(), Request{Query: "opening hours"})
	require.NoError(t, err)

	first.DurationMs, second.DurationMs = 0, 0
	require.Equal(t, first, second)
}

func TestSearchEmptyQueryDegrades(t *testing.T) {
	provider := &stubProvider{fallback: []float32{1, 0, 0}}
	svc := newServiceUnderTest(t, provider)

	resp, err := svc.Search(context.Background(), Request{Query: "   "})
	require.True(t, apperrors.IsCode(err, CodeInvalidInput))
	require.Empty(t, resp.Results)
	require.NotNil(t, resp.Results)
	require.Zero(t, resp.Confidence)
	require.True(t, resp.BelowThreshold)
	require.NotEmpty(t, resp.Error)
	require.Zero(t, provider.calls)
}

func TestSearchProviderFailureDegrades(t *testing.T) {
	svc := newServiceUnderTest(t, &stubProvider{err: errors.New("connection refused")})

	resp, err := svc.Search(context.Background(), Request{Query: "hello"})
	require.True(t, apperrors.IsCode(err, CodeProviderError))
	require.Empty(t, resp.Results)
	require.True(t, resp.BelowThreshold)
	require.Contains(t, resp.Error, "connection refused")
}

func TestSearchNonFiniteEmbeddingDegrades(t *testing.T) {
	svc := newServiceUnderTest(t, &stubProvider{fallback: []float32{float32(math.NaN()), 0, 0}})

	resp, err := svc.Search(context.Background(), Request{Query: "reset password", TopK: 2})
	require.True(t, apperrors.IsCode(err, CodeProviderError))
	require.Empty(t, resp.Results)
	require.Zero(t, resp.Confidence)
	require.True(t, resp.BelowThreshold)

	_, err = json.Marshal(resp)
	require.NoError(t, err)
}

func TestSearchDimensionMismatch(t *testing.T) {
	svc := newServiceUnderTest(t, &stubProvider{fallback: []float32{1, 0}})

	resp, err := svc.Search(context.Background(), Request{Query: "hello"})
	require.True(t, apperrors.IsCode(err, CodeDimensionMismatch))
	require.Empty(t, resp.Results)
	require.True(t, resp.BelowThreshold)
}

func TestSearchTopKDefaultsAndClamp(t *testing.T) {
	ds := scenarioDataset()
	for i := 0; i < 10; i++ {
		id := string(rune('k' + i))
		ds.Questions = append(ds.Questions, q("q"+id, "a"+id, "en", "extra "+id))
		ds.Answers = append(ds.Answers, a("a"+id, "answer "+id))
		ds.Embeddings = append(ds.Embeddings, withSimilarity(0.2, 1))
	}
	catalog := mustCatalog(t, ds)
	cfg := Config{TopK: 3, MaxTopK: 5, Calibration: DefaultCalibration()}
	embedder := NewQueryEmbedder(cfg, &stubProvider{fallback: []float32{1, 0, 0}}, nil, newTestLogger())
	svc := NewService(cfg, catalog, embedder, NewBruteForceRanker(catalog), newTestLogger())

	resp, err := svc.Search(context.Background(), Request{Query: "x"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	resp, err = svc.Search(context.Background(), Request{Query: "x", TopK: 50})
	require.NoError(t, err)
	require.Len(t, resp.Results, 5)

	resp, err = svc.Search(context.Background(), Request{Query: "x", TopK: 1})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
}

func TestSearchCatalogStats(t *testing.T) {
	svc := newServiceUnderTest(t, &stubProvider{fallback: []float32{1, 0, 0}})
	stats := svc.Catalog()
	require.Equal(t, 4, stats.Rows)
	require.Equal(t, 3, stats.Dimension)
}
