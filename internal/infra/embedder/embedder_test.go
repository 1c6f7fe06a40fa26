package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestDeterministicEmbedderIsStable(t *testing.T) {
	e := NewDeterministicEmbedder(32)
	first, usage, err := e.Embed(context.Background(), "How do I reset my password?")
	require.NoError(t, err)
	second, _, err := e.Embed(context.Background(), "how do i RESET my password")
	require.NoError(t, err)

	require.Len(t, first, 32)
	require.Equal(t, first, second)
	require.Equal(t, 6, usage.TotalTokens)
}

func TestDeterministicEmbedderRelatesSharedWords(t *testing.T) {
	e := NewDeterministicEmbedder(256)
	cosine := func(a, b string) float64 {
		va, _, err := e.Embed(context.Background(), a)
		require.NoError(t, err)
		vb, _, err := e.Embed(context.Background(), b)
		require.NoError(t, err)
		x, y := toFloat64(va), toFloat64(vb)
		return floats.Dot(x, y) / (floats.Norm(x, 2) * floats.Norm(y, 2))
	}

	related := cosine("reset my password", "how to reset password")
	unrelated := cosine("reset my password", "office opening hours")
	require.Greater(t, related, unrelated)
}

func TestDeterministicEmbedderBatch(t *testing.T) {
	e := NewDeterministicEmbedder(0)
	vectors, usage, err := e.EmbedBatch(context.Background(), []string{"one two", "three"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	require.Len(t, vectors[0], defaultDeterministicDimension)
	require.Equal(t, 3, usage.PromptTokens)
}

func TestOpenAIEmbedderBatch(t *testing.T) {
	var received struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0, 1]},
				{"object": "embedding", "index": 0, "embedding": [1, 0]}
			],
			"model": "text-embedding-3-small",
			"usage": {"prompt_tokens": 5, "total_tokens": 5}
		}`))
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1", Model: "text-embedding-3-small"}, nil)
	require.NoError(t, err)

	vectors, usage, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Equal(t, "text-embedding-3-small", received.Model)
	require.Equal(t, []string{"first", "second"}, received.Input)
	require.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
	require.Equal(t, 5, usage.TotalTokens)
}

func TestOpenAIEmbedderSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "sk-bad", BaseURL: server.URL, Model: "m"}, nil)
	require.NoError(t, err)

	_, _, err = e.Embed(context.Background(), "hello")
	require.ErrorContains(t, err, "invalid api key")
}

func TestNewOpenAIEmbedderRequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder(OpenAIConfig{Model: "m"}, nil)
	require.Error(t, err)
}

func TestEstimateTokens(t *testing.T) {
	require.Zero(t, estimateTokens(""))
	require.Equal(t, 3, estimateTokens("hello"))
	require.Equal(t, 5, estimateTokens("a b c d e"))

	var counter *TokenCounter
	require.Equal(t, 3, counter.Count("hello"))
	require.Equal(t, 3, (&TokenCounter{}).Count("hello"))
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
