package faqcatalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/faq-search/internal/domain/faq"
	"github.com/yanqian/faq-search/internal/infra/embedder"
	"github.com/yanqian/faq-search/pkg/metrics"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleDataset() faq.Dataset {
	return faq.Dataset{
		Questions: []faq.QuestionRecord{
			{QuestionID: "1", AnswerID: "10", Language: "en", QuestionText: "How do I reset my password?"},
			{QuestionID: "2", AnswerID: "10", Language: "de", QuestionText: "Wie setze ich mein Passwort zurück?"},
			{QuestionID: "3", AnswerID: "11", Language: "en", QuestionText: "Where is the office?"},
		},
		Answers: []faq.AnswerRecord{
			{AnswerID: "10", AnswerText: "Use the forgot password link."},
			{AnswerID: "11", AnswerText: "Main street 1."},
		},
		Embeddings: [][]float64{{1, 0, 0}, {0.9, 0.1, 0}, {0, 0, 1}},
	}
}

func TestFileSourceRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalog")
	source := NewFileSource(dir)
	require.NoError(t, source.Store(context.Background(), sampleDataset()))

	ds, err := source.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "file:"+dir, ds.Source)
	require.Equal(t, sampleDataset().Questions, ds.Questions)
	require.Equal(t, sampleDataset().Answers, ds.Answers)
	require.Equal(t, sampleDataset().Embeddings, ds.Embeddings)

	catalog, err := faq.NewCatalog(ds)
	require.NoError(t, err)
	require.Equal(t, 3, catalog.Dimension())
}

func TestFileSourceAcceptsNumericIDs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, QuestionsFile),
		[]byte(`[{"question_id": 1, "answer_id": 7, "language": "en", "question": "Hi?"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, AnswersFile),
		[]byte(`[{"answer_id": 7, "answer_text": "Hello."}]`), 0o644))
	source := NewFileSource(dir)
	require.NoError(t, source.StoreEmbeddings([][]float64{{0.5, 0.5}}))

	ds, err := source.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, faq.ID("7"), ds.Questions[0].AnswerID)
	require.Equal(t, faq.ID("7"), ds.Answers[0].AnswerID)
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := NewFileSource(t.TempDir()).Load(context.Background())
	require.ErrorContains(t, err, "open catalog file")
}

func TestReadEmbeddingsRejectsNonMatrix(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, npyio.Write(&buf, []float64{1, 2, 3}))
	_, err := ReadEmbeddings(&buf)
	require.ErrorContains(t, err, "expected a 2-D array")

	buf.Reset()
	require.NoError(t, npyio.Write(&buf, []int32{1, 2}))
	_, err = ReadEmbeddings(&buf)
	require.Error(t, err)
}

func TestWriteEmbeddingsRejectsRaggedRows(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, WriteEmbeddings(&buf, nil))
	require.ErrorContains(t, WriteEmbeddings(&buf, [][]float64{{1, 2}, {1}}), "row 1")
}

func TestGeneratorEmbedsInQuestionOrder(t *testing.T) {
	provider := embedder.NewDeterministicEmbedder(16)
	questions := sampleDataset().Questions

	var (
		calls    atomic.Int64
		lastDone atomic.Int64
	)
	rows, usage, err := NewGenerator(provider, 2, 2, newTestLogger()).Generate(context.Background(), questions, func(done, total int) {
		calls.Add(1)
		if int64(done) > lastDone.Load() {
			lastDone.Store(int64(done))
		}
		require.Equal(t, len(questions), total)
	})
	require.NoError(t, err)
	require.Len(t, rows, len(questions))
	require.EqualValues(t, (len(questions)+1)/2, calls.Load())
	require.EqualValues(t, len(questions), lastDone.Load())
	require.Positive(t, usage.TotalTokens)

	for i, question := range questions {
		want, _, err := provider.Embed(context.Background(), question.QuestionText)
		require.NoError(t, err)
		require.Len(t, rows[i], 16)
		for j := range want {
			require.Equal(t, float64(want[j]), rows[i][j])
		}
	}
}

type recordingBatchProvider struct {
	mu      sync.Mutex
	batches [][]string
}

func (p *recordingBatchProvider) Embed(context.Context, string) ([]float32, metrics.TokenUsage, error) {
	return nil, metrics.TokenUsage{}, errors.New("single embedding must not be used")
}

func (p *recordingBatchProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, metrics.TokenUsage, error) {
	p.mu.Lock()
	p.batches = append(p.batches, append([]string(nil), texts...))
	p.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, metrics.TokenUsage{PromptTokens: len(texts), TotalTokens: len(texts)}, nil
}

func TestGeneratorBatchesRequests(t *testing.T) {
	provider := &recordingBatchProvider{}
	questions := sampleDataset().Questions

	rows, usage, err := NewGenerator(provider, 1, 2, newTestLogger()).Generate(context.Background(), questions, nil)
	require.NoError(t, err)
	require.Equal(t, len(questions), usage.TotalTokens)

	require.Len(t, provider.batches, 2)
	var sent []string
	for _, batch := range provider.batches {
		require.LessOrEqual(t, len(batch), 2)
		sent = append(sent, batch...)
	}
	require.Len(t, sent, len(questions))
	for i, question := range questions {
		require.Equal(t, float64(len(question.QuestionText)), rows[i][0])
	}
}

type shortBatchProvider struct{ recordingBatchProvider }

func (p *shortBatchProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, metrics.TokenUsage, error) {
	out, usage, err := p.recordingBatchProvider.EmbedBatch(ctx, texts)
	return out[:len(out)-1], usage, err
}

func TestGeneratorRejectsShortBatch(t *testing.T) {
	_, _, err := NewGenerator(&shortBatchProvider{}, 1, 2, newTestLogger()).Generate(context.Background(), sampleDataset().Questions, nil)
	require.ErrorContains(t, err, "vectors for")
}

type failingProvider struct{}

func (failingProvider) Embed(context.Context, string) ([]float32, metrics.TokenUsage, error) {
	return nil, metrics.TokenUsage{}, errors.New("quota exceeded")
}

func TestGeneratorFailsOnProviderError(t *testing.T) {
	_, _, err := NewGenerator(failingProvider{}, 0, 0, newTestLogger()).Generate(context.Background(), sampleDataset().Questions, nil)
	require.ErrorContains(t, err, "quota exceeded")

	_, _, err = NewGenerator(failingProvider{}, 1, 1, nil).Generate(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestSanitizeEndpoint(t *testing.T) {
	require.Equal(t, "account.r2.cloudflarestorage.com", sanitizeEndpoint("https://account.r2.cloudflarestorage.com/bucket"))
	require.Equal(t, "localhost:9000", sanitizeEndpoint(" http://localhost:9000 "))
	require.Equal(t, "s3.amazonaws.com", sanitizeEndpoint("s3.amazonaws.com"))
}

func TestObjectStoreKeys(t *testing.T) {
	s := &ObjectStoreSource{prefix: "faq/v2"}
	require.Equal(t, "faq/v2/faqs.json", s.key(QuestionsFile))
	s.prefix = ""
	require.Equal(t, "answers.json", s.key(AnswersFile))

	_, err := NewObjectStoreSource(ObjectStoreConfig{Endpoint: "localhost:9000"}, nil)
	require.Error(t, err)
}
