package faqcatalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/yanqian/faq-search/internal/domain/faq"
	"github.com/yanqian/faq-search/pkg/metrics"
)

const defaultBatchSize = 16

// BatchEmbedder is implemented by providers that embed several texts per call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, metrics.TokenUsage, error)
}

// Generator embeds every catalog question with a bounded worker pool. Each worker task
// covers one batch of consecutive questions.
type Generator struct {
	provider  faq.EmbeddingProvider
	workers   int
	batchSize int
	logger    *slog.Logger
}

// NewGenerator constructs a generator. workers <= 0 uses half the CPUs and
// batchSize <= 0 uses 16 questions per batch.
func NewGenerator(provider faq.EmbeddingProvider, workers, batchSize int, logger *slog.Logger) *Generator {
	if workers <= 0 {
		workers = runtime.NumCPU() / 2
	}
	if workers < 1 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		provider:  provider,
		workers:   workers,
		batchSize: batchSize,
		logger:    logger.With("component", "faqcatalog.generator"),
	}
}

// Generate returns one embedding per question, in question order. progress, when set,
// is called after each completed batch from worker goroutines.
func (g *Generator) Generate(ctx context.Context, questions []faq.QuestionRecord, progress func(done, total int)) ([][]float64, metrics.TokenUsage, error) {
	if len(questions) == 0 {
		return nil, metrics.TokenUsage{}, errors.New("no questions to embed")
	}
	pool, err := ants.NewPool(g.workers)
	if err != nil {
		return nil, metrics.TokenUsage{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		usage    metrics.TokenUsage
		done     atomic.Int64
		out      = make([][]float64, len(questions))
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for start := 0; start < len(questions); start += g.batchSize {
		end := min(start+g.batchSize, len(questions))
		batch := questions[start:end]

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			vectors, used, err := g.embed(ctx, batch)
			if err != nil {
				fail(err)
				return
			}
			for i, vec := range vectors {
				if len(vec) == 0 {
					fail(fmt.Errorf("embed question %s: empty vector", batch[i].QuestionID))
					return
				}
				row := make([]float64, len(vec))
				for j, v := range vec {
					row[j] = float64(v)
				}
				out[start+i] = row
			}

			mu.Lock()
			usage = usage.Add(used)
			mu.Unlock()
			if progress != nil {
				progress(int(done.Add(int64(len(batch)))), len(questions))
			}
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("submit questions %d-%d: %w", start, end-1, submitErr))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, metrics.TokenUsage{}, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, metrics.TokenUsage{}, err
	}

	dim := len(out[0])
	for i, row := range out {
		if len(row) != dim {
			return nil, metrics.TokenUsage{}, fmt.Errorf("question %s embedded with dimension %d, expected %d", questions[i].QuestionID, len(row), dim)
		}
	}
	g.logger.Info("catalog embeddings generated", "questions", len(questions), "dimension", dim, "total_tokens", usage.TotalTokens)
	return out, usage, nil
}

// embed uses one provider call per batch when the provider supports it.
func (g *Generator) embed(ctx context.Context, batch []faq.QuestionRecord) ([][]float32, metrics.TokenUsage, error) {
	if batcher, ok := g.provider.(BatchEmbedder); ok {
		texts := make([]string, len(batch))
		for i, q := range batch {
			texts[i] = q.QuestionText
		}
		vectors, usage, err := batcher.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, metrics.TokenUsage{}, fmt.Errorf("embed questions %s..%s: %w", batch[0].QuestionID, batch[len(batch)-1].QuestionID, err)
		}
		if len(vectors) != len(batch) {
			return nil, metrics.TokenUsage{}, fmt.Errorf("embed questions %s..%s: got %d vectors for %d texts", batch[0].QuestionID, batch[len(batch)-1].QuestionID, len(vectors), len(batch))
		}
		return vectors, usage, nil
	}

	vectors := make([][]float32, len(batch))
	var total metrics.TokenUsage
	for i, q := range batch {
		vec, usage, err := g.provider.Embed(ctx, q.QuestionText)
		if err != nil {
			return nil, metrics.TokenUsage{}, fmt.Errorf("embed question %s: %w", q.QuestionID, err)
		}
		vectors[i] = vec
		total = total.Add(usage)
	}
	return vectors, total, nil
}
