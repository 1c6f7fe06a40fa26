package faq

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	apperrors "github.com/yanqian/faq-search/pkg/errors"
	"github.com/yanqian/faq-search/pkg/util"
)

// CatalogSource loads the raw FAQ dataset once at startup.
type CatalogSource interface {
	Load(ctx context.Context) (Dataset, error)
}

// Catalog is the immutable in-memory FAQ index. It is safe for concurrent readers.
type Catalog struct {
	questions []QuestionRecord
	answers   map[ID]string
	canonical map[ID]QuestionRecord
	matrix    *mat.Dense
	stats     CatalogStats
}

// LoadCatalog pulls a dataset from source and builds the catalog.
func LoadCatalog(ctx context.Context, source CatalogSource, logger *slog.Logger) (*Catalog, error) {
	ds, err := source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog dataset: %w", err)
	}
	catalog, err := NewCatalog(ds)
	if err != nil {
		return nil, err
	}
	stats := catalog.Stats()
	if len(stats.Unsurfaced) > 0 {
		logger.Warn("answers without an english question will never be surfaced", "answer_ids", stats.Unsurfaced)
	}
	if stats.ZeroRows > 0 {
		logger.Warn("catalog contains zero embedding rows", "count", stats.ZeroRows)
	}
	logger.Info("faq catalog loaded", "source", stats.Source, "rows", stats.Rows, "dimension", stats.Dimension, "answers", stats.Answers)
	return catalog, nil
}

// NewCatalog validates ds, normalizes its embedding rows and builds the canonical index.
func NewCatalog(ds Dataset) (*Catalog, error) {
	rows := len(ds.Embeddings)
	if rows != len(ds.Questions) {
		return nil, integrityError("embedding rows (%d) do not match question records (%d)", rows, len(ds.Questions))
	}

	canonical := make(map[ID]QuestionRecord)
	languages := make(map[string]int)
	for _, q := range ds.Questions {
		languages[q.Language]++
		if q.Language == CanonicalLanguage {
			canonical[q.AnswerID] = q
		}
	}
	if len(canonical) == 0 {
		return nil, integrityError("no %q questions found in faq data", CanonicalLanguage)
	}

	answers := make(map[ID]string, len(ds.Answers))
	for _, a := range ds.Answers {
		answers[a.AnswerID] = a.AnswerText
	}
	for answerID, q := range canonical {
		if _, ok := answers[answerID]; !ok {
			return nil, integrityError("answer %q referenced by question %q has no answer text", answerID, q.QuestionID)
		}
	}

	dim := len(ds.Embeddings[0])
	if dim == 0 {
		return nil, integrityError("embedding dimension must be positive")
	}
	data := make([]float64, 0, rows*dim)
	for i, row := range ds.Embeddings {
		if len(row) != dim {
			return nil, integrityError("embedding row %d has dimension %d, expected %d", i, len(row), dim)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, integrityError("embedding row %d contains a non-finite value", i)
			}
		}
		data = append(data, row...)
	}
	matrix := mat.NewDense(rows, dim, data)

	zeroRows := 0
	for i := 0; i < rows; i++ {
		if !normalize(matrix.RawRowView(i)) {
			zeroRows++
		}
	}

	var unsurfaced []ID
	seen := make(map[ID]struct{})
	for _, q := range ds.Questions {
		if _, ok := seen[q.AnswerID]; ok {
			continue
		}
		seen[q.AnswerID] = struct{}{}
		if _, ok := canonical[q.AnswerID]; !ok {
			unsurfaced = append(unsurfaced, q.AnswerID)
		}
	}
	sort.Slice(unsurfaced, func(i, j int) bool { return unsurfaced[i] < unsurfaced[j] })

	return &Catalog{
		questions: append([]QuestionRecord(nil), ds.Questions...),
		answers:   answers,
		canonical: canonical,
		matrix:    matrix,
		stats: CatalogStats{
			Source:       ds.Source,
			Rows:         rows,
			Dimension:    dim,
			Answers:      len(answers),
			Canonical:    len(canonical),
			Unsurfaced:   unsurfaced,
			Languages:    languages,
			ZeroRows:     zeroRows,
			LoadedAtUnix: util.NowUTC().Unix(),
		},
	}, nil
}

// RowCount returns the number of embedded questions.
func (c *Catalog) RowCount() int { return len(c.questions) }

// Dimension returns the embedding width D.
func (c *Catalog) Dimension() int {
	_, cols := c.matrix.Dims()
	return cols
}

// EmbeddingAt returns a copy of row i.
func (c *Catalog) EmbeddingAt(i int) []float64 {
	return append([]float64(nil), c.matrix.RawRowView(i)...)
}

// QuestionAt returns the question record embedded by row i.
func (c *Catalog) QuestionAt(i int) QuestionRecord { return c.questions[i] }

// AnswerText looks up the answer text for answerID.
func (c *Catalog) AnswerText(answerID ID) (string, bool) {
	text, ok := c.answers[answerID]
	return text, ok
}

// CanonicalQuestion returns the english question that labels answerID.
func (c *Catalog) CanonicalQuestion(answerID ID) (QuestionRecord, bool) {
	q, ok := c.canonical[answerID]
	return q, ok
}

// Stats reports catalog metadata.
func (c *Catalog) Stats() CatalogStats {
	stats := c.stats
	stats.Languages = make(map[string]int, len(c.stats.Languages))
	for k, v := range c.stats.Languages {
		stats.Languages[k] = v
	}
	stats.Unsurfaced = append([]ID(nil), c.stats.Unsurfaced...)
	return stats
}

// normalize scales v to unit L2 norm in place. Zero vectors are left untouched
// and reported as false.
func normalize(v []float64) bool {
	norm := floats.Norm(v, 2)
	if norm == 0 {
		return false
	}
	floats.Scale(1/norm, v)
	return true
}

func integrityError(format string, args ...any) error {
	return apperrors.Wrap(CodeCatalogIntegrity, fmt.Sprintf(format, args...), nil)
}
