package faq

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	apperrors "github.com/yanqian/faq-search/pkg/errors"
)

// Ranking orders catalog rows by descending similarity to a query.
// Similarities is indexed by row; only rows listed in Order are guaranteed to be scored.
type Ranking struct {
	Order        []int
	Similarities []float64
}

// Ranker scores a unit-length query against the catalog.
type Ranker interface {
	Rank(query []float64) (Ranking, error)
}

type bruteForceRanker struct {
	catalog *Catalog
}

// NewBruteForceRanker scores every catalog row. Suitable while the catalog stays in
// the low thousands of rows.
func NewBruteForceRanker(catalog *Catalog) Ranker {
	return &bruteForceRanker{catalog: catalog}
}

func (r *bruteForceRanker) Rank(query []float64) (Ranking, error) {
	rows, dim := r.catalog.matrix.Dims()
	if len(query) != dim {
		return Ranking{}, apperrors.Wrap(CodeDimensionMismatch, fmt.Sprintf("query dimension %d does not match catalog dimension %d", len(query), dim), nil)
	}

	similarities := make([]float64, rows)
	scores := mat.NewVecDense(rows, similarities)
	scores.MulVec(r.catalog.matrix, mat.NewVecDense(dim, query))

	order := make([]int, rows)
	for i := range order {
		order[i] = i
	}
	// stable: equal scores keep catalog order
	sort.SliceStable(order, func(a, b int) bool {
		return similarities[order[a]] > similarities[order[b]]
	})

	return Ranking{Order: order, Similarities: similarities}, nil
}

// CollectUniqueAnswers walks the ranking and emits at most topK results, one per answer id,
// each labelled with the answer's canonical question. The returned similarities hold one
// entry per distinct answer visited, in visit order.
//
// An answer without a canonical question is not emitted, but its similarity is still
// recorded so it keeps influencing the confidence margin.
func CollectUniqueAnswers(catalog *Catalog, ranking Ranking, topK int) ([]Result, []float64) {
	if topK < 1 {
		topK = 1
	}
	results := make([]Result, 0, topK)
	var similarities []float64
	seen := make(map[ID]struct{})

	for _, idx := range ranking.Order {
		answerID := catalog.QuestionAt(idx).AnswerID
		if _, dup := seen[answerID]; dup {
			continue
		}
		seen[answerID] = struct{}{}
		similarity := ranking.Similarities[idx]
		similarities = append(similarities, similarity)

		canonical, ok := catalog.CanonicalQuestion(answerID)
		if !ok {
			continue
		}
		answer, ok := catalog.AnswerText(answerID)
		if !ok {
			continue
		}
		results = append(results, Result{
			ID:           canonical.QuestionID,
			QuestionText: canonical.QuestionText,
			AnswerText:   answer,
			Similarity:   similarity,
		})
		if len(results) == topK {
			break
		}
	}
	return results, similarities
}
