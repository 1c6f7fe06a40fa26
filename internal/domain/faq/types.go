package faq

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/yanqian/faq-search/pkg/metrics"
)

// CanonicalLanguage is the language whose question labels a result.
const CanonicalLanguage = "en"

// ID identifies questions and answers. Catalog files carry either JSON strings or numbers.
type ID string

// UnmarshalJSON accepts both "a1" and 42.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// QuestionRecord is one phrasing of a question in one language.
type QuestionRecord struct {
	QuestionID   ID     `json:"question_id"`
	AnswerID     ID     `json:"answer_id"`
	Language     string `json:"language"`
	QuestionText string `json:"question"`
}

// AnswerRecord holds the answer text shared by every phrasing of a question.
type AnswerRecord struct {
	AnswerID   ID     `json:"answer_id"`
	AnswerText string `json:"answer_text"`
}

// Dataset is the raw catalog material produced by a CatalogSource.
// Embeddings[i] embeds Questions[i].
type Dataset struct {
	Source     string
	Questions  []QuestionRecord
	Answers    []AnswerRecord
	Embeddings [][]float64
}

// Request encapsulates a search query.
type Request struct {
	Query string `json:"query" form:"query"`
	TopK  int    `json:"topK" form:"topK"`
}

// Result is a single deduplicated answer.
type Result struct {
	ID           ID      `json:"id"`
	QuestionText string  `json:"question"`
	AnswerText   string  `json:"answer"`
	Similarity   float64 `json:"similarity"`
}

// Response is returned to the HTTP transport.
type Response struct {
	Query          string              `json:"query"`
	Results        []Result            `json:"results"`
	Confidence     float64             `json:"confidence"`
	BelowThreshold bool                `json:"belowThreshold"`
	Error          string              `json:"error,omitempty"`
	DurationMs     int64               `json:"durationMs,omitempty"`
	TokenUsage     *metrics.TokenUsage `json:"tokenUsage,omitempty"`
}

// CatalogStats summarizes the loaded catalog.
type CatalogStats struct {
	Source       string         `json:"source"`
	Rows         int            `json:"rows"`
	Dimension    int            `json:"dimension"`
	Answers      int            `json:"answers"`
	Canonical    int            `json:"canonical"`
	Unsurfaced   []ID           `json:"unsurfaced,omitempty"`
	Languages    map[string]int `json:"languages"`
	ZeroRows     int            `json:"zeroRows"`
	LoadedAtUnix int64          `json:"loadedAt"`
}
