package faqcatalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/yanqian/faq-search/internal/domain/faq"
)

const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS faq_answers (
	answer_id   TEXT PRIMARY KEY,
	answer_text TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS faq_questions (
	position      INTEGER PRIMARY KEY,
	question_id   TEXT NOT NULL,
	answer_id     TEXT NOT NULL,
	language      TEXT NOT NULL,
	question_text TEXT NOT NULL,
	embedding     vector NOT NULL
);
`

// PostgresSource keeps the catalog in two tables; embeddings live in a pgvector column.
// Row order is preserved through the position column.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource constructs the source.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// EnsureSchema creates the extension and tables when missing.
func (s *PostgresSource) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure faq schema: %w", err)
	}
	return nil
}

// Load reads the catalog in position order.
func (s *PostgresSource) Load(ctx context.Context) (faq.Dataset, error) {
	ds := faq.Dataset{Source: "postgres"}

	rows, err := s.pool.Query(ctx, `
		SELECT question_id, answer_id, language, question_text, embedding
		FROM faq_questions
		ORDER BY position
	`)
	if err != nil {
		return faq.Dataset{}, fmt.Errorf("query faq questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			record    faq.QuestionRecord
			embedding pgvector.Vector
		)
		if err := rows.Scan(&record.QuestionID, &record.AnswerID, &record.Language, &record.QuestionText, &embedding); err != nil {
			return faq.Dataset{}, fmt.Errorf("scan faq question: %w", err)
		}
		ds.Questions = append(ds.Questions, record)
		ds.Embeddings = append(ds.Embeddings, widen(embedding.Slice()))
	}
	if err := rows.Err(); err != nil {
		return faq.Dataset{}, err
	}

	answerRows, err := s.pool.Query(ctx, `SELECT answer_id, answer_text FROM faq_answers ORDER BY answer_id`)
	if err != nil {
		return faq.Dataset{}, fmt.Errorf("query faq answers: %w", err)
	}
	defer answerRows.Close()
	for answerRows.Next() {
		var record faq.AnswerRecord
		if err := answerRows.Scan(&record.AnswerID, &record.AnswerText); err != nil {
			return faq.Dataset{}, fmt.Errorf("scan faq answer: %w", err)
		}
		ds.Answers = append(ds.Answers, record)
	}
	return ds, answerRows.Err()
}

// Store replaces the stored catalog with ds in one transaction.
func (s *PostgresSource) Store(ctx context.Context, ds faq.Dataset) error {
	if len(ds.Questions) != len(ds.Embeddings) {
		return fmt.Errorf("dataset has %d questions but %d embeddings", len(ds.Questions), len(ds.Embeddings))
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE faq_questions, faq_answers`); err != nil {
			return fmt.Errorf("truncate faq tables: %w", err)
		}

		batch := &pgx.Batch{}
		for _, answer := range ds.Answers {
			batch.Queue(`INSERT INTO faq_answers (answer_id, answer_text) VALUES ($1, $2)
				ON CONFLICT (answer_id) DO UPDATE SET answer_text = EXCLUDED.answer_text`,
				string(answer.AnswerID), answer.AnswerText)
		}
		for i, question := range ds.Questions {
			batch.Queue(`INSERT INTO faq_questions (position, question_id, answer_id, language, question_text, embedding)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				i, string(question.QuestionID), string(question.AnswerID), question.Language, question.QuestionText,
				pgvector.NewVector(narrow(ds.Embeddings[i])))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert faq rows: %w", err)
		}
		return nil
	})
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func narrow(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

var _ faq.CatalogSource = (*PostgresSource)(nil)
