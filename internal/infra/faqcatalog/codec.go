package faqcatalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/yanqian/faq-search/internal/domain/faq"
)

// Catalog artifact names, shared by every source.
const (
	QuestionsFile  = "faqs.json"
	AnswersFile    = "answers.json"
	EmbeddingsFile = "embeddings.npy"
)

// DecodeQuestions reads the question list.
func DecodeQuestions(r io.Reader) ([]faq.QuestionRecord, error) {
	var questions []faq.QuestionRecord
	if err := json.NewDecoder(r).Decode(&questions); err != nil {
		return nil, fmt.Errorf("decode %s: %w", QuestionsFile, err)
	}
	return questions, nil
}

// DecodeAnswers reads the answer list.
func DecodeAnswers(r io.Reader) ([]faq.AnswerRecord, error) {
	var answers []faq.AnswerRecord
	if err := json.NewDecoder(r).Decode(&answers); err != nil {
		return nil, fmt.Errorf("decode %s: %w", AnswersFile, err)
	}
	return answers, nil
}

// EncodeJSON writes v as indented JSON, the layout of the catalog files.
func EncodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ReadEmbeddings decodes a 2-D little-endian float32 or float64 NumPy array in C order.
func ReadEmbeddings(r io.Reader) ([][]float64, error) {
	npy, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", EmbeddingsFile, err)
	}
	descr := npy.Header.Descr
	if descr.Fortran {
		return nil, fmt.Errorf("%s: fortran ordered arrays are not supported", EmbeddingsFile)
	}
	if len(descr.Shape) != 2 {
		return nil, fmt.Errorf("%s: expected a 2-D array, got shape %v", EmbeddingsFile, descr.Shape)
	}
	rows, cols := descr.Shape[0], descr.Shape[1]

	var flat []float64
	switch descr.Type {
	case "<f8":
		if err := npy.Read(&flat); err != nil {
			return nil, fmt.Errorf("read %s: %w", EmbeddingsFile, err)
		}
	case "<f4":
		var narrow []float32
		if err := npy.Read(&narrow); err != nil {
			return nil, fmt.Errorf("read %s: %w", EmbeddingsFile, err)
		}
		flat = make([]float64, len(narrow))
		for i, v := range narrow {
			flat[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported dtype %q", EmbeddingsFile, descr.Type)
	}
	if len(flat) != rows*cols {
		return nil, fmt.Errorf("%s: shape %v does not match %d values", EmbeddingsFile, descr.Shape, len(flat))
	}

	out := make([][]float64, rows)
	for i := range out {
		out[i] = flat[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return out, nil
}

// WriteEmbeddings encodes rows as a 2-D float64 NumPy array.
func WriteEmbeddings(w io.Writer, rows [][]float64) error {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return errors.New("no embeddings to write")
	}
	cols := len(rows[0])
	flat := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return fmt.Errorf("embedding row %d has %d values, expected %d", i, len(row), cols)
		}
		flat = append(flat, row...)
	}
	return npyio.Write(w, mat.NewDense(len(rows), cols, flat))
}
