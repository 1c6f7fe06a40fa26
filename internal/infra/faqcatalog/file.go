package faqcatalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yanqian/faq-search/internal/domain/faq"
)

// FileSource loads the catalog from a directory holding faqs.json, answers.json and
// embeddings.npy.
type FileSource struct {
	dir string
}

// NewFileSource constructs the source.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Load reads all three artifacts.
func (s *FileSource) Load(_ context.Context) (faq.Dataset, error) {
	ds := faq.Dataset{Source: "file:" + s.dir}

	var err error
	if ds.Questions, err = s.readQuestions(); err != nil {
		return faq.Dataset{}, err
	}
	if err := readFile(filepath.Join(s.dir, AnswersFile), func(f *os.File) error {
		ds.Answers, err = DecodeAnswers(f)
		return err
	}); err != nil {
		return faq.Dataset{}, err
	}
	if err := readFile(filepath.Join(s.dir, EmbeddingsFile), func(f *os.File) error {
		ds.Embeddings, err = ReadEmbeddings(f)
		return err
	}); err != nil {
		return faq.Dataset{}, err
	}
	return ds, nil
}

// Questions reads only faqs.json, the input of embedding generation.
func (s *FileSource) Questions() ([]faq.QuestionRecord, error) {
	return s.readQuestions()
}

// StoreEmbeddings replaces embeddings.npy.
func (s *FileSource) StoreEmbeddings(rows [][]float64) error {
	return writeFile(filepath.Join(s.dir, EmbeddingsFile), func(f *os.File) error {
		return WriteEmbeddings(f, rows)
	})
}

// Store writes every artifact of ds into the directory, creating it if needed.
func (s *FileSource) Store(_ context.Context, ds faq.Dataset) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	if err := writeFile(filepath.Join(s.dir, QuestionsFile), func(f *os.File) error {
		return EncodeJSON(f, ds.Questions)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(s.dir, AnswersFile), func(f *os.File) error {
		return EncodeJSON(f, ds.Answers)
	}); err != nil {
		return err
	}
	return s.StoreEmbeddings(ds.Embeddings)
}

func (s *FileSource) readQuestions() ([]faq.QuestionRecord, error) {
	var questions []faq.QuestionRecord
	err := readFile(filepath.Join(s.dir, QuestionsFile), func(f *os.File) error {
		var err error
		questions, err = DecodeQuestions(f)
		return err
	})
	return questions, err
}

func readFile(path string, fn func(*os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()
	return fn(f)
}

// writeFile writes through a temp file and renames, so readers never see a partial artifact.
func writeFile(path string, fn func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := fn(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var _ faq.CatalogSource = (*FileSource)(nil)
