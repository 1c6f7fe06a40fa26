package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/faq-search/internal/domain/faq"
)

const (
	testQuestions = `[
  {"question_id": 1, "answer_id": 100, "language": "en", "question": "How do I reset my password?"},
  {"question_id": 2, "answer_id": 100, "language": "fr", "question": "Comment réinitialiser mon mot de passe ?"},
  {"question_id": 3, "answer_id": 101, "language": "en", "question": "What are your opening hours?"},
  {"question_id": 4, "answer_id": 102, "language": "en", "question": "Where is your office located?"}
]`
	testAnswers = `[
  {"answer_id": 100, "answer_text": "Use the forgot password link on the login page."},
  {"answer_id": 101, "answer_text": "We are open from nine to five."},
  {"answer_id": 102, "answer_text": "Main street 1."}
]`
)

func newTestCatalogDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "faqs.json"), []byte(testQuestions), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "answers.json"), []byte(testAnswers), 0o644))
	t.Chdir(dir)
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("LLM_PROVIDER", "deterministic")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"faqctl", "--log-level", "error"}, args...))
	return out.String(), err
}

func TestGenerateValidateSearch(t *testing.T) {
	dir := newTestCatalogDir(t)

	out, err := run(t, "generate", "--dir", dir, "--workers", "2")
	require.NoError(t, err)
	require.Contains(t, out, "wrote 4 embeddings")
	require.FileExists(t, filepath.Join(dir, "embeddings.npy"))

	out, err = run(t, "validate", "--dir", dir)
	require.NoError(t, err)
	var stats faq.CatalogStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	require.Equal(t, 4, stats.Rows)
	require.Equal(t, 3, stats.Canonical)

	out, err = run(t, "search", "--dir", dir, "--query", "how do I reset my password", "--top-k", "2")
	require.NoError(t, err)
	var resp faq.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Results, 2)
	require.Equal(t, faq.ID("1"), resp.Results[0].ID)
	require.Equal(t, "Use the forgot password link on the login page.", resp.Results[0].AnswerText)
}

func TestSearchEmptyQueryFails(t *testing.T) {
	dir := newTestCatalogDir(t)
	_, err := run(t, "generate", "--dir", dir)
	require.NoError(t, err)

	out, err := run(t, "search", "--dir", dir, "--query", "   ")
	require.Error(t, err)
	var resp faq.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.True(t, resp.BelowThreshold)
	require.NotEmpty(t, resp.Error)
}

func TestPublishRejectsUnknownTarget(t *testing.T) {
	dir := newTestCatalogDir(t)
	_, err := run(t, "generate", "--dir", dir)
	require.NoError(t, err)

	_, err = run(t, "publish", "--dir", dir, "--target", "ftp")
	require.ErrorContains(t, err, "unsupported publish target")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := run(t, "--log-level", "loud", "validate")
	require.Error(t, err)
}
