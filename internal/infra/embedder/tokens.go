package embedder

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/yanqian/faq-search/internal/domain/faq"
)

const fallbackEncoding = "cl100k_base"

// TokenCounter counts tokens with the model's BPE encoding, or estimates them when
// the encoding is unavailable.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter loads the encoding for model. Loading may fetch the BPE ranks on first
// use; failures degrade to the estimate instead of failing startup.
func NewTokenCounter(model string, logger *slog.Logger) *TokenCounter {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		if logger != nil {
			logger.Warn("tiktoken encoding unavailable, estimating token counts", "model", model, "error", err)
		}
		return &TokenCounter{}
	}
	return &TokenCounter{encoding: encoding}
}

// Count returns the number of tokens text occupies.
func (c *TokenCounter) Count(text string) int {
	if c == nil || c.encoding == nil {
		return estimateTokens(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// estimateTokens provides a rough, upper-biased token count without an encoding.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	byRunes := (runes + 1) / 2
	if byRunes < words {
		return words
	}
	return byRunes
}

var _ faq.TokenCounter = (*TokenCounter)(nil)
