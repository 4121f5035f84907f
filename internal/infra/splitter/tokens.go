package splitter

import (
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
)

// TiktokenCounter counts tokens with a BPE encoding. The encoding is loaded on
// first use; when it cannot be loaded the counter falls back to an estimate.
type TiktokenCounter struct {
	encoding string
	logger   *slog.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTiktokenCounter constructs a counter for encoding (cl100k_base when empty).
func NewTiktokenCounter(encoding string, logger *slog.Logger) *TiktokenCounter {
	if strings.TrimSpace(encoding) == "" {
		encoding = "cl100k_base"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TiktokenCounter{encoding: encoding, logger: logger.With("component", "splitter.tiktoken")}
}

// Count returns the number of tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			c.logger.Warn("tiktoken encoding unavailable, estimating tokens", "encoding", c.encoding, "error", err)
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return estimate(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

var _ evaluator.TokenCounter = (*TiktokenCounter)(nil)

// estimate approximates BPE counts at four characters per token.
func estimate(text string) int {
	n := (utf8.RuneCountInString(text) + 3) / 4
	if words := len(strings.Fields(text)); n < words {
		return words
	}
	return n
}
