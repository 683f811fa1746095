package ai

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used for estimates.
const DefaultEncoding = "cl100k_base"

// TokenCounter estimates prompt sizes. Token counts are approximate for
// non-OpenAI providers but good enough for metrics and trimming.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter loads the named encoding. tiktoken fetches the BPE ranks
// on first use; when that fails the counter falls back to a character-based
// estimate and the error is returned alongside a usable counter.
func NewTokenCounter(encoding string) (*TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return &TokenCounter{}, err
	}
	return &TokenCounter{enc: enc}, nil
}

// Count returns the token count of text.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c == nil || c.enc == nil {
		// Roughly four characters per token.
		return (utf8.RuneCountInString(text) + 3) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Truncate returns the longest prefix of text that fits in maxTokens.
func (c *TokenCounter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if c == nil || c.enc == nil {
		runes := []rune(text)
		if limit := maxTokens * 4; len(runes) > limit {
			return string(runes[:limit])
		}
		return text
	}
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return c.enc.Decode(tokens[:maxTokens])
}
