package retrieval

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// TokenCounter counts tokens with a tiktoken encoding when one is
// available and degrades to a character heuristic when it is not, so
// trimming never fails on an unknown model name.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter resolves model first as an encoding name, then as a
// model name, then falls back to the heuristic-only counter.
func NewTokenCounter(model string) *TokenCounter {
	if model != "" {
		if enc, err := tiktoken.GetEncoding(model); err == nil {
			return &TokenCounter{enc: enc}
		}
		if enc, err := tiktoken.EncodingForModel(model); err == nil {
			return &TokenCounter{enc: enc}
		}
	}
	if enc, err := tiktoken.GetEncoding(defaultEncoding); err == nil {
		return &TokenCounter{enc: enc}
	}
	return &TokenCounter{}
}

// Count returns the token count for text, or len/4 (min 1) without an
// encoder.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// Trim returns the largest word-boundary prefix of text within budget
// tokens. Text already inside the budget comes back unchanged.
func (c *TokenCounter) Trim(text string, budget int) string {
	if budget <= 0 || c.Count(text) <= budget {
		return text
	}
	words := strings.Fields(text)
	lo, hi := 0, len(words)
	best := ""
	for lo < hi {
		mid := (lo + hi + 1) / 2
		cand := strings.Join(words[:mid], " ")
		if c.Count(cand) <= budget {
			best = cand
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return best
}
