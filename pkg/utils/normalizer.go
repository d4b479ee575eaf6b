package utils

import (
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TextNormalizer wraps transform.Transformer to provide string normalization.
// Transformers keep internal state so each call borrows one from a pool,
// making the normalizer safe for concurrent use.
type TextNormalizer struct {
	pool sync.Pool
}

// NewTextNormalizer creates a new TextNormalizer instance.
func NewTextNormalizer() *TextNormalizer {
	return &TextNormalizer{
		pool: sync.Pool{
			New: func() any {
				return transform.Chain(
					norm.NFKD,                          // Decompose with compatibility decomposition
					runes.Remove(runes.In(unicode.Mn)), // Remove non-spacing marks
					runes.Map(unicode.ToLower),         // Lowercase before recomposition
					norm.NFKC,                          // Normalize with compatibility composition
				)
			},
		},
	}
}

// Normalize folds case, strips combining marks and compresses whitespace.
// Word order is preserved. Returns an empty string for empty input.
func (n *TextNormalizer) Normalize(s string) string {
	s = CompressAllWhitespace(s)
	if s == "" {
		return ""
	}

	t := n.pool.Get().(transform.Transformer)
	defer n.pool.Put(t)

	t.Reset()

	result, _, err := transform.String(t, s)
	if err != nil {
		// Fall back to the whitespace-compressed input so the caller still
		// gets a stable key for the same text.
		return s
	}

	return result
}
