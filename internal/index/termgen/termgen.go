// Package termgen provides term generators: functions that derive the keys
// an annotation is indexed or searched under. Generators are pure and
// deterministic. Generators that look at covered text read it through an
// annotation.TextSource and fail when that text cannot be read; an empty
// key set always means "no keys", never "no text".
package termgen

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/annotation"
	apperrors "github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/errors"
)

// Generator derives zero or more keys for an annotation.
type Generator[K any] func(a annotation.Bounded) ([]K, error)

// Offsets indexes an annotation under its packed begin/end offset pair.
func Offsets() Generator[int64] {
	return func(a annotation.Bounded) ([]int64, error) {
		return []int64{PackOffsets(a.Begin(), a.End())}, nil
	}
}

// PackOffsets stores begin in the high and end in the low 32 bits.
func PackOffsets(begin, end int) int64 {
	return int64(begin)<<32 | int64(uint32(end))
}

// UnpackOffsets reverses PackOffsets.
func UnpackOffsets(key int64) (begin, end int) {
	return int(int32(key >> 32)), int(int32(key))
}

// NGrams emits every substring of exactly n characters of the covered text.
// Texts shorter than n yield no terms.
func NGrams(src annotation.TextSource, n int) Generator[string] {
	return withText(src, "ngrams", func(text []rune) []string {
		if n <= 0 || len(text) < n {
			return nil
		}
		terms := make([]string, 0, len(text)-n+1)
		for i := 0; i+n <= len(text); i++ {
			terms = append(terms, string(text[i:i+n]))
		}
		return terms
	})
}

// EdgeNGrams emits every prefix of the covered text with a length between 1
// and n.
func EdgeNGrams(src annotation.TextSource, n int) Generator[string] {
	return withText(src, "edge_ngrams", func(text []rune) []string {
		limit := min(n, len(text))
		if limit <= 0 {
			return nil
		}
		terms := make([]string, 0, limit)
		for i := 1; i <= limit; i++ {
			terms = append(terms, string(text[:i]))
		}
		return terms
	})
}

// Prefix emits the covered text cut to at most maxLength characters.
func Prefix(src annotation.TextSource, maxLength int) Generator[string] {
	return withText(src, "prefix", func(text []rune) []string {
		return []string{string(text[:clamp(maxLength, len(text))])}
	})
}

// Suffix emits the last at most maxLength characters of the covered text.
func Suffix(src annotation.TextSource, maxLength int) Generator[string] {
	return withText(src, "suffix", func(text []rune) []string {
		return []string{string(text[len(text)-clamp(maxLength, len(text)):])}
	})
}

// ExactPrefix emits the first length characters, or nothing when the covered
// text is shorter.
func ExactPrefix(src annotation.TextSource, length int) Generator[string] {
	return withText(src, "exact_prefix", func(text []rune) []string {
		if length < 0 || len(text) < length {
			return nil
		}
		return []string{string(text[:length])}
	})
}

// ExactSuffix emits the last length characters, or nothing when the covered
// text is shorter.
func ExactSuffix(src annotation.TextSource, length int) Generator[string] {
	return withText(src, "exact_suffix", func(text []rune) []string {
		if length < 0 || len(text) < length {
			return nil
		}
		return []string{string(text[len(text)-length:])}
	})
}

// CoveredText emits the complete covered text.
func CoveredText(src annotation.TextSource) Generator[string] {
	return withText(src, "covered_text", func(text []rune) []string {
		return []string{string(text)}
	})
}

// Single adapts a one-key function into a Generator.
func Single[K any](fn func(a annotation.Bounded) K) Generator[K] {
	return func(a annotation.Bounded) ([]K, error) {
		return []K{fn(a)}, nil
	}
}

func withText(src annotation.TextSource, name string, fn func(text []rune) []string) Generator[string] {
	return func(a annotation.Bounded) ([]string, error) {
		if src == nil {
			return nil, apperrors.New(apperrors.ErrTextUnavailable, "termgen."+name, "generator has no text source")
		}
		text, err := src.CoveredText(a)
		if err != nil {
			return nil, fmt.Errorf("generating %s terms for [%d,%d): %w", name, a.Begin(), a.End(), err)
		}
		return fn([]rune(text)), nil
	}
}

func clamp(n, length int) int {
	return max(0, min(n, length))
}
