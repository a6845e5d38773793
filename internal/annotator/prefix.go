package annotator

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/annotation"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/index/termgen"
)

// PrefixIndex finds spans by the beginning of their covered text. Spans are
// indexed under every edge n-gram of up to n characters.
type PrefixIndex struct {
	src annotation.TextSource
	n   int
	hm  *index.HashMap[string, Span]
}

// NewPrefixIndex indexes spans by the first n characters of their text.
func NewPrefixIndex(src annotation.TextSource, spans []Span, n int) (*PrefixIndex, error) {
	if n <= 0 {
		return nil, fmt.Errorf("prefix length must be positive, got %d", n)
	}
	hm := index.NewHashMap[string, Span](termgen.EdgeNGrams(src, n), termgen.ExactPrefix(src, n))
	if _, err := index.Build(hm, spans); err != nil {
		return nil, fmt.Errorf("building prefix index: %w", err)
	}
	return &PrefixIndex{src: src, n: n, hm: hm}, nil
}

// Lookup returns the spans whose text starts with prefix. Prefixes longer
// than the indexed length are narrowed by comparing the covered text.
func (p *PrefixIndex) Lookup(prefix string) ([]Span, error) {
	runes := []rune(prefix)
	if len(runes) == 0 {
		return nil, nil
	}
	key := string(runes[:min(len(runes), p.n)])
	hits, err := p.hm.SearchKeys(key)
	if err != nil {
		return nil, err
	}
	var out []Span
	for s := range hits {
		if len(runes) > p.n {
			text, err := p.src.CoveredText(s)
			if err != nil {
				return nil, err
			}
			if !strings.HasPrefix(text, prefix) {
				continue
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// Similar returns the spans sharing the first n characters with probe,
// probe itself excluded. Probes shorter than n characters match nothing.
func (p *PrefixIndex) Similar(probe Span) ([]Span, error) {
	hits, err := p.hm.Search(probe)
	if err != nil {
		return nil, err
	}
	var out []Span
	for s := range hits {
		if s != probe {
			out = append(out, s)
		}
	}
	return out, nil
}

// Len returns the number of indexed spans.
func (p *PrefixIndex) Len() int {
	return p.hm.Len()
}

// PrefixCandidates returns the spans whose text starts with query, using an
// index over the first n characters.
func PrefixCandidates(src annotation.TextSource, spans []Span, query string, n int) ([]Span, error) {
	p, err := NewPrefixIndex(src, spans, n)
	if err != nil {
		return nil, err
	}
	return p.Lookup(query)
}
