// Package annotator implements the index-backed post-processing rules run
// over an annotated document: duplicate removal, containment, token
// alignment, exclusion, surface grouping and prefix lookup. Every rule builds
// its own indexes, freezes them and only reads afterwards, so rules may run
// concurrently over the same document.
package annotator

import (
	"fmt"
	"iter"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/annotation"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/index/compare"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/index/termgen"
)

// Attrs is the payload carried by service spans.
type Attrs struct {
	ID         string            `json:"id,omitempty"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Span is the span type all rules operate on.
type Span = *annotation.Span[Attrs]

// Deduplicate resolves overlapping spans: of every group of mutually
// overlapping spans the longest survives, ties going to the earlier begin
// and then to input order. Survivors keep their input order.
func Deduplicate(spans []Span) ([]Span, error) {
	if len(spans) < 2 {
		return slices.Clone(spans), nil
	}
	ov, err := index.Build(index.NewOverlap[Span](), spans)
	if err != nil {
		return nil, fmt.Errorf("building overlap index: %w", err)
	}

	order := make([]int, len(spans))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		sa, sb := spans[a], spans[b]
		if d := sb.Len() - sa.Len(); d != 0 {
			return d
		}
		return sa.Begin() - sb.Begin()
	})

	dropped := make(map[Span]bool)
	for _, i := range order {
		s := spans[i]
		if dropped[s] {
			continue
		}
		hits, err := ov.Search(s)
		if err != nil {
			return nil, err
		}
		for other := range hits {
			if other != s {
				dropped[other] = true
			}
		}
	}

	kept := make([]Span, 0, len(spans)-len(dropped))
	for _, s := range spans {
		if !dropped[s] {
			kept = append(kept, s)
		}
	}
	return kept, nil
}

// Containment lists the spans an outer span fully covers.
type Containment struct {
	Outer Span
	Inner []Span
}

// Contained finds, for every outer span, the spans of the inner groups it
// covers. Each group gets its own cover index; the per-group results are
// merged by begin offset.
func Contained(outer []Span, inner ...[]Span) ([]Containment, error) {
	covers := make([]*index.Cover[Span], 0, len(inner))
	for _, group := range inner {
		c, err := index.Build(index.NewCover[Span](), group)
		if err != nil {
			return nil, fmt.Errorf("building cover index: %w", err)
		}
		covers = append(covers, c)
	}

	out := make([]Containment, 0, len(outer))
	for _, o := range outer {
		seqs := make([]iter.Seq[Span], 0, len(covers))
		for _, c := range covers {
			hits, err := c.SearchSpan(o)
			if err != nil {
				return nil, err
			}
			seqs = append(seqs, hits)
		}
		var found []Span
		for s := range annotation.Merge(true, nil, seqs...) {
			if s != o {
				found = append(found, s)
			}
		}
		out = append(out, Containment{Outer: o, Inner: found})
	}
	return out, nil
}

// Alignment lists the tokens overlapping a target span.
type Alignment struct {
	Target Span
	Tokens []Span
}

// AlignTokens maps every target onto the tokens it overlaps. Tokens are
// keyed by their packed offsets in a tree map ordered by the overlap
// comparator, which requires the tokens not to overlap each other.
func AlignTokens(tokens, targets []Span) ([]Alignment, error) {
	tm := index.NewTreeMap[int64, Span](compare.PackedOverlap(), termgen.Offsets(), termgen.Offsets())
	if _, err := index.Build(tm, tokens); err != nil {
		return nil, fmt.Errorf("building token index: %w", err)
	}

	out := make([]Alignment, 0, len(targets))
	for _, target := range targets {
		hits, err := tm.SearchFuzzy(target)
		if err != nil {
			return nil, err
		}
		var aligned []Span
		for tok := range hits {
			// fuzzy search falls back to the neighbours of a gap
			if annotation.Overlaps(tok, target) {
				aligned = append(aligned, tok)
			}
		}
		out = append(out, Alignment{Target: target, Tokens: aligned})
	}
	return out, nil
}

// ExcludeOverlapping drops every span that shares a character with one of
// the filter spans. Filters are fused into disjoint ranges first so the
// overlap comparator orders the set consistently.
func ExcludeOverlapping(spans, filters []Span) ([]Span, error) {
	if len(filters) == 0 {
		return slices.Clone(spans), nil
	}
	set, err := index.Build(index.NewSet(compare.Overlap[annotation.Range]()), fuse(filters))
	if err != nil {
		return nil, fmt.Errorf("building exclusion set: %w", err)
	}
	kept := make([]Span, 0, len(spans))
	for _, s := range spans {
		hit, err := set.Contains(annotation.Range{From: s.Begin(), To: s.End()})
		if err != nil {
			return nil, err
		}
		if !hit {
			kept = append(kept, s)
		}
	}
	return kept, nil
}

func fuse(spans []Span) []annotation.Range {
	ranges := make([]annotation.Range, 0, len(spans))
	for _, s := range spans {
		ranges = append(ranges, annotation.Range{From: s.Begin(), To: s.End()})
	}
	slices.SortFunc(ranges, func(a, b annotation.Range) int { return a.From - b.From })
	fused := ranges[:1]
	for _, r := range ranges[1:] {
		last := &fused[len(fused)-1]
		if r.From < last.To {
			last.To = max(last.To, r.To)
			continue
		}
		fused = append(fused, r)
	}
	return fused
}

// Group is a set of spans covering the same text.
type Group struct {
	Surface string
	Spans   []Span
}

// GroupBySurface groups spans by their covered text. Groups are ordered by
// first occurrence; within a group spans keep their input order.
func GroupBySurface(doc annotation.TextSource, spans []Span) ([]Group, error) {
	surface := termgen.CoveredText(doc)
	hm := index.NewHashMap[string, Span](surface, surface)
	if _, err := index.Build(hm, spans); err != nil {
		return nil, fmt.Errorf("building surface index: %w", err)
	}

	seen := make(map[string]bool, hm.Keys())
	groups := make([]Group, 0, hm.Keys())
	for _, s := range spans {
		text, err := doc.CoveredText(s)
		if err != nil {
			return nil, err
		}
		if seen[text] {
			continue
		}
		seen[text] = true
		hits, err := hm.SearchKeys(text)
		if err != nil {
			return nil, err
		}
		groups = append(groups, Group{Surface: text, Spans: index.Collect(hits)})
	}
	return groups, nil
}
