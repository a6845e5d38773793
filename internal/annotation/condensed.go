package annotation

import (
	"slices"
	"strings"

	"github.com/tidwall/btree"
)

// CondensedText is a document text with the passages of some annotations cut
// out. It maps offsets of the condensed text back to the original document.
type CondensedText struct {
	doc  *Document
	text string
	// condensed offset where a cut happened -> characters removed up to and
	// including that cut
	shifts btree.Map[int, int]
}

// NewCondensedText cuts the text covered by the given spans out of doc.
// Overlapping or touching cut spans are fused. Without cut spans the
// condensed text equals the document text and offsets map to themselves.
func NewCondensedText[E Bounded](doc *Document, cutAway []E) (*CondensedText, error) {
	if !doc.HasText() {
		return nil, errNoText("condensed.new")
	}
	ct := &CondensedText{doc: doc}
	if len(cutAway) == 0 {
		ct.text = doc.Text()
		return ct, nil
	}
	cuts := make([]Range, 0, len(cutAway))
	for _, c := range cutAway {
		if err := doc.Validate(c); err != nil {
			return nil, err
		}
		cuts = append(cuts, Range{From: c.Begin(), To: c.End()})
	}
	slices.SortFunc(cuts, func(a, b Range) int { return a.From - b.From })

	fused := cuts[:1]
	for _, c := range cuts[1:] {
		last := &fused[len(fused)-1]
		if c.From <= last.To {
			last.To = max(last.To, c.To)
			continue
		}
		fused = append(fused, c)
	}

	var sb strings.Builder
	removed, prevEnd := 0, 0
	for _, c := range fused {
		part, _ := doc.Slice(prevEnd, c.From)
		sb.WriteString(part)
		ct.shifts.Set(c.From-removed, removed+c.To-c.From)
		removed += c.To - c.From
		prevEnd = c.To
	}
	tail, _ := doc.Slice(prevEnd, doc.Len())
	sb.WriteString(tail)
	ct.text = sb.String()
	return ct, nil
}

// Text returns the condensed text.
func (ct *CondensedText) Text() string {
	return ct.text
}

// OriginalBegin maps a condensed begin offset to the original text. An
// offset sitting exactly on a cut resolves to the first character after the
// removed passage.
func (ct *CondensedText) OriginalBegin(condensed int) int {
	shift := 0
	ct.shifts.Descend(condensed, func(_ int, removed int) bool {
		shift = removed
		return false
	})
	return condensed + shift
}

// OriginalEnd maps a condensed end offset to the original text. An offset
// sitting exactly on a cut resolves to the end of the text before the
// removed passage.
func (ct *CondensedText) OriginalEnd(condensed int) int {
	shift := 0
	ct.shifts.Descend(condensed, func(at int, removed int) bool {
		if at == condensed {
			return true
		}
		shift = removed
		return false
	})
	return condensed + shift
}
