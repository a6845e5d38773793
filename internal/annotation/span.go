// Package annotation defines the span records the indexes operate on, the
// document text buffer they point into, and a few helpers that work on
// begin-ordered annotation streams.
package annotation

import (
	apperrors "github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/errors"
)

// Bounded is anything that occupies a half-open [Begin, End) range of
// document characters. Indexes are generic over Bounded element types and
// keep the elements they are given, so indexing pointers keeps references
// rather than copies.
type Bounded interface {
	Begin() int
	End() int
}

// Span is the plain annotation record: a half-open character range, the kind
// of annotation, and caller-defined payload data.
type Span[P any] struct {
	Start   int  `json:"begin"`
	Stop    int  `json:"end"`
	Kind    Kind `json:"kind"`
	Payload P    `json:"payload,omitempty"`
}

// NewSpan validates the offsets and returns a span. Indexes assume validated
// input and never check offsets again.
func NewSpan[P any](begin, end int, kind Kind, payload P) (*Span[P], error) {
	if begin < 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidSpan, "annotation.new", "negative begin offset %d", begin)
	}
	if end <= begin {
		return nil, apperrors.Newf(apperrors.ErrInvalidSpan, "annotation.new", "begin %d must be smaller than end %d", begin, end)
	}
	return &Span[P]{Start: begin, Stop: end, Kind: kind, Payload: payload}, nil
}

func (s Span[P]) Begin() int { return s.Start }
func (s Span[P]) End() int   { return s.Stop }

// Len returns the number of characters covered.
func (s Span[P]) Len() int { return s.Stop - s.Start }

// Covers reports whether b lies completely inside a, boundaries included.
func Covers(a, b Bounded) bool {
	return a.Begin() <= b.Begin() && b.End() <= a.End()
}

// Overlaps reports whether a and b share at least one character.
func Overlaps(a, b Bounded) bool {
	return a.Begin() < b.End() && b.Begin() < a.End()
}

// Range is a bare offset pair, used for ad hoc queries.
type Range struct {
	From, To int
}

func (r Range) Begin() int { return r.From }
func (r Range) End() int   { return r.To }
