package annotation

import (
	apperrors "github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/errors"
)

// TextSource resolves the text a span covers. Term generators that derive
// keys from covered text read through it.
type TextSource interface {
	CoveredText(b Bounded) (string, error)
}

// Document is the shared text buffer annotations point into. Offsets are
// character (rune) offsets, not byte offsets.
type Document struct {
	ID    string
	runes []rune
	set   bool
}

// NewDocument wraps text. The document keeps its own rune view of the text;
// callers never hand span text to an index.
func NewDocument(id string, text string) *Document {
	return &Document{ID: id, runes: []rune(text), set: true}
}

// Text returns the full document text.
func (d *Document) Text() string {
	if d == nil {
		return ""
	}
	return string(d.runes)
}

// Len returns the document length in characters.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.runes)
}

// HasText reports whether the document carries a text buffer at all. An
// empty text is still a text.
func (d *Document) HasText() bool {
	return d != nil && d.set
}

// CoveredText returns the text covered by b.
func (d *Document) CoveredText(b Bounded) (string, error) {
	return d.Slice(b.Begin(), b.End())
}

// Slice returns the characters in [begin, end).
func (d *Document) Slice(begin, end int) (string, error) {
	if !d.HasText() {
		return "", errNoText("document.slice")
	}
	if begin < 0 || end > len(d.runes) || begin > end {
		return "", apperrors.Newf(apperrors.ErrOffsetOutOfRange, "document.slice",
			"span [%d,%d) outside document %q of length %d", begin, end, d.ID, len(d.runes))
	}
	return string(d.runes[begin:end]), nil
}

// Validate checks that b is a non-empty span inside the document.
func (d *Document) Validate(b Bounded) error {
	if b.Begin() < 0 || b.End() <= b.Begin() {
		return apperrors.Newf(apperrors.ErrInvalidSpan, "document.validate", "span [%d,%d) is empty or negative", b.Begin(), b.End())
	}
	if d.HasText() && b.End() > len(d.runes) {
		return apperrors.Newf(apperrors.ErrOffsetOutOfRange, "document.validate",
			"span [%d,%d) exceeds document length %d", b.Begin(), b.End(), len(d.runes))
	}
	return nil
}

func errNoText(op string) error {
	return apperrors.New(apperrors.ErrTextUnavailable, op, "no document text set")
}
