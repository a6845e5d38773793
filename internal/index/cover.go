package index

import (
	"iter"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/annotation"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/index/compare"
)

// Cover answers "which indexed spans lie completely inside this span",
// boundaries included. Use it for tokens of an entity, abbreviations inside
// a sentence and the like.
type Cover[E annotation.Bounded] struct {
	lifecycle
	elems []E
}

func NewCover[E annotation.Bounded]() *Cover[E] {
	return &Cover[E]{lifecycle: lifecycle{name: "cover"}}
}

// Add appends e. It fails once the index is frozen.
func (c *Cover[E]) Add(e E) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	c.elems = append(c.elems, e)
	return nil
}

// Freeze sorts the elements by begin offset and enables searching.
func (c *Cover[E]) Freeze() {
	slices.SortStableFunc(c.elems, compare.ByBegin[E]())
	c.frozen = true
}

// Melt allows further insertions.
func (c *Cover[E]) Melt() {
	c.frozen = false
}

func (c *Cover[E]) Len() int {
	return len(c.elems)
}

// Search returns the indexed spans e with begin <= e.Begin() and
// e.End() <= end, in begin order.
func (c *Cover[E]) Search(begin, end int) (iter.Seq[E], error) {
	if err := c.checkSearchable(); err != nil {
		return nil, err
	}
	if len(c.elems) == 0 {
		return empty[E](), nil
	}
	lower := insertionPoint(c.elems, beginOf[E], begin)
	upper := insertionPoint(c.elems, beginOf[E], end)
	if upper < lower {
		return empty[E](), nil
	}
	return window(c.elems, lower, upper, func(e E) bool {
		return e.End() <= end
	}), nil
}

// SearchSpan returns the indexed spans covered by b.
func (c *Cover[E]) SearchSpan(b annotation.Bounded) (iter.Seq[E], error) {
	return c.Search(b.Begin(), b.End())
}
