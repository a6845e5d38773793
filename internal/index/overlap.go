package index

import (
	"iter"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/annotation"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/index/compare"
)

// Overlap answers "which indexed spans intersect this span in any way":
// embedded, covering or partially overlapping on either side.
type Overlap[E annotation.Bounded] struct {
	lifecycle
	byBegin []E
	byEnd   []E
}

func NewOverlap[E annotation.Bounded]() *Overlap[E] {
	return &Overlap[E]{lifecycle: lifecycle{name: "overlap"}}
}

// Add appends e. It fails once the index is frozen.
func (o *Overlap[E]) Add(e E) error {
	if err := o.checkMutable(); err != nil {
		return err
	}
	o.byBegin = append(o.byBegin, e)
	o.byEnd = append(o.byEnd, e)
	return nil
}

// Freeze sorts one copy of the elements by begin and the other by end.
func (o *Overlap[E]) Freeze() {
	slices.SortStableFunc(o.byBegin, compare.ByBegin[E]())
	slices.SortStableFunc(o.byEnd, compare.ByEnd[E]())
	o.frozen = true
}

// Melt allows further insertions.
func (o *Overlap[E]) Melt() {
	o.frozen = false
}

func (o *Overlap[E]) Len() int {
	return len(o.byBegin)
}

// Search returns every indexed span sharing at least one character with q.
// Results come either in begin or in end order, whichever scan was cheaper.
func (o *Overlap[E]) Search(q annotation.Bounded) (iter.Seq[E], error) {
	return o.SearchRange(q.Begin(), q.End())
}

// SearchRange is Search for a bare [begin, end) pair.
func (o *Overlap[E]) SearchRange(begin, end int) (iter.Seq[E], error) {
	if err := o.checkSearchable(); err != nil {
		return nil, err
	}
	if len(o.byBegin) == 0 {
		return empty[E](), nil
	}
	// Spans starting at or after end and spans ending at or before begin can
	// not overlap. Count both groups and scan whichever remainder is smaller.
	beginBeforeEnd := insertionPoint(o.byBegin, beginOf[E], end)
	endBeforeBegin := insertionPoint(o.byEnd, endOf[E], begin+1)

	if beginBeforeEnd < len(o.byEnd)-endBeforeBegin {
		return window(o.byBegin, 0, beginBeforeEnd, func(e E) bool {
			return e.End() > begin
		}), nil
	}
	return window(o.byEnd, endBeforeBegin, len(o.byEnd), func(e E) bool {
		return e.Begin() < end
	}), nil
}
