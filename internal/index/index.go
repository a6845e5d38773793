// Package index implements the annotation span indexes: Cover (spans inside
// a query span), Overlap (spans intersecting a query span), Set (ordered set
// keyed by a comparator) and the HashMap and TreeMap key indexes.
//
// Every index follows the same two-phase discipline. While building, Add or
// Index inserts elements and nothing may be searched. Freeze finalizes the
// internal structures; afterwards searches are allowed, any further
// insertion fails with ErrFrozen, and any number of goroutines may search
// concurrently. Searching before Freeze fails with ErrNotFrozen. Melt turns
// a frozen index back into a building one and ends the concurrent-read
// guarantee immediately.
//
// Indexes store the elements they are given and never copy the document
// text. Element offsets must not change while an element is indexed.
package index

import (
	"iter"
	"slices"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/annotation"
	apperrors "github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/errors"
)

// Builder is the insertion side shared by all index variants.
type Builder[E any] interface {
	Add(e E) error
	Freeze()
	Melt()
	Frozen() bool
	Len() int
}

// lifecycle tracks the build/frozen phase of an index.
type lifecycle struct {
	name   string
	frozen bool
}

func (l *lifecycle) Frozen() bool { return l.frozen }

func (l *lifecycle) checkMutable() error {
	if l.frozen {
		return apperrors.New(apperrors.ErrFrozen, l.name+".add", "the index is frozen and accepts no further items")
	}
	return nil
}

func (l *lifecycle) checkSearchable() error {
	if !l.frozen {
		return apperrors.New(apperrors.ErrNotFrozen, l.name+".search", "freeze the index before searching")
	}
	return nil
}

// AddAll adds every element of seq to b, stopping at the first error.
func AddAll[E any](b Builder[E], seq iter.Seq[E]) error {
	for e := range seq {
		if err := b.Add(e); err != nil {
			return err
		}
	}
	return nil
}

// Build adds all elements and freezes the index.
func Build[E any, B Builder[E]](b B, elems []E) (B, error) {
	if err := AddAll[E](b, slices.Values(elems)); err != nil {
		return b, err
	}
	b.Freeze()
	return b, nil
}

// Collect drains a search result into a slice. A nil sequence yields nil.
func Collect[E any](seq iter.Seq[E]) []E {
	if seq == nil {
		return nil
	}
	return slices.Collect(seq)
}

func empty[E any]() iter.Seq[E] {
	return func(func(E) bool) {}
}

// window yields elems[from:to] filtered by keep.
func window[E any](elems []E, from, to int, keep func(E) bool) iter.Seq[E] {
	return func(yield func(E) bool) {
		for _, e := range elems[from:to] {
			if keep(e) && !yield(e) {
				return
			}
		}
	}
}

// insertionPoint returns the number of leading elements whose key is below
// value; elems must be sorted ascending by key.
func insertionPoint[E any](elems []E, key func(E) int, value int) int {
	return sort.Search(len(elems), func(i int) bool {
		return key(elems[i]) >= value
	})
}

func beginOf[E annotation.Bounded](e E) int { return e.Begin() }
func endOf[E annotation.Bounded](e E) int   { return e.End() }
