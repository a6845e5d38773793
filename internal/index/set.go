package index

import (
	"iter"

	"github.com/tidwall/btree"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/annotation"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/index/compare"
	apperrors "github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/errors"
)

// Set is an ordered set of spans keyed by a caller supplied comparator,
// usually compare.Overlap. Search returns the run of elements around a
// probe that compare equal to it.
//
// With a non-transitive comparator the run is a local neighbourhood of the
// probe in tree order, not the transitive closure of the relation.
type Set[E annotation.Bounded] struct {
	lifecycle
	cmp  compare.Func[E]
	tree *btree.BTreeG[E]
}

func NewSet[E annotation.Bounded](cmp compare.Func[E]) *Set[E] {
	return &Set[E]{
		lifecycle: lifecycle{name: "set"},
		cmp:       cmp,
		tree:      newTree(cmp),
	}
}

func newTree[T any](cmp compare.Func[T]) *btree.BTreeG[T] {
	return btree.NewBTreeGOptions(func(a, b T) bool {
		return cmp(a, b) < 0
	}, btree.Options{NoLocks: true})
}

// Add inserts e unless an element comparing equal to it is already present,
// in which case the present element is kept.
func (s *Set[E]) Add(e E) error {
	if err := s.checkMutable(); err != nil {
		return err
	}
	if _, ok := s.tree.Get(e); ok {
		return nil
	}
	s.tree.Set(e)
	return nil
}

// Freeze enables searching. The tree is always ordered, so there is nothing
// to finalize.
func (s *Set[E]) Freeze() {
	s.frozen = true
}

// Melt allows further insertions.
func (s *Set[E]) Melt() {
	s.frozen = false
}

func (s *Set[E]) Len() int {
	return s.tree.Len()
}

// Search yields the elements between the greatest element strictly below
// probe and the least element strictly above it. A missing neighbour on
// either side extends the run to the first or last element.
func (s *Set[E]) Search(probe E) (iter.Seq[E], error) {
	if err := s.checkSearchable(); err != nil {
		return nil, err
	}
	return func(yield func(E) bool) {
		s.run(probe, yield)
	}, nil
}

// SearchSubset is Search collected into a slice.
func (s *Set[E]) SearchSubset(probe E) ([]E, error) {
	seq, err := s.Search(probe)
	if err != nil {
		return nil, err
	}
	return Collect(seq), nil
}

func (s *Set[E]) run(probe E, yield func(E) bool) {
	lower, ok := s.lower(probe)
	visit := func(e E) bool {
		c := s.cmp(e, probe)
		switch {
		case c < 0:
			return true
		case c > 0:
			return false
		}
		return yield(e)
	}
	if ok {
		s.tree.Ascend(lower, visit)
		return
	}
	s.tree.Scan(visit)
}

// lower returns the greatest element strictly below probe.
func (s *Set[E]) lower(probe E) (E, bool) {
	var (
		found E
		ok    bool
	)
	s.tree.Descend(probe, func(e E) bool {
		if s.cmp(e, probe) < 0 {
			found, ok = e, true
			return false
		}
		return true
	})
	return found, ok
}

// Get returns the single element equal to probe. When the run around probe
// holds elements that do not compare equal to each other the match is
// ambiguous and Search should be used instead.
func (s *Set[E]) Get(probe E) (E, bool, error) {
	var zero E
	if err := s.checkSearchable(); err != nil {
		return zero, false, err
	}
	var (
		found E
		n     int
		err   error
	)
	s.run(probe, func(e E) bool {
		if n > 0 && s.cmp(found, e) != 0 {
			err = apperrors.Newf(apperrors.ErrAmbiguousMatch, "set.get",
				"multiple items match [%d,%d)", probe.Begin(), probe.End())
			return false
		}
		if n == 0 {
			found = e
		}
		n++
		return true
	})
	if err != nil {
		return zero, false, err
	}
	return found, n > 0, nil
}

// Contains reports whether an element equal to e is present.
func (s *Set[E]) Contains(e E) (bool, error) {
	if err := s.checkSearchable(); err != nil {
		return false, err
	}
	_, ok := s.tree.Get(e)
	return ok, nil
}

// Items yields every element in comparator order.
func (s *Set[E]) Items() (iter.Seq[E], error) {
	if err := s.checkSearchable(); err != nil {
		return nil, err
	}
	return func(yield func(E) bool) {
		s.tree.Scan(yield)
	}, nil
}
