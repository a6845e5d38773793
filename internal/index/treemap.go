package index

import (
	"cmp"
	"fmt"
	"iter"

	"github.com/tidwall/btree"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/annotation"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/index/compare"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/index/termgen"
)

type bucket[K any, E any] struct {
	key   K
	elems []E
}

// TreeMap is the ordered counterpart of HashMap. Keys live in a B-tree
// ordered by a comparator, which enables SearchFuzzy.
//
// A key comparing equal to a present key is filed into that key's bucket.
// The comparator therefore has to be consistent for the index keys among
// themselves; search keys may compare equal to several index keys, which is
// how compare.PackedOverlap finds every token overlapping a probe span.
type TreeMap[K any, E annotation.Bounded] struct {
	lifecycle
	cmp         compare.Func[K]
	indexTerms  termgen.Generator[K]
	searchTerms termgen.Generator[K]
	tree        *btree.BTreeG[*bucket[K, E]]
	count       int
}

func NewTreeMap[K any, E annotation.Bounded](cmp compare.Func[K], indexTerms, searchTerms termgen.Generator[K]) *TreeMap[K, E] {
	return &TreeMap[K, E]{
		lifecycle:   lifecycle{name: "treemap"},
		cmp:         cmp,
		indexTerms:  indexTerms,
		searchTerms: searchTerms,
		tree: newTree[*bucket[K, E]](func(a, b *bucket[K, E]) int {
			return cmp(a.key, b.key)
		}),
	}
}

// NewOrderedTreeMap orders keys naturally.
func NewOrderedTreeMap[K cmp.Ordered, E annotation.Bounded](indexTerms, searchTerms termgen.Generator[K]) *TreeMap[K, E] {
	return NewTreeMap[K, E](compare.Ordered[K](), indexTerms, searchTerms)
}

// Index appends e to the bucket of every key the index-term generator
// derives from it.
func (m *TreeMap[K, E]) Index(e E) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	keys, err := m.indexTerms(e)
	if err != nil {
		return fmt.Errorf("deriving index terms for [%d,%d): %w", e.Begin(), e.End(), err)
	}
	for _, k := range keys {
		if b, ok := m.tree.Get(&bucket[K, E]{key: k}); ok {
			b.elems = append(b.elems, e)
			continue
		}
		m.tree.Set(&bucket[K, E]{key: k, elems: []E{e}})
	}
	m.count++
	return nil
}

// Add is Index.
func (m *TreeMap[K, E]) Add(e E) error {
	return m.Index(e)
}

func (m *TreeMap[K, E]) Freeze() {
	m.frozen = true
}

func (m *TreeMap[K, E]) Melt() {
	m.frozen = false
}

// Len returns the number of indexed spans.
func (m *TreeMap[K, E]) Len() int {
	return m.count
}

// Keys returns the number of distinct keys.
func (m *TreeMap[K, E]) Keys() int {
	return m.tree.Len()
}

// Search yields the buckets of the search terms derived from probe, each
// resolved by an exact tree lookup.
func (m *TreeMap[K, E]) Search(probe annotation.Bounded) (iter.Seq[E], error) {
	keys, err := m.terms(probe)
	if err != nil {
		return nil, err
	}
	return m.SearchKeys(keys...)
}

// SearchKeys yields the buckets of the given keys in order.
func (m *TreeMap[K, E]) SearchKeys(keys ...K) (iter.Seq[E], error) {
	if err := m.checkSearchable(); err != nil {
		return nil, err
	}
	return func(yield func(E) bool) {
		for _, k := range keys {
			b, ok := m.tree.Get(&bucket[K, E]{key: k})
			if !ok {
				continue
			}
			if !yieldAll(b.elems, yield) {
				return
			}
		}
	}, nil
}

// GetFirst returns the first element Search would yield.
func (m *TreeMap[K, E]) GetFirst(probe annotation.Bounded) (E, bool, error) {
	seq, err := m.Search(probe)
	if err != nil {
		var zero E
		return zero, false, err
	}
	return head(seq)
}

// SearchFuzzy is SearchFuzzyKey for every search term derived from probe,
// concatenated in term order.
func (m *TreeMap[K, E]) SearchFuzzy(probe annotation.Bounded) (iter.Seq[E], error) {
	keys, err := m.terms(probe)
	if err != nil {
		return nil, err
	}
	return func(yield func(E) bool) {
		for _, k := range keys {
			if !m.fuzzy(k, yield) {
				return
			}
		}
	}, nil
}

// SearchFuzzyKey yields the buckets of every key comparing equal to k. If
// there is none it yields the buckets of the nearest key below k and the
// nearest key above k, whichever exist.
func (m *TreeMap[K, E]) SearchFuzzyKey(k K) (iter.Seq[E], error) {
	if err := m.checkSearchable(); err != nil {
		return nil, err
	}
	return func(yield func(E) bool) {
		m.fuzzy(k, yield)
	}, nil
}

func (m *TreeMap[K, E]) fuzzy(k K, yield func(E) bool) bool {
	probe := &bucket[K, E]{key: k}
	var lower, higher *bucket[K, E]
	m.tree.Descend(probe, func(b *bucket[K, E]) bool {
		if m.cmp(b.key, k) < 0 {
			lower = b
			return false
		}
		return true
	})

	if _, ok := m.tree.Get(probe); ok {
		more := true
		visit := func(b *bucket[K, E]) bool {
			c := m.cmp(b.key, k)
			switch {
			case c < 0:
				return true
			case c > 0:
				return false
			}
			more = yieldAll(b.elems, yield)
			return more
		}
		if lower != nil {
			m.tree.Ascend(lower, visit)
		} else {
			m.tree.Scan(visit)
		}
		return more
	}

	m.tree.Ascend(probe, func(b *bucket[K, E]) bool {
		if m.cmp(b.key, k) > 0 {
			higher = b
			return false
		}
		return true
	})
	if lower != nil && !yieldAll(lower.elems, yield) {
		return false
	}
	if higher != nil && !yieldAll(higher.elems, yield) {
		return false
	}
	return true
}

func (m *TreeMap[K, E]) terms(probe annotation.Bounded) ([]K, error) {
	if err := m.checkSearchable(); err != nil {
		return nil, err
	}
	keys, err := m.searchTerms(probe)
	if err != nil {
		return nil, fmt.Errorf("deriving search terms for [%d,%d): %w", probe.Begin(), probe.End(), err)
	}
	return keys, nil
}

func yieldAll[E any](elems []E, yield func(E) bool) bool {
	for _, e := range elems {
		if !yield(e) {
			return false
		}
	}
	return true
}
