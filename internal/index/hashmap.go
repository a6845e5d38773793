package index

import (
	"fmt"
	"iter"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/annotation"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/index/termgen"
)

// HashMap indexes spans under the keys produced by an index-term generator
// and looks them up with the keys of a search-term generator. Both
// generators must produce keys of the same key space.
type HashMap[K comparable, E annotation.Bounded] struct {
	lifecycle
	indexTerms  termgen.Generator[K]
	searchTerms termgen.Generator[K]
	buckets     map[K][]E
	count       int
}

func NewHashMap[K comparable, E annotation.Bounded](indexTerms, searchTerms termgen.Generator[K]) *HashMap[K, E] {
	return &HashMap[K, E]{
		lifecycle:   lifecycle{name: "hashmap"},
		indexTerms:  indexTerms,
		searchTerms: searchTerms,
		buckets:     make(map[K][]E),
	}
}

// Index appends e to the bucket of every key the index-term generator
// derives from it. Keys are derived before anything is inserted, so a
// generator failure leaves the index unchanged.
func (m *HashMap[K, E]) Index(e E) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	keys, err := m.indexTerms(e)
	if err != nil {
		return fmt.Errorf("deriving index terms for [%d,%d): %w", e.Begin(), e.End(), err)
	}
	for _, k := range keys {
		m.buckets[k] = append(m.buckets[k], e)
	}
	m.count++
	return nil
}

// Add is Index.
func (m *HashMap[K, E]) Add(e E) error {
	return m.Index(e)
}

func (m *HashMap[K, E]) Freeze() {
	m.frozen = true
}

func (m *HashMap[K, E]) Melt() {
	m.frozen = false
}

// Len returns the number of indexed spans.
func (m *HashMap[K, E]) Len() int {
	return m.count
}

// Keys returns the number of distinct keys.
func (m *HashMap[K, E]) Keys() int {
	return len(m.buckets)
}

// Search yields the union of the buckets of every search term derived from
// probe, bucket by bucket in term order. Spans indexed under several of the
// terms are yielded once per term.
func (m *HashMap[K, E]) Search(probe annotation.Bounded) (iter.Seq[E], error) {
	if err := m.checkSearchable(); err != nil {
		return nil, err
	}
	keys, err := m.searchTerms(probe)
	if err != nil {
		return nil, fmt.Errorf("deriving search terms for [%d,%d): %w", probe.Begin(), probe.End(), err)
	}
	return m.SearchKeys(keys...)
}

// SearchKeys yields the buckets of the given keys in order.
func (m *HashMap[K, E]) SearchKeys(keys ...K) (iter.Seq[E], error) {
	if err := m.checkSearchable(); err != nil {
		return nil, err
	}
	return func(yield func(E) bool) {
		for _, k := range keys {
			for _, e := range m.buckets[k] {
				if !yield(e) {
					return
				}
			}
		}
	}, nil
}

// GetFirst returns the first element Search would yield.
func (m *HashMap[K, E]) GetFirst(probe annotation.Bounded) (E, bool, error) {
	seq, err := m.Search(probe)
	if err != nil {
		var zero E
		return zero, false, err
	}
	return head(seq)
}

func head[E any](seq iter.Seq[E]) (E, bool, error) {
	for e := range seq {
		return e, true, nil
	}
	var zero E
	return zero, false, nil
}
