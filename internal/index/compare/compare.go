// Package compare holds the ordering strategies the indexes are built from.
//
// Overlap and PackedOverlap treat overlapping spans as equal. That relation
// is not transitive: A may overlap B and B overlap C while A and C are
// disjoint. Ordered structures keyed by it only give locally consistent
// neighbourhoods around a probe, never the full overlap closure.
package compare

import (
	"cmp"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/annotation"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/index/termgen"
)

// Func returns a negative number when a sorts before b, zero when they are
// equivalent and a positive number otherwise.
type Func[T any] func(a, b T) int

// Exact is zero only for identical offsets; otherwise it orders by begin and
// then by end.
func Exact[E annotation.Bounded]() Func[E] {
	return func(a, b E) int {
		return exact(a.Begin(), a.End(), b.Begin(), b.End())
	}
}

// ByBegin orders by begin offset only.
func ByBegin[E annotation.Bounded]() Func[E] {
	return func(a, b E) int {
		return cmp.Compare(a.Begin(), b.Begin())
	}
}

// ByEnd orders by end offset only.
func ByEnd[E annotation.Bounded]() Func[E] {
	return func(a, b E) int {
		return cmp.Compare(a.End(), b.End())
	}
}

// Overlap is zero when the spans overlap in any way and orders by begin
// offset otherwise.
func Overlap[E annotation.Bounded]() Func[E] {
	return func(a, b E) int {
		return overlap(a.Begin(), a.End(), b.Begin(), b.End())
	}
}

// PackedOverlap is Overlap for keys produced by termgen.Offsets.
func PackedOverlap() Func[int64] {
	return func(a, b int64) int {
		b1, e1 := termgen.UnpackOffsets(a)
		b2, e2 := termgen.UnpackOffsets(b)
		return overlap(b1, e1, b2, e2)
	}
}

// Ordered is the natural order of K.
func Ordered[K cmp.Ordered]() Func[K] {
	return cmp.Compare[K]
}

// Reverse inverts fn.
func Reverse[T any](fn Func[T]) Func[T] {
	return func(a, b T) int {
		return fn(b, a)
	}
}

func exact(b1, e1, b2, e2 int) int {
	if c := cmp.Compare(b1, b2); c != 0 {
		return c
	}
	return cmp.Compare(e1, e2)
}

func overlap(b1, e1, b2, e2 int) int {
	switch {
	case b1 <= b2 && e1 >= e2: // a contains b
		return 0
	case b2 <= b1 && e2 >= e1: // b contains a
		return 0
	case b2 < e1 && e1 < e2: // a ends inside b
		return 0
	case b2 < b1 && b1 < e2: // a begins inside b
		return 0
	}
	return exact(b1, e1, b2, e2)
}
