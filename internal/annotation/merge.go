package annotation

import "iter"

// Merge interleaves several annotation streams into one. With sorted set,
// every input must already be ordered by begin offset and the output is
// ordered by begin offset as well; ties go to the earlier input. Without
// sorting the inputs are simply concatenated. A non-nil covering span
// restricts the output to annotations it covers.
func Merge[E Bounded](sorted bool, covering Bounded, seqs ...iter.Seq[E]) iter.Seq[E] {
	keep := func(e E) bool {
		return covering == nil || Covers(covering, e)
	}
	if !sorted {
		return func(yield func(E) bool) {
			for _, seq := range seqs {
				for e := range seq {
					if keep(e) && !yield(e) {
						return
					}
				}
			}
		}
	}
	return func(yield func(E) bool) {
		type cursor struct {
			next func() (E, bool)
			cur  E
			ok   bool
		}
		cursors := make([]*cursor, 0, len(seqs))
		for _, seq := range seqs {
			next, stop := iter.Pull(seq)
			defer stop()
			c := &cursor{next: next}
			c.cur, c.ok = next()
			cursors = append(cursors, c)
		}
		for {
			var best *cursor
			for _, c := range cursors {
				if c.ok && (best == nil || c.cur.Begin() < best.cur.Begin()) {
					best = c
				}
			}
			if best == nil {
				return
			}
			e := best.cur
			best.cur, best.ok = best.next()
			if keep(e) && !yield(e) {
				return
			}
		}
	}
}
