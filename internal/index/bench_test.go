package index

import (
	"math/rand/v2"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/annotation"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/index/compare"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/index/termgen"
)

// benchTokens lays out n adjacent tokens of 1-8 characters separated by a
// space, the shape of a tokenized document.
func benchTokens(n int) []span {
	rng := rand.New(rand.NewPCG(42, 42))
	out := make([]span, n)
	pos := 0
	for i := range out {
		l := 1 + rng.IntN(8)
		out[i] = &annotation.Span[string]{Start: pos, Stop: pos + l}
		pos += l + 1
	}
	return out
}

func drain(seq func(func(span) bool)) int {
	n := 0
	for range seq {
		n++
	}
	return n
}

// BenchmarkCoverFreeze measures build plus freeze over 10 000 tokens.
func BenchmarkCoverFreeze(b *testing.B) {
	tokens := benchTokens(10000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Build[span](NewCover[span](), tokens); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCoverSearch measures sentence-sized containment queries.
func BenchmarkCoverSearch(b *testing.B) {
	tokens := benchTokens(10000)
	c, _ := Build[span](NewCover[span](), tokens)
	last := tokens[len(tokens)-1].End()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		begin := (i * 97) % last
		seq, _ := c.Search(begin, begin+120)
		drain(seq)
	}
}

// BenchmarkOverlapSearch measures entity-sized overlap queries.
func BenchmarkOverlapSearch(b *testing.B) {
	tokens := benchTokens(10000)
	o, _ := Build[span](NewOverlap[span](), tokens)
	last := tokens[len(tokens)-1].End()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		begin := (i * 97) % last
		seq, _ := o.SearchRange(begin, begin+25)
		drain(seq)
	}
}

// BenchmarkOverlapSearchParallel measures concurrent reads of one frozen
// index.
func BenchmarkOverlapSearchParallel(b *testing.B) {
	tokens := benchTokens(10000)
	o, _ := Build[span](NewOverlap[span](), tokens)
	last := tokens[len(tokens)-1].End()
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			begin := (i * 131) % last
			seq, _ := o.SearchRange(begin, begin+25)
			drain(seq)
			i++
		}
	})
}

// BenchmarkTreeMapFuzzy measures token alignment through packed offsets.
func BenchmarkTreeMapFuzzy(b *testing.B) {
	tokens := benchTokens(10000)
	offsets := termgen.Offsets()
	m, _ := Build[span](NewTreeMap[int64, span](compare.PackedOverlap(), offsets, offsets), tokens)
	last := tokens[len(tokens)-1].End()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		begin := (i * 97) % last
		seq, _ := m.SearchFuzzy(annotation.Range{From: begin, To: begin + 25})
		drain(seq)
	}
}

// BenchmarkSetSearch measures neighbourhood queries with the overlap
// comparator.
func BenchmarkSetSearch(b *testing.B) {
	tokens := benchTokens(10000)
	s, _ := Build[span](NewSet(compare.Overlap[span]()), tokens)
	last := tokens[len(tokens)-1].End()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		begin := (i * 97) % last
		seq, _ := s.Search(&annotation.Span[string]{Start: begin, Stop: begin + 25})
		drain(seq)
	}
}
