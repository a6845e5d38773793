package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/processor"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/redis"
)

type fakeBackend struct {
	mu   sync.Mutex
	data map[string]string
	err  error
	gets atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: make(map[string]string)}
}

func (f *fakeBackend) Get(_ context.Context, key string) (string, error) {
	f.gets.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (f *fakeBackend) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.data[key] = string(value.([]byte))
	return nil
}

func (f *fakeBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			delete(f.data, k)
			n++
		}
	}
	return n, nil
}

func document(id string) *ingestion.AnnotatedDocument {
	return &ingestion.AnnotatedDocument{
		DocumentID: id,
		Text:       "IL-2 binds.",
		Annotations: []ingestion.Annotation{
			{ID: "t1", Begin: 0, End: 4, Type: "token"},
			{ID: "e1", Begin: 0, End: 4, Type: "entity", Attributes: map[string]string{"b": "2", "a": "1"}},
		},
	}
}

func TestKey(t *testing.T) {
	a := document("d1")
	b := document("d2")
	b.Annotations[0], b.Annotations[1] = b.Annotations[1], b.Annotations[0]
	if Key(a) != Key(b) {
		t.Error("with explicit ids the key must ignore document id and annotation order")
	}
	if !strings.HasPrefix(Key(a), keyPrefix) {
		t.Errorf("key %q lacks prefix", Key(a))
	}
	c := document("d1")
	c.Text = "IL-3 binds."
	if Key(a) == Key(c) {
		t.Error("different text must change the key")
	}
}

func TestKey_DefaultedIDsFollowOrder(t *testing.T) {
	doc := func(id string, anns ...ingestion.Annotation) *ingestion.AnnotatedDocument {
		return &ingestion.AnnotatedDocument{DocumentID: id, Text: "alpha beta", Annotations: anns}
	}
	alpha := ingestion.Annotation{Begin: 0, End: 5, Type: "entity"}
	beta := ingestion.Annotation{Begin: 6, End: 10, Type: "entity"}

	if Key(doc("d1", alpha, beta)) == Key(doc("d2", beta, alpha)) {
		t.Error("reordering id-less annotations renames them, so the key must change")
	}
	if Key(doc("d1", alpha, beta)) != Key(doc("d2", alpha, beta)) {
		t.Error("same annotations in the same order must share a key")
	}
}

func TestGetOrCompute_DefaultedIDsNotShared(t *testing.T) {
	c := New(newFakeBackend(), time.Minute, metrics.New(prometheus.NewRegistry()))
	p := processor.New(config.Default().Processor, metrics.New(prometheus.NewRegistry()))
	ctx := context.Background()

	alpha := ingestion.Annotation{Begin: 0, End: 5, Type: "entity"}
	beta := ingestion.Annotation{Begin: 6, End: 10, Type: "entity"}
	first := &ingestion.AnnotatedDocument{DocumentID: "d1", Text: "alpha beta", Annotations: []ingestion.Annotation{alpha, beta}}
	second := &ingestion.AnnotatedDocument{DocumentID: "d2", Text: "alpha beta", Annotations: []ingestion.Annotation{beta, alpha}}

	if _, _, err := c.GetOrCompute(ctx, first, func() (*processor.Result, error) { return p.Process(ctx, first) }); err != nil {
		t.Fatalf("first: %v", err)
	}
	res, cached, err := c.GetOrCompute(ctx, second, func() (*processor.Result, error) { return p.Process(ctx, second) })
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if cached {
		t.Error("second document must not reuse the first result")
	}
	for _, e := range res.Entities {
		if e.ID == "a0" && e.Text != "beta" {
			t.Errorf("a0 of the second document covers %q, want beta", e.Text)
		}
	}
}

func TestGetOrCompute(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := New(newFakeBackend(), time.Minute, m)
	ctx := context.Background()

	var computed atomic.Int32
	compute := func() (*processor.Result, error) {
		computed.Add(1)
		return &processor.Result{DocumentID: "d1", Condensed: "x"}, nil
	}

	res, cached, err := c.GetOrCompute(ctx, document("d1"), compute)
	if err != nil || cached || res.Condensed != "x" {
		t.Fatalf("first call = %+v, %v, %v", res, cached, err)
	}
	res, cached, err = c.GetOrCompute(ctx, document("d2"), compute)
	if err != nil || !cached {
		t.Fatalf("second call = %v, %v; want cached", cached, err)
	}
	if res.DocumentID != "d2" {
		t.Errorf("cached result must carry the requesting document id, got %q", res.DocumentID)
	}
	if computed.Load() != 1 {
		t.Errorf("computed %d times, want 1", computed.Load())
	}
	if got := testutil.ToFloat64(m.CacheHitsTotal); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, cached, _ := c.GetOrCompute(ctx, document("d1"), compute); cached {
		t.Error("invalidated entry must be recomputed")
	}
}

func TestGetOrCompute_Error(t *testing.T) {
	c := New(newFakeBackend(), time.Minute, metrics.New(prometheus.NewRegistry()))
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), document("d1"), func() (*processor.Result, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestBackendFailuresOpenCircuit(t *testing.T) {
	backend := newFakeBackend()
	backend.err = errors.New("connection refused")
	m := metrics.New(prometheus.NewRegistry())
	c := New(backend, time.Minute, m)
	ctx := context.Background()

	compute := func() (*processor.Result, error) { return &processor.Result{DocumentID: "d1"}, nil }
	for i := 0; i < 10; i++ {
		if _, _, err := c.GetOrCompute(ctx, document("d1"), compute); err != nil {
			t.Fatalf("redis failures must not fail processing: %v", err)
		}
	}
	if c.Healthy() {
		t.Error("circuit should be open")
	}
	if got := testutil.ToFloat64(m.CacheCircuitState); got != 1 {
		t.Errorf("circuit gauge = %v, want 1", got)
	}
	// 5 failures trip the breaker; later lookups never reach the backend
	if got := backend.gets.Load(); got > 5 {
		t.Errorf("backend saw %d gets after the circuit opened", got)
	}
}
