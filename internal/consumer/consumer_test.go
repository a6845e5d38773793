package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/processor"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/resilience"
)

type memStore struct {
	mu      sync.Mutex
	docs    map[string]*ingestion.AnnotatedDocument
	results map[string]*processor.Result
	status  map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		docs:    make(map[string]*ingestion.AnnotatedDocument),
		results: make(map[string]*processor.Result),
		status:  make(map[string]string),
	}
}

func (s *memStore) SaveDocument(_ context.Context, doc *ingestion.AnnotatedDocument, _ string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.DocumentID]; ok {
		return false, nil
	}
	s.docs[doc.DocumentID] = doc
	s.status[doc.DocumentID] = ingestion.StatusPending
	return true, nil
}

func (s *memStore) SaveResult(_ context.Context, res *processor.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.DocumentID] = res
	s.status[res.DocumentID] = ingestion.StatusProcessed
	return nil
}

func (s *memStore) MarkStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = status
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	events   []kafka.Event
	failures int
}

func (p *recordingPublisher) Publish(_ context.Context, event kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker not available")
	}
	p.events = append(p.events, event)
	return nil
}

func newHandler(t *testing.T, pub *recordingPublisher) (*Handler, *memStore, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	store := newMemStore()
	proc := processor.New(config.Default().Processor, m)
	h := New(proc, store, nil, pub, m).WithRetry(resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
	})
	return h, store, m
}

func event(t *testing.T, doc ingestion.AnnotatedDocument) []byte {
	t.Helper()
	data, err := json.Marshal(ingestion.DocumentEvent{AnnotatedDocument: doc, IngestedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func sample() ingestion.AnnotatedDocument {
	return ingestion.AnnotatedDocument{
		DocumentID: "doc-7",
		Text:       "IL-2 binds IL-2R.",
		Annotations: []ingestion.Annotation{
			{ID: "t1", Begin: 0, End: 4, Type: "token"},
			{ID: "t2", Begin: 5, End: 10, Type: "token"},
			{ID: "t3", Begin: 11, End: 16, Type: "token"},
			{ID: "e1", Begin: 0, End: 4, Type: "entity"},
			{ID: "e2", Begin: 11, End: 16, Type: "entity"},
			{ID: "e3", Begin: 11, End: 15, Type: "entity"},
		},
	}
}

func TestHandleMessage(t *testing.T) {
	pub := &recordingPublisher{failures: 1}
	h, store, m := newHandler(t, pub)

	if err := h.HandleMessage(context.Background(), []byte("doc-7"), event(t, sample())); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if store.status["doc-7"] != ingestion.StatusProcessed {
		t.Errorf("status = %s", store.status["doc-7"])
	}
	res := store.results["doc-7"]
	if res == nil || len(res.Entities) != 2 {
		t.Fatalf("stored result = %+v", res)
	}
	if len(pub.events) != 1 || pub.events[0].Key != "doc-7" {
		t.Errorf("published %+v", pub.events)
	}
	if got := testutil.ToFloat64(m.PublishFailuresTotal); got != 0 {
		t.Errorf("publish failures = %v, a retried publish must not count", got)
	}
	if got := testutil.ToFloat64(m.PublishRetriesTotal); got != 1 {
		t.Errorf("publish retries = %v, want 1", got)
	}
}

func TestHandleMessage_Malformed(t *testing.T) {
	h, _, m := newHandler(t, &recordingPublisher{})
	err := h.HandleMessage(context.Background(), nil, []byte(`{"document_id":`))
	if !errors.Is(err, apperrors.ErrInvalidInput) || apperrors.Retryable(err) {
		t.Errorf("err = %v, want non-retryable invalid input", err)
	}
	if got := testutil.ToFloat64(m.DocumentsTotal.WithLabelValues("invalid")); got != 1 {
		t.Errorf("invalid counter = %v", got)
	}
}

func TestHandleMessage_InvalidDocumentMarkedFailed(t *testing.T) {
	h, store, _ := newHandler(t, &recordingPublisher{})
	doc := sample()
	doc.Annotations = append(doc.Annotations, ingestion.Annotation{Begin: 3, End: 99, Type: "token"})
	err := h.HandleMessage(context.Background(), nil, event(t, doc))
	if err == nil || apperrors.Retryable(err) {
		t.Fatalf("err = %v, want non-retryable", err)
	}
	if store.status["doc-7"] != ingestion.StatusFailed {
		t.Errorf("status = %s, want FAILED", store.status["doc-7"])
	}
}

func TestHandleMessage_PublishExhausted(t *testing.T) {
	pub := &recordingPublisher{failures: 10}
	h, store, m := newHandler(t, pub)
	err := h.HandleMessage(context.Background(), nil, event(t, sample()))
	if err == nil || !apperrors.Retryable(err) {
		t.Fatalf("err = %v, want retryable publish error", err)
	}
	if store.results["doc-7"] == nil {
		t.Error("result must be stored before publishing")
	}
	if got := testutil.ToFloat64(m.PublishFailuresTotal); got != 1 {
		t.Errorf("publish failures = %v", got)
	}
}
