package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/kafka"
)

type fakeStore struct {
	byKey map[string]*ingestion.IngestResponse
	saved []ingestion.AnnotatedDocument
	// makes SaveDocument report a lost insert race
	conflict bool
}

func (f *fakeStore) SaveDocument(_ context.Context, doc *ingestion.AnnotatedDocument, key string) (bool, error) {
	if f.conflict {
		return false, nil
	}
	f.saved = append(f.saved, *doc)
	if key != "" {
		f.byKey[key] = &ingestion.IngestResponse{DocumentID: doc.DocumentID, Status: ingestion.StatusPending}
	}
	return true, nil
}

func (f *fakeStore) FindByIdempotencyKey(_ context.Context, key string) (*ingestion.IngestResponse, error) {
	return f.byKey[key], nil
}

type fakeProducer struct {
	events []kafka.Event
	err    error
}

func (f *fakeProducer) Publish(_ context.Context, e kafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func newPublisher(store *fakeStore, prod *fakeProducer) *Publisher {
	p := New(store, prod)
	n := 0
	p.newID = func() string {
		n++
		return []string{"", "id-1", "id-2", "id-3"}[n]
	}
	return p
}

func TestIngest(t *testing.T) {
	store := &fakeStore{byKey: map[string]*ingestion.IngestResponse{}}
	prod := &fakeProducer{}
	p := newPublisher(store, prod)

	req := &ingestion.IngestRequest{
		Text:           "IL-2 binds.",
		Annotations:    []ingestion.Annotation{{Begin: 0, End: 4, Type: "entity"}},
		IdempotencyKey: "k1",
	}
	resp, err := p.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if resp.DocumentID != "id-1" || resp.Status != ingestion.StatusPending {
		t.Errorf("resp = %+v", resp)
	}
	if len(prod.events) != 1 || prod.events[0].Key != "id-1" {
		t.Fatalf("events = %+v", prod.events)
	}
	ev, ok := prod.events[0].Value.(ingestion.DocumentEvent)
	if !ok || ev.Text != req.Text || ev.IngestedAt.IsZero() {
		t.Errorf("event value = %+v", prod.events[0].Value)
	}

	again, err := p.Ingest(context.Background(), req)
	if err != nil || again.DocumentID != "id-1" {
		t.Errorf("repeated key = %+v, %v; want the first document", again, err)
	}
	if len(store.saved) != 1 || len(prod.events) != 1 {
		t.Errorf("repeated key must not store or publish again")
	}
}

func TestIngest_PublishFailureStillAccepted(t *testing.T) {
	store := &fakeStore{byKey: map[string]*ingestion.IngestResponse{}}
	p := newPublisher(store, &fakeProducer{err: errors.New("no brokers")})
	resp, err := p.Ingest(context.Background(), &ingestion.IngestRequest{Text: "x"})
	if err != nil || resp.Status != ingestion.StatusPending {
		t.Errorf("resp = %+v, err = %v", resp, err)
	}
}

func TestIngest_LostRace(t *testing.T) {
	store := &fakeStore{byKey: map[string]*ingestion.IngestResponse{}, conflict: true}
	p := newPublisher(store, &fakeProducer{})
	if _, err := p.Ingest(context.Background(), &ingestion.IngestRequest{Text: "x", IdempotencyKey: "k"}); err == nil {
		t.Error("an insert that stored nothing and has no winner must fail")
	}

	store.byKey["k"] = &ingestion.IngestResponse{DocumentID: "winner", Status: ingestion.StatusProcessed}
	// the pre-check finds the winner
	resp, err := p.Ingest(context.Background(), &ingestion.IngestRequest{Text: "x", IdempotencyKey: "k"})
	if err != nil || resp.DocumentID != "winner" {
		t.Errorf("resp = %+v, %v", resp, err)
	}
}
