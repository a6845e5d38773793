// Package publisher persists submitted documents to PostgreSQL and publishes
// them to Kafka for processing. Submissions carrying an idempotency key are
// stored at most once.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/kafka"
)

// Store is the persistence the publisher needs.
type Store interface {
	SaveDocument(ctx context.Context, doc *ingestion.AnnotatedDocument, idempotencyKey string) (bool, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*ingestion.IngestResponse, error)
}

// Publisher coordinates document persistence and Kafka event production.
type Publisher struct {
	store    Store
	producer kafka.Publisher
	newID    func() string
	logger   *slog.Logger
}

// New creates a Publisher with the given store and Kafka producer.
func New(store Store, producer kafka.Publisher) *Publisher {
	return &Publisher{
		store:    store,
		producer: producer,
		newID:    uuid.NewString,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Ingest stores the document under a fresh id and publishes a DocumentEvent.
// A known idempotency key returns the earlier submission instead.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	if req.IdempotencyKey != "" {
		existing, err := p.store.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("checking idempotency key: %w", err)
		}
		if existing != nil {
			p.logger.Info("duplicate ingestion detected",
				"idempotency_key", req.IdempotencyKey,
				"existing_id", existing.DocumentID,
			)
			return existing, nil
		}
	}

	doc := ingestion.AnnotatedDocument{
		DocumentID:  p.newID(),
		Text:        req.Text,
		Annotations: req.Annotations,
	}
	created, err := p.store.SaveDocument(ctx, &doc, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}
	if !created {
		// a concurrent request with the same key won the insert
		existing, err := p.store.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("checking idempotency key: %w", err)
		}
		if existing == nil {
			return nil, apperrors.Newf(apperrors.ErrInternal, "publisher.ingest", "document %s was not stored", doc.DocumentID)
		}
		return existing, nil
	}

	event := kafka.Event{
		Key: doc.DocumentID,
		Value: ingestion.DocumentEvent{
			AnnotatedDocument: doc,
			IngestedAt:        time.Now().UTC(),
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		p.logger.Error("failed to publish to kafka, document stuck in PENDING",
			"doc_id", doc.DocumentID,
			"error", err,
		)
	}
	return &ingestion.IngestResponse{
		DocumentID: doc.DocumentID,
		Status:     ingestion.StatusPending,
	}, nil
}
