// Package consumer drives the processor from Kafka: every annotated document
// event is processed (or served from the result cache), stored, and the
// result published to the results topic.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/processor"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/tracing"
)

// Processor turns a document into a result.
type Processor interface {
	Process(ctx context.Context, doc *ingestion.AnnotatedDocument) (*processor.Result, error)
}

// Store is the persistence the handler needs.
type Store interface {
	SaveDocument(ctx context.Context, doc *ingestion.AnnotatedDocument, idempotencyKey string) (bool, error)
	SaveResult(ctx context.Context, res *processor.Result) error
	MarkStatus(ctx context.Context, id, status string) error
}

// Cache serves results of already processed content.
type Cache interface {
	GetOrCompute(ctx context.Context, doc *ingestion.AnnotatedDocument, compute func() (*processor.Result, error)) (*processor.Result, bool, error)
}

// Handler processes document events. The cache is optional.
type Handler struct {
	proc      Processor
	store     Store
	cache     Cache
	publisher kafka.Publisher
	retry     resilience.RetryConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(proc Processor, store Store, cache Cache, pub kafka.Publisher, m *metrics.Metrics) *Handler {
	return &Handler{
		proc:      proc,
		store:     store,
		cache:     cache,
		publisher: pub,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
		metrics: m,
		logger:  slog.Default().With("component", "span-consumer"),
	}
}

// WithRetry overrides the publish retry policy.
func (h *Handler) WithRetry(cfg resilience.RetryConfig) *Handler {
	h.retry = cfg
	return h
}

// HandleMessage is the kafka.MessageHandler of the service. Malformed and
// invalid documents fail with non-retryable errors so the consumer commits
// past them.
func (h *Handler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	event, err := kafka.DecodeJSON[ingestion.DocumentEvent](value)
	if err != nil {
		h.metrics.DocumentsTotal.WithLabelValues("invalid").Inc()
		h.logger.Error("failed to decode document event",
			"error", err,
			"key", string(key),
		)
		return err
	}
	doc := &event.AnnotatedDocument
	ctx = logger.WithDocumentID(ctx, doc.DocumentID)
	log := logger.FromContext(ctx)
	ctx, trace := tracing.StartTrace(ctx, "handle_document", doc.DocumentID)
	defer func() {
		trace.End()
		trace.Log(ctx, log)
	}()

	if _, err := h.store.SaveDocument(ctx, doc, ""); err != nil {
		return fmt.Errorf("registering document %s: %w", doc.DocumentID, err)
	}

	compute := func() (*processor.Result, error) { return h.proc.Process(ctx, doc) }
	var (
		res    *processor.Result
		cached bool
	)
	if h.cache != nil {
		res, cached, err = h.cache.GetOrCompute(ctx, doc, compute)
	} else {
		res, err = compute()
	}
	if err != nil {
		if markErr := h.store.MarkStatus(ctx, doc.DocumentID, ingestion.StatusFailed); markErr != nil {
			log.Warn("could not mark document failed", "error", markErr)
		}
		return fmt.Errorf("processing document %s: %w", doc.DocumentID, err)
	}
	if cached {
		h.metrics.DocumentsTotal.WithLabelValues("cached").Inc()
	}
	trace.SetAttr("cached", cached)

	if err := h.store.SaveResult(ctx, res); err != nil {
		return fmt.Errorf("storing result of %s: %w", doc.DocumentID, err)
	}

	retry := h.retry
	retry.OnRetry = func(int, error) { h.metrics.PublishRetriesTotal.Inc() }
	err = resilience.Retry(ctx, "publish-result", retry, func() error {
		return h.publisher.Publish(ctx, kafka.Event{Key: doc.DocumentID, Value: res})
	})
	if err != nil {
		h.metrics.PublishFailuresTotal.Inc()
		return fmt.Errorf("publishing result of %s: %w", doc.DocumentID, err)
	}

	log.Info("document processed",
		"cached", cached,
		"entities", len(res.Entities),
		"ingested_at", event.IngestedAt,
	)
	return nil
}
