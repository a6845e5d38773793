package store

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/processor"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/postgres"
)

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *Store {
	t.Helper()
	port, err := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	if err != nil {
		t.Fatalf("TEST_POSTGRES_PORT: %v", err)
	}
	db, err := postgres.New(config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "spanindex_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "spanindex"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Skipf("skipping store test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := New(db)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestStore_DocumentRoundTrip(t *testing.T) {
	s := skipIfNoPostgres(t)
	ctx := context.Background()

	key := "idem-" + uuid.NewString()
	doc := &ingestion.AnnotatedDocument{
		DocumentID:  uuid.NewString(),
		Text:        "IL-2 binds.",
		Annotations: []ingestion.Annotation{{ID: "e1", Begin: 0, End: 4, Type: "entity"}},
	}
	created, err := s.SaveDocument(ctx, doc, key)
	if err != nil || !created {
		t.Fatalf("SaveDocument = %v, %v", created, err)
	}
	created, err = s.SaveDocument(ctx, doc, key)
	if err != nil || created {
		t.Fatalf("second SaveDocument = %v, %v; want not created", created, err)
	}

	existing, err := s.FindByIdempotencyKey(ctx, key)
	if err != nil || existing == nil || existing.DocumentID != doc.DocumentID {
		t.Fatalf("FindByIdempotencyKey = %+v, %v", existing, err)
	}
	if missing, err := s.FindByIdempotencyKey(ctx, "idem-"+uuid.NewString()); err != nil || missing != nil {
		t.Errorf("unknown key = %+v, %v", missing, err)
	}

	loaded, status, err := s.LoadDocument(ctx, doc.DocumentID)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if status != ingestion.StatusPending || loaded.Text != doc.Text || len(loaded.Annotations) != 1 {
		t.Errorf("loaded %+v with status %s", loaded, status)
	}

	if _, _, err := s.LoadDocument(ctx, uuid.NewString()); !errors.Is(err, apperrors.ErrDocumentNotFound) {
		t.Errorf("err = %v, want ErrDocumentNotFound", err)
	}
}

func TestStore_ResultRoundTrip(t *testing.T) {
	s := skipIfNoPostgres(t)
	ctx := context.Background()

	doc := &ingestion.AnnotatedDocument{DocumentID: uuid.NewString(), Text: "IL-2 binds."}
	if _, err := s.SaveDocument(ctx, doc, ""); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	entityID := "e-" + uuid.NewString()
	res := &processor.Result{
		DocumentID:  doc.DocumentID,
		Entities:    []processor.SpanRef{{ID: entityID, Type: "entity", Begin: 0, End: 4, Text: "IL-2"}},
		Dropped:     map[string][]string{"deduplicate": {"e9"}},
		ProcessedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := s.SaveResult(ctx, res); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := s.SaveResult(ctx, res); err != nil {
		t.Fatalf("SaveResult must replace: %v", err)
	}

	loaded, err := s.LoadResult(ctx, doc.DocumentID)
	if err != nil {
		t.Fatalf("LoadResult: %v", err)
	}
	if len(loaded.Entities) != 1 || loaded.Entities[0].Text != "IL-2" {
		t.Errorf("loaded %+v", loaded)
	}
	_, status, _ := s.LoadDocument(ctx, doc.DocumentID)
	if status != ingestion.StatusProcessed {
		t.Errorf("status = %s, want %s", status, ingestion.StatusProcessed)
	}

	ids, err := s.FindByEntity(ctx, entityID)
	if err != nil || len(ids) != 1 || ids[0] != doc.DocumentID {
		t.Errorf("FindByEntity = %v, %v", ids, err)
	}

	if err := s.MarkStatus(ctx, doc.DocumentID, ingestion.StatusFailed); err != nil {
		t.Fatalf("MarkStatus: %v", err)
	}
	if _, err := s.LoadResult(ctx, uuid.NewString()); !errors.Is(err, apperrors.ErrDocumentNotFound) {
		t.Errorf("err = %v, want ErrDocumentNotFound", err)
	}
}
