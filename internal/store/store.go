// Package store persists annotated documents and their processing results
// in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/processor"
	apperrors "github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/postgres"
)

// Schema is applied by Migrate. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id               TEXT PRIMARY KEY,
		idempotency_key  TEXT UNIQUE,
		text             TEXT NOT NULL,
		annotations      JSONB NOT NULL,
		annotation_count INTEGER NOT NULL,
		status           TEXT NOT NULL DEFAULT 'PENDING',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at     TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS span_results (
		document_id  TEXT PRIMARY KEY REFERENCES documents (id) ON DELETE CASCADE,
		result       JSONB NOT NULL,
		entity_ids   TEXT[] NOT NULL,
		dropped_ids  TEXT[] NOT NULL,
		processed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_status ON documents (status)`,
}

// Store reads and writes documents and results.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "store"),
	}
}

// Migrate creates the tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.Migrate(ctx, Schema); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// SaveDocument inserts doc as PENDING. It reports false when a document
// with the same id or idempotency key already exists; the stored row is left
// untouched in that case.
func (s *Store) SaveDocument(ctx context.Context, doc *ingestion.AnnotatedDocument, idempotencyKey string) (bool, error) {
	annotations, err := json.Marshal(doc.Annotations)
	if err != nil {
		return false, fmt.Errorf("encoding annotations: %w", err)
	}
	res, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO documents (id, idempotency_key, text, annotations, annotation_count, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING`,
		doc.DocumentID, nullableString(idempotencyKey), doc.Text, string(annotations), len(doc.Annotations), ingestion.StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("inserting document %s: %w", doc.DocumentID, describe(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting document %s: %w", doc.DocumentID, err)
	}
	return n == 1, nil
}

// FindByIdempotencyKey returns the document registered under key, or nil
// if there is none.
func (s *Store) FindByIdempotencyKey(ctx context.Context, key string) (*ingestion.IngestResponse, error) {
	var resp ingestion.IngestResponse
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, status FROM documents WHERE idempotency_key = $1`, key,
	).Scan(&resp.DocumentID, &resp.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying by idempotency key: %w", err)
	}
	return &resp, nil
}

// LoadDocument returns a stored document and its status.
func (s *Store) LoadDocument(ctx context.Context, id string) (*ingestion.AnnotatedDocument, string, error) {
	var (
		doc         = ingestion.AnnotatedDocument{DocumentID: id}
		annotations []byte
		status      string
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT text, annotations, status FROM documents WHERE id = $1`, id,
	).Scan(&doc.Text, &annotations, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", apperrors.Newf(apperrors.ErrDocumentNotFound, "store.load_document", "no document %q", id)
	}
	if err != nil {
		return nil, "", fmt.Errorf("loading document %s: %w", id, err)
	}
	if err := json.Unmarshal(annotations, &doc.Annotations); err != nil {
		return nil, "", fmt.Errorf("decoding annotations of %s: %w", id, err)
	}
	return &doc, status, nil
}

// SaveResult stores res and marks its document PROCESSED in one
// transaction. A previous result of the document is replaced.
func (s *Store) SaveResult(ctx context.Context, res *processor.Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	entityIDs := make([]string, 0, len(res.Entities))
	for _, e := range res.Entities {
		entityIDs = append(entityIDs, e.ID)
	}
	droppedIDs := []string{}
	for _, ids := range res.Dropped {
		droppedIDs = append(droppedIDs, ids...)
	}

	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO span_results (document_id, result, entity_ids, dropped_ids, processed_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (document_id) DO UPDATE
			SET result = EXCLUDED.result,
			    entity_ids = EXCLUDED.entity_ids,
			    dropped_ids = EXCLUDED.dropped_ids,
			    processed_at = EXCLUDED.processed_at`,
			res.DocumentID, string(payload), pq.Array(entityIDs), pq.Array(droppedIDs), res.ProcessedAt,
		)
		if err != nil {
			return fmt.Errorf("saving result of %s: %w", res.DocumentID, describe(err))
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET status = $1, processed_at = $2 WHERE id = $3`,
			ingestion.StatusProcessed, res.ProcessedAt, res.DocumentID,
		)
		if err != nil {
			return fmt.Errorf("updating status of %s: %w", res.DocumentID, err)
		}
		return nil
	})
}

// LoadResult returns the stored result of a document.
func (s *Store) LoadResult(ctx context.Context, id string) (*processor.Result, error) {
	var payload []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT result FROM span_results WHERE document_id = $1`, id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, "store.load_result", "no result for document %q", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading result of %s: %w", id, err)
	}
	var res processor.Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("decoding result of %s: %w", id, err)
	}
	return &res, nil
}

// FindByEntity returns the ids of documents whose result kept an entity
// with the given annotation id.
func (s *Store) FindByEntity(ctx context.Context, entityID string) ([]string, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT document_id FROM span_results WHERE $1 = ANY (entity_ids) ORDER BY document_id`, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying entity %s: %w", entityID, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkStatus updates the status of a document. Unknown ids are ignored.
func (s *Store) MarkStatus(ctx context.Context, id, status string) error {
	_, err := s.db.DB.ExecContext(ctx,
		`UPDATE documents SET status = $1 WHERE id = $2`, status, id,
	)
	if err != nil {
		s.logger.Error("failed to update document status",
			"doc_id", id,
			"status", status,
			"error", err,
		)
		return fmt.Errorf("marking %s %s: %w", id, status, err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// describe adds the Postgres error code and constraint to driver errors.
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%w (code %s, constraint %q)", err, pqErr.Code, pqErr.Constraint)
	}
	return err
}

func nullableString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
