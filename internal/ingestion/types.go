// Package ingestion defines the annotated-document records accepted over
// HTTP and Kafka, and the event published once a document is stored.
package ingestion

import "time"

// Document statuses as stored and reported to callers.
const (
	StatusPending   = "PENDING"
	StatusProcessed = "PROCESSED"
	StatusFailed    = "FAILED"
)

// Annotation is one externally produced span over the document text.
// Offsets are character offsets, end exclusive.
type Annotation struct {
	ID         string            `json:"id,omitempty"`
	Begin      int               `json:"begin"`
	End        int               `json:"end"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// AnnotatedDocument is a text plus the annotations produced for it.
type AnnotatedDocument struct {
	DocumentID  string       `json:"document_id"`
	Text        string       `json:"text"`
	Annotations []Annotation `json:"annotations"`
}

// IngestRequest is the JSON body accepted by the intake endpoint.
type IngestRequest struct {
	Text           string       `json:"text"`
	Annotations    []Annotation `json:"annotations"`
	IdempotencyKey string       `json:"idempotency_key,omitempty"`
}

// IngestResponse is returned to the caller after a document is accepted.
type IngestResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// DocumentEvent is the Kafka message produced after a document is persisted
// and ready for processing.
type DocumentEvent struct {
	AnnotatedDocument
	IngestedAt time.Time `json:"ingested_at"`
}
