// Package validator checks annotated documents before they are stored or
// processed and reports per-field error details.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/errors"
)

const (
	maxTextLength        = 1 << 20
	maxIdempotencyLength = 255
	// reported per document; the rest are summarised
	maxReportedFields = 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// Unwrap classifies every validation failure as invalid input.
func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// ValidateIngestRequest checks the text, the idempotency key and every
// annotation of req. maxAnnotations <= 0 disables the count limit.
func ValidateIngestRequest(req *ingestion.IngestRequest, maxAnnotations int) error {
	errs := make(map[string]string)
	if len(req.IdempotencyKey) > maxIdempotencyLength {
		errs["idempotency_key"] = fmt.Sprintf("idempotency key must be at most %d characters", maxIdempotencyLength)
	}
	validate(errs, req.Text, req.Annotations, maxAnnotations)
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateDocument applies the ValidateIngestRequest checks to a document
// read from Kafka.
func ValidateDocument(doc *ingestion.AnnotatedDocument, maxAnnotations int) error {
	errs := make(map[string]string)
	if strings.TrimSpace(doc.DocumentID) == "" {
		errs["document_id"] = "document id is required"
	}
	validate(errs, doc.Text, doc.Annotations, maxAnnotations)
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validate(errs map[string]string, text string, annotations []ingestion.Annotation, maxAnnotations int) {
	if !utf8.ValidString(text) {
		errs["text"] = "text must be valid UTF-8"
		return
	}
	length := utf8.RuneCountInString(text)
	switch {
	case strings.TrimSpace(text) == "":
		errs["text"] = "text is required and must not be empty"
	case length > maxTextLength:
		errs["text"] = fmt.Sprintf("text must be at most %d characters", maxTextLength)
	}
	if maxAnnotations > 0 && len(annotations) > maxAnnotations {
		errs["annotations"] = fmt.Sprintf("at most %d annotations are accepted, got %d", maxAnnotations, len(annotations))
		return
	}

	invalid := 0
	seen := make(map[string]int, len(annotations))
	for i, a := range annotations {
		var msg string
		first, repeated := seen[a.ID]
		if a.ID != "" && !repeated {
			seen[a.ID] = i
		}
		switch {
		case strings.TrimSpace(a.Type) == "":
			msg = "type is required"
		case a.Begin < 0:
			msg = fmt.Sprintf("begin %d is negative", a.Begin)
		case a.End <= a.Begin:
			msg = fmt.Sprintf("begin %d must be smaller than end %d", a.Begin, a.End)
		case a.End > length:
			msg = fmt.Sprintf("end %d exceeds text length %d", a.End, length)
		case a.ID != "" && repeated:
			msg = fmt.Sprintf("id %q repeats annotations[%d]", a.ID, first)
		default:
			continue
		}
		invalid++
		if invalid <= maxReportedFields {
			errs[fmt.Sprintf("annotations[%d]", i)] = msg
		}
	}
	if invalid > maxReportedFields {
		errs["annotations"] = fmt.Sprintf("%d invalid annotations, first %d reported", invalid, maxReportedFields)
	}
}
