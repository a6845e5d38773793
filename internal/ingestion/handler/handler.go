// Package handler serves the HTTP intake: document submission plus status,
// result and entity lookup.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/processor"
	apperrors "github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/logger"
)

// Ingester accepts validated submissions.
type Ingester interface {
	Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error)
}

// Reader looks up stored documents and results.
type Reader interface {
	LoadDocument(ctx context.Context, id string) (*ingestion.AnnotatedDocument, string, error)
	LoadResult(ctx context.Context, id string) (*processor.Result, error)
	FindByEntity(ctx context.Context, entityID string) ([]string, error)
}

// EntityDocuments lists the documents whose result kept an entity.
type EntityDocuments struct {
	EntityID    string   `json:"entity_id"`
	DocumentIDs []string `json:"document_ids"`
}

type Handler struct {
	ingester       Ingester
	reader         Reader
	maxBody        int64
	maxAnnotations int
	logger         *slog.Logger
}

func New(ing Ingester, reader Reader, maxBody int64, maxAnnotations int) *Handler {
	return &Handler{
		ingester:       ing,
		reader:         reader,
		maxBody:        maxBody,
		maxAnnotations: maxAnnotations,
		logger:         slog.Default().With("component", "ingestion-handler"),
	}
}

// Register mounts the intake routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.Ingest)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Status)
	mux.HandleFunc("GET /api/v1/documents/{id}/result", h.Result)
	mux.HandleFunc("GET /api/v1/entities/{id}/documents", h.Entity)
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	var req ingestion.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateIngestRequest(&req, h.maxAnnotations); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.ingester.Ingest(ctx, &req)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed",
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "ingestion failed")
		return
	}
	log.Info("document ingested",
		"doc_id", resp.DocumentID,
		"annotations", len(req.Annotations),
	)
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	_, status, err := h.reader.LoadDocument(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ingestion.IngestResponse{DocumentID: id, Status: status})
}

func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	res, err := h.reader.LoadResult(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// Entity answers with an empty list, not 404, when no document kept the
// entity.
func (h *Handler) Entity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ids, err := h.reader.FindByEntity(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	h.writeJSON(w, http.StatusOK, EntityDocuments{EntityID: id, DocumentIDs: ids})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("lookup failed", "error", err)
		h.writeError(w, status, "lookup failed")
		return
	}
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
