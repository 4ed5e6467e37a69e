package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/getchdocs/getchdocs-api/internal/middleware"
	"github.com/getchdocs/getchdocs-api/internal/service"
	"github.com/getchdocs/getchdocs-api/pkg/apperr"
	"github.com/getchdocs/getchdocs-api/pkg/logger"
)

// multipartOverhead is the room left for boundaries and part headers on top
// of the file itself.
const multipartOverhead = 64 << 10

// DocumentHandler handles document library endpoints.
type DocumentHandler struct {
	documentService *service.DocumentService
	maxUploadBytes  int64
	logger          *logger.Logger
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(docSvc *service.DocumentService, maxUploadBytes int64, log *logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		documentService: docSvc,
		maxUploadBytes:  maxUploadBytes,
		logger:          log,
	}
}

// List handles GET /api/v1/documents
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.documentService.List(r.Context())
	if err != nil {
		writeServiceError(w, middleware.RequestLogger(r.Context(), h.logger), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Upload handles POST /api/v1/documents with a multipart "file" field.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := middleware.RequestLogger(ctx, h.logger)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart/form-data")
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "missing file field")
			return
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeServiceError(w, log, uploadError(err))
				return
			}
			writeError(w, http.StatusBadRequest, "malformed multipart body")
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		doc, err := h.documentService.Upload(ctx, middleware.CurrentUser(ctx), part.FileName(), part.Header.Get("Content-Type"), part)
		part.Close()
		if err != nil {
			writeServiceError(w, log, uploadError(err))
			return
		}
		writeJSON(w, http.StatusCreated, doc.Summary())
		return
	}
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return apperr.New(apperr.ErrTooLarge, "file too large")
	case errors.Is(err, io.ErrUnexpectedEOF):
		return apperr.New(apperr.ErrInvalidInput, "malformed multipart body")
	default:
		return err
	}
}

// Get handles GET /api/v1/documents/:id
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateDocumentID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.documentService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, middleware.RequestLogger(r.Context(), h.logger), err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Delete handles DELETE /api/v1/documents/:id
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateDocumentID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.documentService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, middleware.RequestLogger(r.Context(), h.logger), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
