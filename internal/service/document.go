package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/getchdocs/getchdocs-api/internal/extract"
	"github.com/getchdocs/getchdocs-api/internal/model"
	"github.com/getchdocs/getchdocs-api/pkg/apperr"
	"github.com/getchdocs/getchdocs-api/pkg/logger"
	"github.com/getchdocs/getchdocs-api/pkg/metrics"
)

// DocumentService handles uploads and the document library.
type DocumentService struct {
	docs     DocumentRepository
	maxBytes int64
	now      func() time.Time
	logger   *logger.Logger
}

// NewDocumentService creates a new document service. Files larger than
// maxBytes are rejected.
func NewDocumentService(docs DocumentRepository, maxBytes int64, log *logger.Logger) *DocumentService {
	return &DocumentService{
		docs:     docs,
		maxBytes: maxBytes,
		now:      time.Now,
		logger:   log.Component("documents"),
	}
}

// Upload extracts the text of one file and stores it.
func (s *DocumentService) Upload(ctx context.Context, uploader *model.User, name, contentType string, r io.Reader) (*model.Document, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.ErrInvalidInput, "file name is required")
	}
	if !CanUploadDocuments(uploader) {
		return nil, apperr.New(apperr.ErrForbidden, "only administrators can upload documents")
	}

	counted := &countingReader{r: io.LimitReader(r, s.maxBytes+1)}
	res, err := extract.Extract(name, contentType, counted)
	if err != nil {
		return nil, fmt.Errorf("extracting text: %w", err)
	}
	if counted.n > s.maxBytes {
		return nil, apperr.Newf(apperr.ErrTooLarge, "file exceeds %d bytes", s.maxBytes)
	}

	doc := &model.Document{
		ID:          uuid.NewString(),
		Name:        name,
		Size:        counted.n,
		ContentType: res.ContentType,
		UploadedBy:  uploader.ID,
		UploadedAt:  s.now().UTC(),
		Content:     res.Text,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}

	metrics.DocumentsUploaded.WithLabelValues(string(res.Method)).Inc()
	s.logger.Info("document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("name", doc.Name),
		zap.Int64("size", doc.Size),
		zap.String("extraction", string(res.Method)),
	)
	return doc, nil
}

// List returns document metadata, newest first.
func (s *DocumentService) List(ctx context.Context) (*model.ListDocumentsResponse, error) {
	docs, err := s.docs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	out := make([]model.Document, len(docs))
	for i, d := range docs {
		out[i] = d.Summary()
	}
	return &model.ListDocumentsResponse{Documents: out, Total: len(out)}, nil
}

// All returns every document with its text.
func (s *DocumentService) All(ctx context.Context) ([]model.Document, error) {
	return s.docs.List(ctx)
}

// Get returns one document with its text.
func (s *DocumentService) Get(ctx context.Context, id string) (*model.Document, error) {
	return s.docs.Get(ctx, id)
}

// Delete removes a document.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if err := s.docs.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("document deleted", zap.String("document_id", id))
	return nil
}

// Count returns the number of documents.
func (s *DocumentService) Count(ctx context.Context) (int, error) {
	return s.docs.Count(ctx)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
