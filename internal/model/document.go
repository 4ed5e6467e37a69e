package model

import (
	"time"
)

// Document is an uploaded file together with its extracted text.
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"type"`
	UploadedBy  string    `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Content     string    `json:"content,omitempty"`
}

// Summary returns a copy without the extracted text, for listings.
func (d Document) Summary() Document {
	d.Content = ""
	return d
}

// ListDocumentsResponse is the response for listing documents.
type ListDocumentsResponse struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
}
