package postgres

import (
	"context"
	"fmt"

	"github.com/getchdocs/getchdocs-api/internal/model"
)

// Documents is the PostgreSQL document repository.
type Documents struct {
	c *Client
}

// NewDocuments creates a document repository on c.
func NewDocuments(c *Client) *Documents {
	return &Documents{c: c}
}

const documentColumns = `id, name, size, type, content, uploaded_by, uploaded_at`

func scanDocument(row rowScanner) (*model.Document, error) {
	var d model.Document
	if err := row.Scan(&d.ID, &d.Name, &d.Size, &d.ContentType, &d.Content, &d.UploadedBy, &d.UploadedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Documents) Create(ctx context.Context, d *model.Document) error {
	_, err := r.c.DB.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.Name, d.Size, d.ContentType, d.Content, d.UploadedBy, d.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting document: %w", mapError(err, "document not found"))
	}
	return nil
}

func (r *Documents) Get(ctx context.Context, id string) (*model.Document, error) {
	d, err := scanDocument(r.c.DB.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", mapError(err, "document not found"))
	}
	return d, nil
}

// List returns all documents with content, newest first.
func (r *Documents) List(ctx context.Context) ([]model.Document, error) {
	rows, err := r.c.DB.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func (r *Documents) Delete(ctx context.Context, id string) error {
	res, err := r.c.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return expectAffected(res, "document not found")
}

func (r *Documents) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.c.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}
