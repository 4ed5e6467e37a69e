// Package service implements accounts, documents, chat turns and the
// dashboard on top of the repositories.
package service

import (
	"context"

	"github.com/getchdocs/getchdocs-api/internal/model"
)

// UserRepository stores accounts. Implementations return apperr.ErrNotFound
// for unknown ids and apperr.ErrConflict for a duplicate email.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	Get(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, u *model.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.User, error)
	Count(ctx context.Context) (int, error)
}

// DocumentRepository stores uploaded documents with their text.
type DocumentRepository interface {
	Create(ctx context.Context, d *model.Document) error
	Get(ctx context.Context, id string) (*model.Document, error)
	List(ctx context.Context) ([]model.Document, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// MessageRepository stores chat history per user.
type MessageRepository interface {
	SaveMessage(ctx context.Context, m *model.Message) error
	ListMessages(ctx context.Context, userID string, limit int) ([]model.Message, error)
	DeleteUserMessages(ctx context.Context, userID string) error
}
