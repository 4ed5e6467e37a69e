// Package memory provides in-process repositories used when no database is
// configured and in tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/getchdocs/getchdocs-api/internal/model"
	"github.com/getchdocs/getchdocs-api/pkg/apperr"
)

// Users is an in-memory user repository.
type Users struct {
	mu    sync.RWMutex
	users map[string]model.User
	order []string
}

// NewUsers creates an empty user repository.
func NewUsers() *Users {
	return &Users{users: make(map[string]model.User)}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *Users) emailTaken(email, exceptID string) bool {
	key := emailKey(email)
	for id, u := range r.users {
		if id != exceptID && emailKey(u.Email) == key {
			return true
		}
	}
	return false
}

func (r *Users) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return apperr.Newf(apperr.ErrConflict, "user %s already exists", user.ID)
	}
	if r.emailTaken(user.Email, "") {
		return apperr.New(apperr.ErrConflict, "email already registered")
	}
	r.users[user.ID] = *user
	r.order = append(r.order, user.ID)
	return nil
}

func (r *Users) Get(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "user not found")
	}
	return &u, nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := emailKey(email)
	for _, id := range r.order {
		if u := r.users[id]; emailKey(u.Email) == key {
			return &u, nil
		}
	}
	return nil, apperr.New(apperr.ErrNotFound, "user not found")
}

func (r *Users) Update(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return apperr.New(apperr.ErrNotFound, "user not found")
	}
	if r.emailTaken(user.Email, user.ID) {
		return apperr.New(apperr.ErrConflict, "email already registered")
	}
	r.users[user.ID] = *user
	return nil
}

func (r *Users) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return apperr.New(apperr.ErrNotFound, "user not found")
	}
	delete(r.users, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns users in creation order.
func (r *Users) List(_ context.Context) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.User, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.users[id])
	}
	return out, nil
}

func (r *Users) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}

// Documents is an in-memory document repository.
type Documents struct {
	mu   sync.RWMutex
	docs map[string]model.Document
}

// NewDocuments creates an empty document repository.
func NewDocuments() *Documents {
	return &Documents{docs: make(map[string]model.Document)}
}

func (r *Documents) Create(_ context.Context, doc *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[doc.ID]; ok {
		return apperr.Newf(apperr.ErrConflict, "document %s already exists", doc.ID)
	}
	r.docs[doc.ID] = *doc
	return nil
}

func (r *Documents) Get(_ context.Context, id string) (*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.docs[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "document not found")
	}
	return &d, nil
}

// List returns all documents with content, newest first.
func (r *Documents) List(_ context.Context) ([]model.Document, error) {
	r.mu.RLock()
	out := make([]model.Document, 0, len(r.docs))
	for _, d := range r.docs {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

func (r *Documents) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[id]; !ok {
		return apperr.New(apperr.ErrNotFound, "document not found")
	}
	delete(r.docs, id)
	return nil
}

func (r *Documents) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs), nil
}

// Messages is an in-memory chat history.
type Messages struct {
	mu     sync.RWMutex
	byUser map[string][]model.Message
	seq    uint64
}

// NewMessages creates an empty chat history.
func NewMessages() *Messages {
	return &Messages{byUser: make(map[string][]model.Message)}
}

func (r *Messages) SaveMessage(_ context.Context, msg *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	msg.Sequence = r.seq
	stored := *msg
	stored.DocumentReferences = append([]string(nil), msg.DocumentReferences...)
	r.byUser[msg.UserID] = append(r.byUser[msg.UserID], stored)
	return nil
}

// ListMessages returns the user's messages oldest first; limit > 0 keeps
// only the newest limit messages.
func (r *Messages) ListMessages(_ context.Context, userID string, limit int) ([]model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.byUser[userID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (r *Messages) DeleteUserMessages(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byUser, userID)
	return nil
}
