package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/getchdocs/getchdocs-api/internal/auth"
	"github.com/getchdocs/getchdocs-api/internal/model"
	"github.com/getchdocs/getchdocs-api/pkg/apperr"
	"github.com/getchdocs/getchdocs-api/pkg/logger"
)

// DefaultUsers are created when the user store is empty.
var DefaultUsers = []model.User{
	{Name: "Admin Sistema", Email: "admin@getchdocs.com", Role: model.RoleAdmin},
	{Name: "João Silva", Email: "joao@empresa.com", Role: model.RoleUser},
}

// UserService handles sign-in and account management.
type UserService struct {
	users    UserRepository
	messages MessageRepository
	tokens   *auth.Tokens
	now      func() time.Time
	logger   *logger.Logger
}

// NewUserService creates a new user service. messages may be nil; when set,
// deleting a user also drops their chat history.
func NewUserService(users UserRepository, messages MessageRepository, tokens *auth.Tokens, log *logger.Logger) *UserService {
	return &UserService{
		users:    users,
		messages: messages,
		tokens:   tokens,
		now:      time.Now,
		logger:   log.Component("users"),
	}
}

func newUserID() string {
	return "user-" + uuid.NewString()
}

// SeedDefaults creates DefaultUsers when no account exists yet.
func (s *UserService) SeedDefaults(ctx context.Context) error {
	n, err := s.users.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if n > 0 {
		return nil
	}

	for _, def := range DefaultUsers {
		u := def
		u.ID = newUserID()
		u.CreatedAt = s.now().UTC()
		if err := s.users.Create(ctx, &u); err != nil {
			return fmt.Errorf("seeding %s: %w", u.Email, err)
		}
	}
	s.logger.Info("seeded default users", zap.Int("count", len(DefaultUsers)))
	return nil
}

// Login looks the account up by email and issues a token. The password is
// not checked.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, apperr.New(apperr.ErrInvalidInput, "email is required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		s.logger.Info("login rejected", zap.String("email", email))
		return nil, apperr.New(apperr.ErrUnauthorized, "invalid credentials")
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	now := s.now().UTC()
	u.LastLogin = &now
	if err := s.users.Update(ctx, u); err != nil {
		s.logger.Warn("failed to record last login", zap.String("user_id", u.ID), zap.Error(err))
	}

	token, expires, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", zap.String("user_id", u.ID))
	return &model.LoginResponse{Token: token, ExpiresAt: expires, User: u}, nil
}

// Get returns one user.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.Get(ctx, id)
}

// List returns every user.
func (s *UserService) List(ctx context.Context) (*model.ListUsersResponse, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return &model.ListUsersResponse{Users: users, Total: len(users)}, nil
}

// Count returns the number of users.
func (s *UserService) Count(ctx context.Context) (int, error) {
	return s.users.Count(ctx)
}

// Create adds a user. A duplicate email is a conflict.
func (s *UserService) Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	role := req.Role
	if role == "" {
		role = model.RoleUser
	}

	if err := validateUser(name, email, role); err != nil {
		return nil, err
	}

	u := &model.User{
		ID:        newUserID(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: s.now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user created", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

// Update applies the non-nil fields of req.
func (s *UserService) Update(ctx context.Context, id string, req *model.UpdateUserRequest) (*model.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		u.Email = normalizeEmail(*req.Email)
	}
	if req.Role != nil {
		u.Role = *req.Role
	}
	if err := validateUser(u.Name, u.Email, u.Role); err != nil {
		return nil, err
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes a user and, when a history store is set, their messages.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	if s.messages != nil {
		if err := s.messages.DeleteUserMessages(ctx, id); err != nil {
			s.logger.Warn("failed to delete chat history", zap.String("user_id", id), zap.Error(err))
		}
	}
	s.logger.Info("user deleted", zap.String("user_id", id))
	return nil
}

// CanUploadDocuments reports whether u may add or remove documents.
func CanUploadDocuments(u *model.User) bool {
	return u.IsAdmin()
}

// CanManageUsers reports whether u may administer accounts.
func CanManageUsers(u *model.User) bool {
	return u.IsAdmin()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateUser(name, email string, role model.Role) error {
	if name == "" {
		return apperr.New(apperr.ErrInvalidInput, "name is required")
	}
	if len(name) > 256 {
		return apperr.New(apperr.ErrInvalidInput, "name exceeds maximum length")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.New(apperr.ErrInvalidInput, "invalid email address")
	}
	if !role.Valid() {
		return apperr.Newf(apperr.ErrInvalidInput, "invalid role %q", role)
	}
	return nil
}
