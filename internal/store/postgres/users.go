package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/getchdocs/getchdocs-api/internal/model"
)

// Users is the PostgreSQL user repository.
type Users struct {
	c *Client
}

// NewUsers creates a user repository on c.
func NewUsers(c *Client) *Users {
	return &Users{c: c}
}

const userColumns = `id, name, email, role, created_at, last_login`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u         model.User
		role      string
		lastLogin sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.CreatedAt, &lastLogin); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *Users) Create(ctx context.Context, u *model.User) error {
	_, err := r.c.DB.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Name, u.Email, string(u.Role), u.CreatedAt, nullableTime(u.LastLogin),
	)
	if err != nil {
		return fmt.Errorf("inserting user: %w", mapError(err, "user not found"))
	}
	return nil
}

func (r *Users) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(r.c.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", mapError(err, "user not found"))
	}
	return u, nil
}

func (r *Users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.c.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = $1`,
		strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return nil, fmt.Errorf("querying user by email: %w", mapError(err, "user not found"))
	}
	return u, nil
}

func (r *Users) Update(ctx context.Context, u *model.User) error {
	res, err := r.c.DB.ExecContext(ctx,
		`UPDATE users SET name = $2, email = $3, role = $4, last_login = $5 WHERE id = $1`,
		u.ID, u.Name, u.Email, string(u.Role), nullableTime(u.LastLogin),
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", mapError(err, "user not found"))
	}
	return expectAffected(res, "user not found")
}

func (r *Users) Delete(ctx context.Context, id string) error {
	res, err := r.c.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return expectAffected(res, "user not found")
}

// List returns users in creation order.
func (r *Users) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.c.DB.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *Users) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.c.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}
