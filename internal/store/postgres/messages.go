package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/getchdocs/getchdocs-api/internal/model"
)

// Messages is the PostgreSQL chat history.
type Messages struct {
	c *Client
}

// NewMessages creates a chat history on c.
func NewMessages(c *Client) *Messages {
	return &Messages{c: c}
}

func (r *Messages) SaveMessage(ctx context.Context, m *model.Message) error {
	refs := m.DocumentReferences
	if refs == nil {
		refs = []string{}
	}
	err := r.c.DB.QueryRowContext(ctx,
		`INSERT INTO messages (id, user_id, role, content, document_references, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING seq`,
		m.ID, m.UserID, string(m.Role), m.Content, pq.Array(refs), m.CreatedAt,
	).Scan(&m.Sequence)
	if err != nil {
		return fmt.Errorf("inserting message: %w", mapError(err, "message not found"))
	}
	return nil
}

// ListMessages returns the user's messages oldest first; limit > 0 keeps
// only the newest limit messages.
func (r *Messages) ListMessages(ctx context.Context, userID string, limit int) ([]model.Message, error) {
	const columns = `seq, id, user_id, role, content, document_references, created_at`

	query := `SELECT ` + columns + ` FROM messages WHERE user_id = $1 ORDER BY seq ASC`
	args := []any{userID}
	if limit > 0 {
		query = `SELECT ` + columns + ` FROM (
			SELECT ` + columns + ` FROM messages WHERE user_id = $1 ORDER BY seq DESC LIMIT $2
		) newest ORDER BY seq ASC`
		args = append(args, limit)
	}

	rows, err := r.c.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]model.Message, 0)
	for rows.Next() {
		var (
			m    model.Message
			role string
			refs pq.StringArray
		)
		if err := rows.Scan(&m.Sequence, &m.ID, &m.UserID, &role, &m.Content, &refs, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		m.Role = model.MessageRole(role)
		if len(refs) > 0 {
			m.DocumentReferences = []string(refs)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *Messages) DeleteUserMessages(ctx context.Context, userID string) error {
	if _, err := r.c.DB.ExecContext(ctx, `DELETE FROM messages WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}
	return nil
}
