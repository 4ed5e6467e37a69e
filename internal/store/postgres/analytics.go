package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/getchdocs/getchdocs-api/internal/analytics"
	"github.com/getchdocs/getchdocs-api/internal/model"
	"github.com/getchdocs/getchdocs-api/pkg/logger"
)

// DefaultHistoryLimit is how many events Recent returns when no limit is
// given.
const DefaultHistoryLimit = 100

// Analytics persists query events in the analytics table.
type Analytics struct {
	c         *Client
	maxEvents int
	logger    *logger.Logger
}

// NewAnalytics creates an event store on c. LoadAllEvents returns at most
// maxEvents rows; a cap below 1 uses analytics.DefaultMaxEvents.
func NewAnalytics(c *Client, maxEvents int, log *logger.Logger) *Analytics {
	if maxEvents < 1 {
		maxEvents = analytics.DefaultMaxEvents
	}
	return &Analytics{c: c, maxEvents: maxEvents, logger: log.Component("analytics-postgres")}
}

const eventColumns = `id, query, user_id, user_name, documents_referenced, response_time_ms, timestamp`

// AppendEvent inserts one event. Re-inserting an id is a no-op.
func (a *Analytics) AppendEvent(ctx context.Context, e model.QueryEvent) error {
	docs := e.DocumentsReferenced
	if docs == nil {
		docs = []string{}
	}
	_, err := a.c.DB.ExecContext(ctx,
		`INSERT INTO analytics (`+eventColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, e.Query, e.UserID, e.UserName, pq.Array(docs), e.ResponseTimeMs, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting query event: %w", err)
	}
	return nil
}

// LoadAllEvents returns the newest maxEvents events, oldest first.
func (a *Analytics) LoadAllEvents(ctx context.Context) ([]model.QueryEvent, error) {
	return a.query(ctx,
		`SELECT `+eventColumns+` FROM (
			SELECT seq, `+eventColumns+` FROM analytics ORDER BY seq DESC LIMIT $1
		) newest ORDER BY seq ASC`,
		a.maxEvents)
}

// Recent returns up to limit events, newest first.
func (a *Analytics) Recent(ctx context.Context, limit int) ([]model.QueryEvent, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return a.query(ctx,
		`SELECT `+eventColumns+` FROM analytics ORDER BY timestamp DESC, seq DESC LIMIT $1`,
		limit)
}

func (a *Analytics) query(ctx context.Context, query string, args ...any) ([]model.QueryEvent, error) {
	rows, err := a.c.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	events := make([]model.QueryEvent, 0)
	for rows.Next() {
		var (
			e    model.QueryEvent
			docs pq.StringArray
		)
		if err := rows.Scan(&e.ID, &e.Query, &e.UserID, &e.UserName, &docs, &e.ResponseTimeMs, &e.Timestamp); err != nil {
			a.logger.Warn("skipping corrupt query event row", zap.Error(err))
			continue
		}
		e.DocumentsReferenced = []string(docs)
		events = append(events, e)
	}
	return events, rows.Err()
}
