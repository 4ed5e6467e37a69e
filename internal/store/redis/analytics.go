// Package redis mirrors the analytics event log into a Redis list.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/getchdocs/getchdocs-api/internal/analytics"
	"github.com/getchdocs/getchdocs-api/internal/model"
	"github.com/getchdocs/getchdocs-api/pkg/logger"
)

// DefaultKey is the list holding the event log.
const DefaultKey = "getchdocs:analytics"

// Analytics keeps the newest maxEvents query events under one key, oldest
// at the head of the list.
type Analytics struct {
	client    *redis.Client
	key       string
	maxEvents int
	logger    *logger.Logger
}

// Connect parses url, connects and pings.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// NewAnalytics creates the mirror on client. An empty key uses DefaultKey
// and a cap below 1 uses analytics.DefaultMaxEvents.
func NewAnalytics(client *redis.Client, key string, maxEvents int, log *logger.Logger) *Analytics {
	if key == "" {
		key = DefaultKey
	}
	if maxEvents < 1 {
		maxEvents = analytics.DefaultMaxEvents
	}
	return &Analytics{
		client:    client,
		key:       key,
		maxEvents: maxEvents,
		logger:    log.Component("analytics-redis"),
	}
}

// AppendEvent pushes the event and trims the list to the cap in one round
// trip.
func (a *Analytics) AppendEvent(ctx context.Context, e model.QueryEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling query event: %w", err)
	}

	pipe := a.client.TxPipeline()
	pipe.RPush(ctx, a.key, data)
	pipe.LTrim(ctx, a.key, int64(-a.maxEvents), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("appending query event: %w", err)
	}
	return nil
}

// LoadAllEvents returns the whole list. Entries that do not decode are
// skipped.
func (a *Analytics) LoadAllEvents(ctx context.Context) ([]model.QueryEvent, error) {
	raw, err := a.client.LRange(ctx, a.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("loading query events: %w", err)
	}

	events := make([]model.QueryEvent, 0, len(raw))
	for _, item := range raw {
		var e model.QueryEvent
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			a.logger.Warn("skipping undecodable query event", zap.Error(err))
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// Ping checks connectivity. Used by the readiness check.
func (a *Analytics) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}
