package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/getchdocs/getchdocs-api/internal/analytics"
	"github.com/getchdocs/getchdocs-api/internal/model"
	"github.com/getchdocs/getchdocs-api/pkg/apperr"
	"github.com/getchdocs/getchdocs-api/pkg/logger"
)

// DefaultEventHistoryLimit is how many persisted events History returns when
// no limit is given.
const DefaultEventHistoryLimit = 100

// StatsSource produces the current dashboard statistics.
type StatsSource interface {
	Stats() analytics.DashboardStats
}

// EventHistory reads persisted query events, newest first.
type EventHistory interface {
	Recent(ctx context.Context, limit int) ([]model.QueryEvent, error)
}

// Dashboard is the dashboard response.
type Dashboard struct {
	analytics.DashboardStats
	TotalDocuments int `json:"total_documents"`
	TotalUsers     int `json:"total_users"`
	MaxQueryCount  int `json:"max_query_count"`
	MaxDayCount    int `json:"max_day_count"`
}

// DashboardService assembles the dashboard.
type DashboardService struct {
	stats   StatsSource
	docs    DocumentRepository
	users   UserRepository
	history EventHistory
	logger  *logger.Logger
}

// NewDashboardService creates a new dashboard service. history may be nil
// when no durable event store is configured.
func NewDashboardService(stats StatsSource, docs DocumentRepository, users UserRepository, history EventHistory, log *logger.Logger) *DashboardService {
	return &DashboardService{
		stats:   stats,
		docs:    docs,
		users:   users,
		history: history,
		logger:  log.Component("dashboard"),
	}
}

// Get returns the statistics together with the library and account totals.
func (s *DashboardService) Get(ctx context.Context) (*Dashboard, error) {
	var docCount, userCount int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.docs.Count(gctx)
		if err != nil {
			return fmt.Errorf("counting documents: %w", err)
		}
		docCount = n
		return nil
	})
	g.Go(func() error {
		n, err := s.users.Count(gctx)
		if err != nil {
			return fmt.Errorf("counting users: %w", err)
		}
		userCount = n
		return nil
	})

	stats := s.stats.Stats()
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Dashboard{
		DashboardStats: stats,
		TotalDocuments: docCount,
		TotalUsers:     userCount,
		MaxQueryCount:  stats.MaxQueryCount(),
		MaxDayCount:    stats.MaxDayCount(),
	}, nil
}

// History returns up to limit persisted events, newest first.
func (s *DashboardService) History(ctx context.Context, limit int) ([]model.QueryEvent, error) {
	if s.history == nil {
		return nil, apperr.New(apperr.ErrUnavailable, "event history requires a database")
	}
	if limit <= 0 {
		limit = DefaultEventHistoryLimit
	}
	events, err := s.history.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("loading event history: %w", err)
	}
	return events, nil
}
