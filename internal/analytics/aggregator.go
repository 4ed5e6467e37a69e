package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/getchdocs/getchdocs-api/internal/model"
	"github.com/getchdocs/getchdocs-api/pkg/logger"
	"github.com/getchdocs/getchdocs-api/pkg/metrics"
)

// DefaultMaxEvents is the number of events the log retains.
const DefaultMaxEvents = 1000

// DefaultMaxPending bounds the background store writes Track keeps in
// flight.
const DefaultMaxPending = 64

// ErrMalformedEvent is returned for events with a negative latency or no
// timestamp. Such events are never appended.
var ErrMalformedEvent = errors.New("malformed query event")

// Aggregator owns the capped event log. The local log is authoritative;
// the optional store is a best-effort mirror.
type Aggregator struct {
	mu     sync.RWMutex
	events []model.QueryEvent

	maxEvents    int
	store        Store
	location     *time.Location
	now          func() time.Time
	writeTimeout time.Duration
	logger       *logger.Logger

	pending  sync.WaitGroup
	inflight chan struct{}
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithStore sets the durable mirror.
func WithStore(s Store) Option {
	return func(a *Aggregator) { a.store = s }
}

// WithMaxEvents overrides the log cap. Values below 1 are ignored.
func WithMaxEvents(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxEvents = n
		}
	}
}

// WithMaxPending overrides how many background writes Track keeps in
// flight. Values below 1 are ignored.
func WithMaxPending(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.inflight = make(chan struct{}, n)
		}
	}
}

// WithLocation sets the time zone used for calendar-day buckets.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.location = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithWriteTimeout bounds each background store write.
func WithWriteTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.writeTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// New creates an empty aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		maxEvents:    DefaultMaxEvents,
		location:     time.UTC,
		now:          time.Now,
		writeTimeout: 5 * time.Second,
		logger:       logger.Global(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.inflight == nil {
		a.inflight = make(chan struct{}, DefaultMaxPending)
	}
	a.logger = a.logger.Component("analytics")
	a.events = make([]model.QueryEvent, 0, a.maxEvents)
	return a
}

// Record appends event to the local log and then writes it to the store.
// A store failure comes back as a *StoreError; the event is kept locally
// either way.
func (a *Aggregator) Record(ctx context.Context, event model.QueryEvent) error {
	if err := a.append(event); err != nil {
		return err
	}
	return a.persist(ctx, event)
}

// Track appends event to the local log and writes it to the store in the
// background. Store failures are logged, never returned. When the maximum
// number of writes is already in flight the event stays local only.
func (a *Aggregator) Track(event model.QueryEvent) error {
	if err := a.append(event); err != nil {
		return err
	}
	if a.store == nil {
		return nil
	}

	select {
	case a.inflight <- struct{}{}:
	default:
		metrics.AnalyticsStoreErrors.WithLabelValues("dropped").Inc()
		a.logger.Warn("store writes saturated, query event not mirrored",
			zap.String("event_id", event.ID),
			zap.Int("in_flight", cap(a.inflight)),
		)
		return nil
	}

	a.pending.Add(1)
	go func() {
		defer func() {
			<-a.inflight
			a.pending.Done()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), a.writeTimeout)
		defer cancel()
		if err := a.persist(ctx, event); err != nil {
			a.logger.Warn("failed to mirror query event",
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		}
	}()
	return nil
}

func (a *Aggregator) append(event model.QueryEvent) error {
	if !event.Valid() {
		return ErrMalformedEvent
	}
	event.DocumentsReferenced = append([]string(nil), event.DocumentsReferenced...)

	a.mu.Lock()
	a.events = append(a.events, event)
	if len(a.events) > a.maxEvents {
		a.events = a.events[len(a.events)-a.maxEvents:]
	}
	size := len(a.events)
	a.mu.Unlock()

	metrics.RecordQuery(event.ResponseTimeMs, size)
	return nil
}

func (a *Aggregator) persist(ctx context.Context, event model.QueryEvent) error {
	if a.store == nil {
		return nil
	}
	if err := a.store.AppendEvent(ctx, event); err != nil {
		metrics.AnalyticsStoreErrors.WithLabelValues("append").Inc()
		return &StoreError{Op: "append", Err: err}
	}
	return nil
}

// Load hydrates the log from the store, keeping the newest events up to the
// cap ahead of anything recorded since startup. Malformed records are
// skipped and do not count toward the total.
func (a *Aggregator) Load(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	loaded, err := a.store.LoadAllEvents(ctx)
	if err != nil {
		metrics.AnalyticsStoreErrors.WithLabelValues("load").Inc()
		return &StoreError{Op: "load", Err: err}
	}

	valid := make([]model.QueryEvent, 0, len(loaded))
	skipped := 0
	for _, e := range loaded {
		if !e.Valid() {
			skipped++
			continue
		}
		valid = append(valid, e)
	}
	if skipped > 0 {
		a.logger.Warn("skipped malformed query events", zap.Int("count", skipped))
	}

	a.mu.Lock()
	merged := append(valid, a.events...)
	if len(merged) > a.maxEvents {
		merged = merged[len(merged)-a.maxEvents:]
	}
	a.events = merged
	size := len(a.events)
	a.mu.Unlock()

	metrics.AnalyticsLogSize.Set(float64(size))
	a.logger.Info("analytics log loaded", zap.Int("events", size))
	return nil
}

// Events returns a snapshot of the log, oldest first.
func (a *Aggregator) Events() []model.QueryEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.QueryEvent, len(a.events))
	copy(out, a.events)
	return out
}

// Len returns the number of retained events.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.events)
}

// Stats computes the dashboard statistics from a consistent snapshot.
func (a *Aggregator) Stats() DashboardStats {
	return ComputeStats(a.Events(), a.now(), a.location)
}

// Flush waits for background store writes to finish or for ctx to end.
func (a *Aggregator) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
