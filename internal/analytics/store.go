package analytics

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/getchdocs/getchdocs-api/internal/model"
)

// Store is the durable mirror of the event log.
type Store interface {
	AppendEvent(ctx context.Context, event model.QueryEvent) error
	LoadAllEvents(ctx context.Context) ([]model.QueryEvent, error)
}

// StoreError reports a failed store operation. It is never fatal: the
// local log has already been updated when it is returned.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("analytics store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreError reports whether err came from the durable store.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

type mirror struct {
	stores []Store
}

// Mirror fans writes out to every store and loads from the first one that
// answers. Nil stores are dropped; with none left Mirror returns nil.
func Mirror(stores ...Store) Store {
	var live []Store
	for _, s := range stores {
		if s != nil {
			live = append(live, s)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return &mirror{stores: live}
}

func (m *mirror) AppendEvent(ctx context.Context, event model.QueryEvent) error {
	var err error
	for i, s := range m.stores {
		if e := s.AppendEvent(ctx, event); e != nil {
			err = multierr.Append(err, fmt.Errorf("store %d: %w", i, e))
		}
	}
	return err
}

func (m *mirror) LoadAllEvents(ctx context.Context) ([]model.QueryEvent, error) {
	var err error
	for i, s := range m.stores {
		events, e := s.LoadAllEvents(ctx)
		if e == nil {
			return events, nil
		}
		err = multierr.Append(err, fmt.Errorf("store %d: %w", i, e))
	}
	return nil, err
}
