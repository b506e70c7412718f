package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/imamik/clusterjoin/internal/store"
)

// InstrumentedStore counts and times the operations of a wrapped store.
type InstrumentedStore struct {
	backend string
	next    store.Store
}

// InstrumentStore wraps s so that every call is recorded under backend.
func InstrumentStore(backend string, s store.Store) *InstrumentedStore {
	return &InstrumentedStore{backend: backend, next: s}
}

// Get implements store.Store.
func (s *InstrumentedStore) Get(ctx context.Context, name string) (string, error) {
	start := time.Now()
	value, err := s.next.Get(ctx, name)
	s.record("get", start, err)
	return value, err
}

// Put implements store.Store.
func (s *InstrumentedStore) Put(ctx context.Context, name, value string, overwrite bool) error {
	start := time.Now()
	err := s.next.Put(ctx, name, value, overwrite)
	s.record("put", start, err)
	return err
}

func (s *InstrumentedStore) record(op string, start time.Time, err error) {
	storeLatency.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
	storeOperationsTotal.WithLabelValues(s.backend, op, storeResult(err)).Inc()
}

func storeResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrAlreadyExists):
		return "exists"
	case errors.Is(err, store.ErrPermissionDenied):
		return "denied"
	default:
		return "error"
	}
}
