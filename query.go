package optcache

import (
	"context"
	"errors"
	"sync"
)

// FetchFunc reads the authoritative value, typically over the network.
type FetchFunc[V any] func(ctx context.Context) (V, error)

type QueryOptions struct {
	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
}

// QueryState is display-only; nothing in the store depends on it.
type QueryState struct {
	Fetching bool  // at least one fetch is in flight
	Err      error // error of the last settled fetch; nil after a success
}

// Query populates one key of a Store from a FetchFunc.
type Query[V any] struct {
	store Store[V]
	key   string
	fetch FetchFunc[V]
	log   Logger
	hooks Hooks

	mu       sync.Mutex
	inFlight int
	lastErr  error
}

func NewQuery[V any](store Store[V], key string, fetch FetchFunc[V], opts QueryOptions) *Query[V] {
	return &Query[V]{
		store: store,
		key:   key,
		fetch: fetch,
		log:   coalesce[Logger](opts.Logger, NopLogger{}),
		hooks: coalesce[Hooks](opts.Hooks, NopHooks{}),
	}
}

// Fetch reads under a fresh generation token and returns the cached value
// once the read settles. If a newer read or a mutation superseded this one,
// the fetched result is dropped and the current cached value is returned.
// A fetch error is returned as *TransportError and the cached value is left
// as it was.
func (q *Query[V]) Fetch(ctx context.Context) (V, error) {
	var zero V

	tok, err := q.store.BeginRead(ctx, q.key)
	if err != nil {
		return zero, err
	}

	q.begin()
	v, err := q.fetch(ctx)
	if err != nil {
		terr := &TransportError{Op: "read", Key: q.key, Err: err}
		q.end(terr)
		q.log.Warn("read failed", Fields{"key": q.key, "token": tok, "err": err})
		q.hooks.ReadFailed(q.key, err)
		return zero, terr
	}
	q.end(nil)

	if err := q.store.CompleteRead(ctx, q.key, tok, v); err != nil && !errors.Is(err, ErrStaleRead) {
		return zero, err
	}
	cur, _, err := q.store.Get(ctx, q.key)
	return cur, err
}

// Ensure fetches only if nothing is cached yet.
func (q *Query[V]) Ensure(ctx context.Context) (V, error) {
	v, ok, err := q.store.Get(ctx, q.key)
	if err != nil || ok {
		return v, err
	}
	return q.Fetch(ctx)
}

func (q *Query[V]) State() QueryState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueryState{Fetching: q.inFlight > 0, Err: q.lastErr}
}

func (q *Query[V]) begin() {
	q.mu.Lock()
	q.inFlight++
	q.mu.Unlock()
}

func (q *Query[V]) end(err error) {
	q.mu.Lock()
	q.inFlight--
	q.lastErr = err
	q.mu.Unlock()
}
