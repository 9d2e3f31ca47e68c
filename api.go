package optcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/optcache/codec"
	gen "github.com/unkn0wn-root/optcache/genstore"
	pr "github.com/unkn0wn-root/optcache/provider"
)

// Token is a read generation. Every BeginRead and CancelPendingReads returns a
// new one; any earlier token for the same key becomes stale.
type Token uint64

type SetCostFunc func(key string, raw []byte) int64

// Entry is a point-in-time view of a key.
type Entry[V any] struct {
	Value      V
	Loaded     bool   // a value has been written and is still present
	Revision   uint64 // bumped on every stored write; 0 when not loaded
	Generation Token  // current read generation
}

// Store is the single source of truth for cached values. Every method runs as
// one indivisible step: no caller observes a partially applied write.
type Store[V any] interface {
	// Get returns the current value; loaded=false if nothing is stored.
	Get(ctx context.Context, key string) (v V, loaded bool, err error)
	Peek(ctx context.Context, key string) (Entry[V], error)

	// Set unconditionally overwrites the value and marks the key loaded.
	Set(ctx context.Context, key string, value V) error

	// Read generations
	BeginRead(ctx context.Context, key string) (Token, error)
	// CompleteRead stores value iff tok is still the current generation.
	// A superseded read returns ErrStaleRead and leaves the value untouched.
	CompleteRead(ctx context.Context, key string, tok Token, value V) error
	// CancelPendingReads invalidates every token issued so far for key.
	CancelPendingReads(ctx context.Context, key string) (Token, error)

	// Swap cancels pending reads, then replaces the value with fn(current).
	// prev is the value before the swap (zero V if not loaded). fn receives its
	// own copy and may modify it freely.
	Swap(ctx context.Context, key string, fn func(cur V) V) (prev V, loaded bool, err error)
	// Update replaces the value with fn(current) without touching generations.
	Update(ctx context.Context, key string, fn func(cur V, loaded bool) V) error

	Close(context.Context) error
}

// Options tune the store. Only Namespace is required.
type Options[V any] struct {
	Namespace string      // logical namespace to avoid collisions. e.g. "contacts", "app:prod"
	Provider  pr.Provider // nil => in-process memory provider
	Codec     c.Codec[V]  // nil => JSON

	Logger          Logger        // if nil, NopLogger is used
	Hooks           Hooks         // if nil, NopHooks is used
	TTL             time.Duration // 0 => no expiry
	CleanupInterval time.Duration // local gens; 0 => 1h
	GenRetention    time.Duration // local gens; 0 => 30d
	ComputeSetCost  SetCostFunc   // default 1
	GenStore        gen.GenStore  // nil => LocalGenStore (in-process)
}

func New[V any](opts Options[V]) (Store[V], error) {
	return newStore[V](opts)
}
