package optcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	c "github.com/unkn0wn-root/optcache/codec"
	gen "github.com/unkn0wn-root/optcache/genstore"
	"github.com/unkn0wn-root/optcache/internal/wire"
	pr "github.com/unkn0wn-root/optcache/provider"
	"github.com/unkn0wn-root/optcache/provider/memory"
)

type store[V any] struct {
	ns             string
	provider       pr.Provider
	codec          c.Codec[V]
	gen            gen.GenStore
	log            Logger
	hooks          Hooks
	ttl            time.Duration
	computeSetCost SetCostFunc

	// serializes every operation; see Store
	mu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func newStore[V any](opts Options[V]) (*store[V], error) {
	if opts.Namespace == "" {
		return nil, fmt.Errorf("optcache: namespace is required")
	}

	s := &store[V]{
		ns:  opts.Namespace,
		ttl: opts.TTL,
	}

	// defaults
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	if opts.Provider != nil {
		s.provider = opts.Provider
	} else {
		s.provider = memory.New(memory.Config{Sweep: opts.TTL > 0})
	}
	if opts.Codec != nil {
		s.codec = opts.Codec
	} else {
		s.codec = c.JSON[V]{}
	}
	if opts.ComputeSetCost != nil {
		s.computeSetCost = opts.ComputeSetCost
	} else {
		s.computeSetCost = func(string, []byte) int64 { return 1 }
	}
	if opts.GenStore != nil {
		s.gen = opts.GenStore
	} else {
		// default to in-process generations with periodic cleanup
		s.gen = gen.NewLocalGenStore(
			coalesce(opts.CleanupInterval, defaultSweep),
			coalesce(opts.GenRetention, defaultGenRetention),
		)
	}
	return s, nil
}

func (s *store[V]) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		// gen store first (best effort)
		_ = s.gen.Close(ctx)
		s.closeErr = s.provider.Close(ctx)
	})
	return s.closeErr
}

func (s *store[V]) Get(ctx context.Context, key string) (V, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.load(ctx, s.entryKey(key))
	return e.Value, e.Loaded, err
}

func (s *store[V]) Peek(ctx context.Context, key string) (Entry[V], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := s.entryKey(key)
	e, err := s.load(ctx, k)
	if err != nil {
		return Entry[V]{}, err
	}
	g, err := s.gen.Snapshot(ctx, k)
	if err != nil {
		return Entry[V]{}, err
	}
	e.Generation = Token(g)
	return e.Entry, nil
}

func (s *store[V]) Set(ctx context.Context, key string, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(ctx, s.entryKey(key), value)
}

func (s *store[V]) BeginRead(ctx context.Context, key string) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.bump(ctx, s.entryKey(key))
}

func (s *store[V]) CompleteRead(ctx context.Context, key string, tok Token, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := s.entryKey(key)
	cur, err := s.gen.Snapshot(ctx, k)
	if err != nil {
		return err
	}
	if Token(cur) != tok {
		s.log.Debug("read discarded (gen mismatch)", Fields{"key": key, "token": tok, "current": cur})
		s.hooks.StaleReadDiscarded(key, tok, Token(cur))
		return ErrStaleRead
	}
	return s.write(ctx, k, value)
}

func (s *store[V]) CancelPendingReads(ctx context.Context, key string) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.bump(ctx, s.entryKey(key))
}

func (s *store[V]) Swap(ctx context.Context, key string, fn func(cur V) V) (V, bool, error) {
	var zero V

	s.mu.Lock()
	defer s.mu.Unlock()

	k := s.entryKey(key)
	newGen, err := s.bump(ctx, k)
	if err != nil {
		return zero, false, err
	}
	prev, err := s.load(ctx, k)
	if err != nil {
		return zero, false, err
	}
	// fn gets an independent copy so the returned snapshot cannot be altered
	work := prev.Value
	if prev.Loaded {
		if work, err = s.codec.Decode(prev.raw); err != nil {
			return zero, false, err
		}
	}
	if err := s.write(ctx, k, fn(work)); err != nil {
		return zero, false, err
	}
	s.log.Debug("swapped value (cancelled pending reads)", Fields{"key": key, "newGen": newGen, "wasLoaded": prev.Loaded})
	return prev.Value, prev.Loaded, nil
}

func (s *store[V]) Update(ctx context.Context, key string, fn func(cur V, loaded bool) V) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := s.entryKey(key)
	cur, err := s.load(ctx, k)
	if err != nil {
		return err
	}
	return s.write(ctx, k, fn(cur.Value, cur.Loaded))
}

// stored is an Entry plus the payload bytes it was decoded from.
type stored[V any] struct {
	Entry[V]
	raw []byte
}

// load must be called with s.mu held.
func (s *store[V]) load(ctx context.Context, storageKey string) (stored[V], error) {
	var out stored[V]
	raw, ok, err := s.provider.Get(ctx, storageKey)
	if err != nil || !ok {
		return out, err
	}
	rev, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		s.selfHeal(ctx, storageKey, "corrupt")
		return out, nil
	}
	v, err := s.codec.Decode(payload)
	if err != nil {
		s.selfHeal(ctx, storageKey, "value_decode")
		return out, nil
	}
	out.Value, out.Loaded, out.Revision, out.raw = v, true, rev, payload
	return out, nil
}

// write must be called with s.mu held.
func (s *store[V]) write(ctx context.Context, storageKey string, value V) error {
	payload, err := s.codec.Encode(value)
	if err != nil {
		return err
	}

	var rev uint64
	if raw, ok, err := s.provider.Get(ctx, storageKey); err != nil {
		return err
	} else if ok {
		// a corrupt previous frame restarts the sequence
		rev, _, _ = wire.DecodeEntry(raw)
	}

	frame := wire.EncodeEntry(rev+1, payload)
	ok, err := s.provider.Set(ctx, storageKey, frame, s.computeSetCost(storageKey, frame), s.ttl)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Warn("write rejected by provider (pressure)", Fields{"key": storageKey})
		s.hooks.ProviderSetRejected(storageKey)
		return ErrSetRejected
	}
	return nil
}

func (s *store[V]) bump(ctx context.Context, storageKey string) (Token, error) {
	g, err := s.gen.Bump(ctx, storageKey)
	if err != nil {
		s.log.Error("gen bump error", Fields{"key": storageKey, "err": err})
		s.hooks.GenBumpError(storageKey, err)
		return 0, err
	}
	return Token(g), nil
}

func (s *store[V]) selfHeal(ctx context.Context, storageKey, reason string) {
	if err := s.provider.Del(ctx, storageKey); err != nil {
		s.log.Warn("self-heal delete failed", Fields{"key": storageKey, "reason": reason, "err": err})
	}
	s.log.Debug("self-healed entry", Fields{"key": storageKey, "reason": reason})
	s.hooks.SelfHeal(storageKey, reason)
}

func (s *store[V]) entryKey(userKey string) string {
	// isolate by namespace
	return "entry:" + s.ns + ":" + userKey
}
