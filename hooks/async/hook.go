// Package asynchook runs optcache hooks off the caller's goroutine.
//
// Store hooks fire while the store lock is held, so a slow inner Hooks
// (network exporter, verbose logger) delays every cache operation. Wrapping it
// here moves that cost to a small worker pool; events are dropped when the
// queue is full.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	store, _ := optcache.New[contacts.Collection](optcache.Options[contacts.Collection]{
//	    Namespace: "contacts",
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/optcache"
)

type Hooks struct {
	inner   optcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
}

var _ optcache.Hooks = (*Hooks)(nil)

func New(inner optcache.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = optcache.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are
// dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if h.closed.Load() {
		h.dropped.Add(1)
		return
	}
	defer func() {
		// lost the race with Close
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) SelfHeal(k, r string)             { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) ProviderSetRejected(k string)     { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) GenBumpError(k string, err error) { h.try(func() { h.inner.GenBumpError(k, err) }) }
func (h *Hooks) ReadFailed(k string, err error)   { h.try(func() { h.inner.ReadFailed(k, err) }) }
func (h *Hooks) StaleReadDiscarded(k string, tok, cur optcache.Token) {
	h.try(func() { h.inner.StaleReadDiscarded(k, tok, cur) })
}
func (h *Hooks) MutationCommitted(k, name, id string) {
	h.try(func() { h.inner.MutationCommitted(k, name, id) })
}
func (h *Hooks) MutationRolledBack(k, name, id string, err error) {
	h.try(func() { h.inner.MutationRolledBack(k, name, id, err) })
}
