package optcache

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Phase is the lifecycle position of one mutation call.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhasePreparing
	PhaseOptimistic
	PhaseCommitted
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreparing:
		return "preparing"
	case PhaseOptimistic:
		return "optimistic"
	case PhaseCommitted:
		return "committed"
	case PhaseRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Settled reports whether the call has finished.
func (p Phase) Settled() bool { return p == PhaseCommitted || p == PhaseRolledBack }

// Mutation describes one kind of optimistic change to the value under a key.
// Optimistic and Reconcile must be pure; they run under the store lock.
type Mutation[V, I, R any] struct {
	Name string // used in logs, hooks and TransportError.Op

	// Optimistic returns the provisional value shown while Remote runs.
	Optimistic func(cur V, in I) V
	// Remote performs the authoritative change.
	Remote func(ctx context.Context, in I) (R, error)
	// Reconcile applies the authoritative result to the value current at
	// commit time (not to the snapshot).
	Reconcile func(cur V, in I, res R) V
}

type MutatorOptions struct {
	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
}

// MutatorState is display-only.
type MutatorState struct {
	Pending int    // calls not yet settled
	Err     error  // error of the most recently settled call; nil if it committed
	LastID  string // ID of the most recently settled call
}

// Mutator runs calls of a single Mutation against one key.
type Mutator[V, I, R any] struct {
	store Store[V]
	key   string
	def   Mutation[V, I, R]
	log   Logger
	hooks Hooks

	mu    sync.Mutex
	state MutatorState
}

func NewMutator[V, I, R any](store Store[V], key string, def Mutation[V, I, R], opts MutatorOptions) *Mutator[V, I, R] {
	if def.Name == "" {
		def.Name = "mutate"
	}
	return &Mutator[V, I, R]{
		store: store,
		key:   key,
		def:   def,
		log:   coalesce[Logger](opts.Logger, NopLogger{}),
		hooks: coalesce[Hooks](opts.Hooks, NopHooks{}),
	}
}

// Mutate runs a call to completion.
func (m *Mutator[V, I, R]) Mutate(ctx context.Context, in I) (R, error) {
	call, err := m.Start(ctx, in)
	if err != nil {
		var zero R
		return zero, err
	}
	return call.Wait(ctx)
}

// Start cancels pending reads for the key, captures a snapshot and writes the
// optimistic value, all in one store step. It returns once that value is
// visible; Remote and the commit or rollback continue in the background.
//
// ctx is passed to Remote. Cancelling it fails the call and rolls it back;
// the rollback write itself is not cancelled.
func (m *Mutator[V, I, R]) Start(ctx context.Context, in I) (*Call[R], error) {
	call := newCall[R](uuid.NewString())
	m.begin()

	call.setPhase(PhasePreparing)
	snap, wasLoaded, err := m.store.Swap(ctx, m.key, func(cur V) V {
		return m.def.Optimistic(cur, in)
	})
	if err != nil {
		// nothing was written; there is nothing to roll back
		m.log.Error("optimistic write failed", Fields{"key": m.key, "mutation": m.def.Name, "id": call.id, "err": err})
		m.end(call.id, err)
		call.finish(PhaseRolledBack, *new(R), err)
		return nil, err
	}
	call.setPhase(PhaseOptimistic)
	m.log.Debug("optimistic value applied", Fields{"key": m.key, "mutation": m.def.Name, "id": call.id, "wasLoaded": wasLoaded})

	go m.settle(ctx, call, in, snap)
	return call, nil
}

func (m *Mutator[V, I, R]) State() MutatorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Mutator[V, I, R]) settle(ctx context.Context, call *Call[R], in I, snap V) {
	res, err := m.def.Remote(ctx, in)
	sctx := context.WithoutCancel(ctx)

	if err != nil {
		err = m.rollback(sctx, call, snap, &TransportError{Op: m.def.Name, Key: m.key, Err: err})
		m.end(call.id, err)
		call.finish(PhaseRolledBack, *new(R), err)
		return
	}

	uerr := m.store.Update(sctx, m.key, func(cur V, _ bool) V {
		return m.def.Reconcile(cur, in, res)
	})
	if uerr != nil {
		// the remote change happened; only the local view is behind
		m.log.Error("reconcile failed", Fields{"key": m.key, "mutation": m.def.Name, "id": call.id, "err": uerr})
	} else {
		m.log.Debug("mutation committed", Fields{"key": m.key, "mutation": m.def.Name, "id": call.id})
	}
	m.hooks.MutationCommitted(m.key, m.def.Name, call.id)
	m.end(call.id, uerr)
	call.finish(PhaseCommitted, res, uerr)
}

// rollback restores this call's own snapshot, discarding anything written
// since, including commits of overlapping calls.
func (m *Mutator[V, I, R]) rollback(ctx context.Context, call *Call[R], snap V, cause *TransportError) error {
	var err error = cause
	if rerr := m.store.Set(ctx, m.key, snap); rerr != nil {
		m.log.Error("rollback restore failed", Fields{"key": m.key, "mutation": m.def.Name, "id": call.id, "err": rerr})
		err = &RollbackError{Key: m.key, Cause: cause, RestoreErr: rerr}
	} else {
		m.log.Warn("mutation rolled back", Fields{"key": m.key, "mutation": m.def.Name, "id": call.id, "err": cause.Err})
	}
	m.hooks.MutationRolledBack(m.key, m.def.Name, call.id, err)
	return err
}

func (m *Mutator[V, I, R]) begin() {
	m.mu.Lock()
	m.state.Pending++
	m.mu.Unlock()
}

func (m *Mutator[V, I, R]) end(id string, err error) {
	m.mu.Lock()
	m.state.Pending--
	m.state.Err = err
	m.state.LastID = id
	m.mu.Unlock()
}

// Call is a handle on one mutation.
type Call[R any] struct {
	id   string
	done chan struct{}

	mu    sync.Mutex
	phase Phase
	res   R
	err   error
}

func newCall[R any](id string) *Call[R] {
	return &Call[R]{id: id, done: make(chan struct{})}
}

func (c *Call[R]) ID() string { return c.id }

func (c *Call[R]) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Done is closed once the call is committed or rolled back.
func (c *Call[R]) Done() <-chan struct{} { return c.done }

// Err returns the call's error once settled; nil before that.
func (c *Call[R]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Wait blocks until the call settles or ctx is done. A ctx error does not
// stop the call.
func (c *Call[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.res, c.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

func (c *Call[R]) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

func (c *Call[R]) finish(p Phase, res R, err error) {
	c.mu.Lock()
	c.phase, c.res, c.err = p, res, err
	c.mu.Unlock()
	close(c.done)
}
