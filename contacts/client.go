// Package contacts keeps a locally cached contact list in step with a remote
// service. Adds and deletes show up in the list immediately and are undone if
// the service rejects them.
package contacts

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/unkn0wn-root/optcache"
	"github.com/unkn0wn-root/optcache/codec"
)

// Key is the cache key holding the collection.
const Key = "contacts"

type Options struct {
	Logger optcache.Logger // if nil, NopLogger is used
	Hooks  optcache.Hooks  // if nil, NopHooks is used

	// Used only when NewClient builds its own store.
	Namespace string                  // default "contacts"
	Codec     codec.Codec[Collection] // default JSON
}

// Status is for display only.
type Status struct {
	Loading  bool  // nothing cached yet and a read is in flight
	Fetching bool  // a read is in flight
	Err      error // last read error
	Add      optcache.MutatorState
	Delete   optcache.MutatorState
}

// pendingAdd carries the placeholder id chosen for one add call.
type pendingAdd struct {
	Input
	Placeholder ID
}

type Client struct {
	store     optcache.Store[Collection]
	ownsStore bool
	log       optcache.Logger

	query *optcache.Query[Collection]
	add   *optcache.Mutator[Collection, pendingAdd, Record]
	del   *optcache.Mutator[Collection, ID, ID]

	lastPlaceholder atomic.Int64
}

// NewClient wires t to store. A nil store is replaced by an in-process one
// that Close releases.
func NewClient(t Transport, store optcache.Store[Collection], opts Options) (*Client, error) {
	if t == nil {
		return nil, fmt.Errorf("contacts: nil transport")
	}
	c := &Client{store: store}
	if opts.Logger != nil {
		c.log = opts.Logger
	} else {
		c.log = optcache.NopLogger{}
	}

	if c.store == nil {
		ns := opts.Namespace
		if ns == "" {
			ns = Key
		}
		s, err := optcache.New[Collection](optcache.Options[Collection]{
			Namespace: ns,
			Codec:     opts.Codec,
			Logger:    opts.Logger,
			Hooks:     opts.Hooks,
		})
		if err != nil {
			return nil, fmt.Errorf("contacts: build store: %w", err)
		}
		c.store, c.ownsStore = s, true
	}

	c.query = optcache.NewQuery(c.store, Key, t.List, optcache.QueryOptions{Logger: opts.Logger, Hooks: opts.Hooks})
	mopts := optcache.MutatorOptions{Logger: opts.Logger, Hooks: opts.Hooks}

	c.add = optcache.NewMutator(c.store, Key, optcache.Mutation[Collection, pendingAdd, Record]{
		Name: "add",
		Optimistic: func(cur Collection, in pendingAdd) Collection {
			return cur.Append(Record{ID: in.Placeholder, Name: in.Name, Phone: in.Phone})
		},
		Remote: func(ctx context.Context, in pendingAdd) (Record, error) {
			return t.Create(ctx, in.Input)
		},
		Reconcile: func(cur Collection, in pendingAdd, rec Record) Collection {
			return cur.Upsert(in.Placeholder, rec)
		},
	}, mopts)

	c.del = optcache.NewMutator(c.store, Key, optcache.Mutation[Collection, ID, ID]{
		Name: "delete",
		Optimistic: func(cur Collection, id ID) Collection {
			return cur.Without(id)
		},
		Remote: t.Remove,
		Reconcile: func(cur Collection, _ ID, removed ID) Collection {
			return cur.Without(removed)
		},
	}, mopts)

	return c, nil
}

// Collection returns the cached list; empty until the first read completes.
func (c *Client) Collection(ctx context.Context) (Collection, error) {
	v, _, err := c.store.Get(ctx, Key)
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = Collection{}
	}
	return v, nil
}

// Refresh reads the list from the service. A read that is overtaken by a
// newer read or by an add or delete is dropped.
func (c *Client) Refresh(ctx context.Context) (Collection, error) {
	v, err := c.query.Fetch(ctx)
	if v == nil && err == nil {
		v = Collection{}
	}
	return v, err
}

// Ensure reads the list only if nothing is cached yet.
func (c *Client) Ensure(ctx context.Context) (Collection, error) {
	v, err := c.query.Ensure(ctx)
	if v == nil && err == nil {
		v = Collection{}
	}
	return v, err
}

// StartAdd appends a placeholder record and returns once it is visible.
func (c *Client) StartAdd(ctx context.Context, in Input) (*optcache.Call[Record], error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return c.add.Start(ctx, pendingAdd{Input: in, Placeholder: c.nextPlaceholder()})
}

// Add creates a record and waits for the service to confirm or reject it.
func (c *Client) Add(ctx context.Context, in Input) (Record, error) {
	call, err := c.StartAdd(ctx, in)
	if err != nil {
		return Record{}, err
	}
	return call.Wait(ctx)
}

// StartDelete removes id from the list and returns once that is visible.
func (c *Client) StartDelete(ctx context.Context, id ID) (*optcache.Call[ID], error) {
	if id < 0 {
		return nil, ErrPendingRecord
	}
	return c.del.Start(ctx, id)
}

func (c *Client) Delete(ctx context.Context, id ID) (ID, error) {
	call, err := c.StartDelete(ctx, id)
	if err != nil {
		return 0, err
	}
	return call.Wait(ctx)
}

func (c *Client) Status(ctx context.Context) Status {
	qs := c.query.State()
	_, loaded, err := c.store.Get(ctx, Key)
	if err != nil {
		c.log.Debug("status: cache read failed", optcache.Fields{"key": Key, "err": err})
	}
	return Status{
		Loading:  qs.Fetching && !loaded,
		Fetching: qs.Fetching,
		Err:      qs.Err,
		Add:      c.add.State(),
		Delete:   c.del.State(),
	}
}

// Close releases the store if NewClient created it.
func (c *Client) Close(ctx context.Context) error {
	if !c.ownsStore {
		return nil
	}
	return c.store.Close(ctx)
}

func (c *Client) nextPlaceholder() ID {
	return ID(-c.lastPlaceholder.Add(1))
}
