package contacts

import (
	"context"
	"errors"
	"sync"
)

var errRejected = errors.New("server rejected")

// fakeTransport serves a list and lets tests hold each call until released.
type fakeTransport struct {
	mu     sync.Mutex
	list   Collection
	nextID ID
	hold   bool

	gates   chan chan error // one per held call, in call order
	creates []Input
	removes []ID
}

func newFakeTransport(list Collection, nextID ID) *fakeTransport {
	return &fakeTransport{list: list, nextID: nextID, gates: make(chan chan error, 16)}
}

// holdCalls makes every later call block until released through next.
func (f *fakeTransport) holdCalls() {
	f.mu.Lock()
	f.hold = true
	f.mu.Unlock()
}

// next returns the release channel of the next held call, waiting for the
// call to arrive. Sending nil lets it succeed; an error fails it.
func (f *fakeTransport) next() chan error { return <-f.gates }

func (f *fakeTransport) wait(ctx context.Context) error {
	f.mu.Lock()
	hold := f.hold
	f.mu.Unlock()
	if !hold {
		return nil
	}
	gate := make(chan error, 1)
	f.gates <- gate
	select {
	case err := <-gate:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTransport) List(ctx context.Context) (Collection, error) {
	f.mu.Lock()
	snap := f.list.Clone()
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return snap, nil
}

func (f *fakeTransport) Create(ctx context.Context, in Input) (Record, error) {
	f.mu.Lock()
	f.creates = append(f.creates, in)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return Record{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := Record{ID: f.nextID, Name: in.Name, Phone: in.Phone}
	f.nextID++
	f.list = f.list.Append(rec)
	return rec, nil
}

func (f *fakeTransport) Remove(ctx context.Context, id ID) (ID, error) {
	f.mu.Lock()
	f.removes = append(f.removes, id)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return 0, err
	}
	f.mu.Lock()
	f.list = f.list.Without(id)
	f.mu.Unlock()
	return id, nil
}
