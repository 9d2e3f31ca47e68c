package contacts

import "context"

// Transport reaches the authoritative contact list. Every error is reported
// to callers wrapped in *optcache.TransportError.
type Transport interface {
	List(ctx context.Context) (Collection, error)
	Create(ctx context.Context, in Input) (Record, error)
	// Remove returns the id the server confirmed as removed.
	Remove(ctx context.Context, id ID) (ID, error)
}
