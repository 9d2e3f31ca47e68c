// Package genstore holds per-key read generations.
//
// A generation only moves forward. Readers capture it before fetching and the
// store applies their result only if it has not moved since. LocalGenStore is
// the in-process default; RedisGenStore shares generations between processes
// that share a Redis provider.
package genstore

import (
	"context"
	"time"
)

type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, storageKey string) (uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, storageKey string) (uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
