// Package optcache keeps a locally cached value consistent with a remote source
// while mutations are applied optimistically, ahead of their server round-trip.
//
// Components:
//   - Store[V]: one value per logical key, held as framed bytes in a Provider
//     and guarded by a per-key read generation (GenStore). Reads that were
//     superseded by a newer read or by a mutation are discarded, never applied.
//   - Query[V]: runs a fetch function against a key under a generation token.
//   - Mutator[V, I, R]: drives one kind of optimistic mutation through
//     Preparing -> Optimistic -> Committed | RolledBack.
//
// Keys:
//
//	entry:<ns>:<key>  - cached value (and its generation in the GenStore)
//
// Read pattern:
//
//	tok, _ := store.BeginRead(ctx, k)
//	v, err := fetch(ctx)
//	err = store.CompleteRead(ctx, k, tok, v) // ErrStaleRead if tok was superseded
//
// Mutation pattern:
//
//	snap, _, _ := store.Swap(ctx, k, provisional) // cancels pending reads
//	res, err := remote(ctx)
//	if err != nil {
//		_ = store.Set(ctx, k, snap) // rollback to this call's own snapshot
//	} else {
//		_ = store.Update(ctx, k, reconcile(res))
//	}
//
// Rollbacks restore the snapshot captured by the failing call itself. When two
// mutations overlap and the later one fails after the earlier one committed,
// the failing call's rollback wins and the earlier commit is no longer
// visible until the next read.
package optcache
