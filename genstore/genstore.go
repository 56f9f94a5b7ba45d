// Package genstore keeps one generation counter per cache key. A cached
// value is framed with the generation it was written at and is only served
// while that generation is current; invalidation bumps it.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where per-key generations live.
// Use LocalGenStore (default) for in-process gens, or RedisGenStore when the
// serving process and out-of-band tooling (warm-up) must agree on generations.
//
// One GenStore is shared by the collection and the item caches of a
// resource, so a single bump covers "<prefix>_list" and "<prefix>_<id>".
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	// A read-through takes it before calling the data source.
	Snapshot(ctx context.Context, storageKey string) (uint64, error)

	// SnapshotMany returns gens for many keys; missing => 0.
	// Warm-up snapshots every item key of a listing in one call; each write
	// is then checked against its snapshot, so an item invalidated meanwhile
	// is skipped instead of written stale.
	SnapshotMany(ctx context.Context, storageKeys []string) (map[string]uint64, error)

	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, storageKey string) (uint64, error)

	// BumpMany increments every key; one round-trip where the backend allows.
	// Update and delete pass the collection key and the item key together,
	// so both are superseded before either is deleted from the store.
	BumpMany(ctx context.Context, storageKeys []string) (map[string]uint64, error)

	// Cleanup prunes generations untouched for longer than retention.
	// No-op for Redis, which expires them itself.
	Cleanup(retention time.Duration)

	// Close releases resources (no-op ok).
	Close(context.Context) error
}
