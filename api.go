package usercache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/usercache/codec"
	gen "github.com/unkn0wn-root/usercache/genstore"
	pr "github.com/unkn0wn-root/usercache/provider"
)

// Loader reads the authoritative value from the data source.
type Loader[V any] func(ctx context.Context) (V, error)

// Cache is the read-through cache for values of type V.
// Keys are storage keys, usually derived with a Keyspace.
type Cache[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// GetOrLoad returns the cached value for key or, on miss, calls load and
	// stores the result with the configured TTL. Key-store failures never
	// surface here; load errors are returned verbatim and never cached.
	GetOrLoad(ctx context.Context, key string, load Loader[V]) (V, error)

	// Get is a plain lookup. A key-store failure is returned as
	// *KeyStoreError together with ok=false.
	Get(ctx context.Context, key string) (v V, ok bool, err error)

	// SetWithGen writes value iff the key's generation still equals
	// observedGen, else returns ErrSuperseded. ttl <= 0 selects the
	// configured TTL.
	SetWithGen(ctx context.Context, key string, value V, observedGen uint64, ttl time.Duration) error

	// Invalidate bumps each key's generation and deletes it.
	// Deleting an absent key is not an error.
	Invalidate(ctx context.Context, keys ...string) error

	// Generation snapshots (take them before reading the data source).
	SnapshotGen(ctx context.Context, key string) (uint64, error)
	SnapshotGens(ctx context.Context, keys []string) (map[string]uint64, error)
}

// Options tune the behavior of the cache.
// Only Provider and Codec are required; others have sensible defaults.
type Options[V any] struct {
	// Required
	Provider pr.Provider
	Codec    c.Codec[V]

	Logger          Logger        // if nil, NopLogger is used
	Hooks           Hooks         // if nil, NopHooks is used
	TTL             time.Duration // 0 => DefaultTTL (3600s)
	OpTimeout       time.Duration // per key-store call; 0 => 500ms
	CleanupInterval time.Duration // local gen sweep; 0 => 1h
	GenRetention    time.Duration // local gen retention; 0 => 30d
	GenStore        gen.GenStore  // nil => LocalGenStore (in-process)
	Disabled        bool          // default false (enabled)
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
