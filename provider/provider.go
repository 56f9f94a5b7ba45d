// Package provider defines the key-value store abstraction used by usercache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key (no prepended/appended
// metadata, no re-encoding, no mutation). If a store performs internal transforms
// (e.g., compression), they MUST be fully reversed.
//
// Important: the keyspace "<prefix>_" of every usercache.Keyspace is owned by
// usercache. External code MUST NOT write values under those keys. Foreign writes
// fail wire-format validation on read and are deleted.
package provider

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupported is returned by introspection calls a store cannot answer
// (e.g. key enumeration on an admission-controlled cache).
var ErrUnsupported = errors.New("provider: operation not supported")

// Provider is a minimal byte store with TTLs.
// Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes a key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Inspector is the optional introspection surface of a store.
type Inspector interface {
	// Keys lists keys matching a glob pattern ("*", "user_*").
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Info returns a server/statistics snapshot.
	Info(ctx context.Context) (ServerInfo, error)
}

// ServerInfo is what a store reports about itself.
// Fields a store cannot provide stay zero.
type ServerInfo struct {
	Version           string
	UsedMemory        int64
	UsedMemoryHuman   string
	ConnectedClients  int64
	CommandsProcessed int64
	Hits              int64
	Misses            int64
}
