// Package usercache is a read-through cache for a CRUD resource in front of a
// key-value store. Reads are served from the store when possible and populated
// on miss; every mutation synchronously invalidates the affected entries.
//
// Components:
//   - Provider: byte store with TTL (Redis, BigCache, Ristretto, in-memory).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - GenStore: generation counter per key. Local (in-process) by default,
//     optional Redis implementation shared with out-of-band tooling.
//   - Resource[V]: binds a Keyspace, list/item caches and invalidation.
//
// Keys:
//
//	<prefix>_list  - the full collection
//	<prefix>_<id>  - a single item, id in decimal
//
// Populate guard:
//
//	obs := gen(k)          // before the data-source read
//	v   := load()
//	set(k, v) iff gen(k) == obs
//
// Invalidation bumps gen(k) and deletes k, so a read that raced with a write
// can return its in-flight value but never repopulates a stale snapshot.
//
// The store is best effort: its failures degrade reads to misses and are
// logged on writes. The data source is always the source of truth.
package usercache
