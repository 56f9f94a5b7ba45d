package usercache

import (
	"context"
	"fmt"
	"time"

	c "github.com/unkn0wn-root/usercache/codec"
	gen "github.com/unkn0wn-root/usercache/genstore"
	pr "github.com/unkn0wn-root/usercache/provider"
)

// ResourceOptions configure a Resource. Keyspace, Provider, both codecs and
// ID are required.
type ResourceOptions[V any] struct {
	Keyspace  Keyspace
	Provider  pr.Provider
	ListCodec c.Codec[[]V]
	ItemCodec c.Codec[V]
	ID        func(V) int64

	Logger    Logger
	Hooks     Hooks
	TTL       time.Duration
	OpTimeout time.Duration
	GenStore  gen.GenStore // shared by the list and item caches; nil => local
	Disabled  bool
}

// Resource caches the collection and the items of one resource type and
// invalidates them on mutation. It is safe for concurrent use.
type Resource[V any] struct {
	keys      Keyspace
	provider  pr.Provider
	list      Cache[[]V]
	items     Cache[V]
	id        func(V) int64
	log       Logger
	opTimeout time.Duration
}

func NewResource[V any](opts ResourceOptions[V]) (*Resource[V], error) {
	if opts.Keyspace.Prefix == "" {
		return nil, fmt.Errorf("usercache: keyspace is required")
	}
	if opts.ID == nil {
		return nil, fmt.Errorf("usercache: id func is required")
	}
	if opts.ListCodec == nil || opts.ItemCodec == nil {
		return nil, ErrNilCodec
	}
	if opts.Provider == nil {
		return nil, ErrNilProvider
	}

	log := coalesce[Logger](opts.Logger, NopLogger{}).With(Fields{"keyspace": opts.Keyspace.Prefix})
	gs := opts.GenStore
	if gs == nil {
		gs = gen.NewLocalGenStore(defaultSweep, defaultGenRetention)
	}

	list, err := newCache[[]V](Options[[]V]{
		Provider:  opts.Provider,
		Codec:     opts.ListCodec,
		Logger:    log,
		Hooks:     opts.Hooks,
		TTL:       opts.TTL,
		OpTimeout: opts.OpTimeout,
		GenStore:  gs,
		Disabled:  opts.Disabled,
	})
	if err != nil {
		return nil, err
	}
	items, err := newCache[V](Options[V]{
		Provider:  opts.Provider,
		Codec:     opts.ItemCodec,
		Logger:    log,
		Hooks:     opts.Hooks,
		TTL:       opts.TTL,
		OpTimeout: opts.OpTimeout,
		GenStore:  gs,
		Disabled:  opts.Disabled,
	})
	if err != nil {
		return nil, err
	}

	return &Resource[V]{
		keys:      opts.Keyspace,
		provider:  opts.Provider,
		list:      list,
		items:     items,
		id:        opts.ID,
		log:       log,
		opTimeout: coalesce[time.Duration](opts.OpTimeout, DefaultOpTimeout),
	}, nil
}

func (r *Resource[V]) Keyspace() Keyspace { return r.keys }

// List serves the collection key.
func (r *Resource[V]) List(ctx context.Context, load Loader[[]V]) ([]V, error) {
	return r.list.GetOrLoad(ctx, r.keys.Collection(), load)
}

// Get serves the item key for id. A not-found error from load is returned
// as is and never cached.
func (r *Resource[V]) Get(ctx context.Context, id int64, load Loader[V]) (V, error) {
	return r.items.GetOrLoad(ctx, r.keys.Item(id), load)
}

// OnCreate must run after a create commits and before it is reported as
// successful. No item key exists for the new record yet.
func (r *Resource[V]) OnCreate(ctx context.Context) {
	r.invalidate(ctx, "create", r.keys.Collection())
}

// OnUpdate must run after an update commits and before it is reported as
// successful.
func (r *Resource[V]) OnUpdate(ctx context.Context, id int64) {
	r.invalidate(ctx, "update", r.keys.Collection(), r.keys.Item(id))
}

// OnDelete must run after a delete commits and before it is reported as
// successful.
func (r *Resource[V]) OnDelete(ctx context.Context, id int64) {
	r.invalidate(ctx, "delete", r.keys.Collection(), r.keys.Item(id))
}

// invalidate never fails the mutation: the write already committed and the
// bumped generation keeps a surviving entry from being served. It completes
// even when ctx is already cancelled (client gone after the commit).
func (r *Resource[V]) invalidate(ctx context.Context, cause string, keys ...string) {
	if err := r.list.Invalidate(ctx, keys...); err != nil {
		r.log.Error("invalidation incomplete", Fields{"cause": cause, "keys": keys, "err": err})
	}
}

// Close releases the generation store and the provider. The list and item
// caches share both, so closing one of them is enough.
func (r *Resource[V]) Close(ctx context.Context) error {
	return r.items.Close(ctx)
}
