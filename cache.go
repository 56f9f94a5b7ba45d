package usercache

import (
	"context"
	"errors"
	"time"

	c "github.com/unkn0wn-root/usercache/codec"
	gen "github.com/unkn0wn-root/usercache/genstore"
	"github.com/unkn0wn-root/usercache/internal/wire"
	pr "github.com/unkn0wn-root/usercache/provider"
)

type cache[V any] struct {
	provider  pr.Provider
	codec     c.Codec[V]
	log       Logger
	hooks     Hooks
	enabled   bool
	ttl       time.Duration
	opTimeout time.Duration
	gen       gen.GenStore
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Provider == nil {
		return nil, ErrNilProvider
	}
	if opts.Codec == nil {
		return nil, ErrNilCodec
	}

	cc := &cache[V]{
		provider: opts.Provider,
		codec:    opts.Codec,
		enabled:  !opts.Disabled,
	}

	// defaults
	cc.log = coalesce[Logger](opts.Logger, NopLogger{})
	cc.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	cc.ttl = coalesce[time.Duration](opts.TTL, DefaultTTL)
	cc.opTimeout = coalesce[time.Duration](opts.OpTimeout, DefaultOpTimeout)

	if opts.GenStore != nil {
		cc.gen = opts.GenStore
	} else {
		// default to in-process generations with periodic cleanup
		cc.gen = gen.NewLocalGenStore(
			coalesce[time.Duration](opts.CleanupInterval, defaultSweep),
			coalesce[time.Duration](opts.GenRetention, defaultGenRetention),
		)
	}
	return cc, nil
}

func (cc *cache[V]) Enabled() bool { return cc.enabled }

func (cc *cache[V]) Close(ctx context.Context) error {
	// Close gen store first (best effort)
	if cc.gen != nil {
		_ = cc.gen.Close(ctx)
	}
	if cc.provider != nil {
		return cc.provider.Close(ctx)
	}
	return nil
}

// op bounds a single key-store round-trip.
func (cc *cache[V]) op(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, cc.opTimeout)
}

func (cc *cache[V]) GetOrLoad(ctx context.Context, key string, load Loader[V]) (V, error) {
	if !cc.enabled {
		return load(ctx)
	}

	if v, ok, _ := cc.Get(ctx, key); ok {
		cc.hooks.Hit(key)
		return v, nil
	}
	cc.hooks.Miss(key)

	// Snapshot before loading: an invalidation racing with the load moves the
	// generation and the populate below is skipped.
	obs, genErr := cc.SnapshotGen(ctx, key)

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if genErr != nil {
		return v, nil
	}
	if err := cc.SetWithGen(ctx, key, v, obs, 0); err != nil && !errors.Is(err, ErrSuperseded) {
		cc.log.Warn("populate failed; serving uncached value", Fields{"key": key, "err": err})
	}
	return v, nil
}

func (cc *cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if !cc.enabled {
		return zero, false, nil
	}

	octx, cancel := cc.op(ctx)
	raw, ok, err := cc.provider.Get(octx, key)
	cancel()
	if err != nil {
		cc.hooks.KeyStoreError("get", key, err)
		cc.log.Debug("key store get failed; treating as miss", Fields{"key": key, "err": err})
		return zero, false, &KeyStoreError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		return zero, false, nil
	}

	g, payload, err := wire.Decode(raw)
	if err != nil {
		cc.discard(ctx, key, "corrupt")
		return zero, false, nil
	}
	cur, err := cc.SnapshotGen(ctx, key)
	if err != nil {
		// cannot validate; leave the entry for a later read
		return zero, false, nil
	}
	if g != cur {
		cc.discard(ctx, key, "gen_mismatch")
		return zero, false, nil
	}
	v, err := cc.codec.Decode(payload)
	if err != nil {
		cc.discard(ctx, key, "value_decode")
		return zero, false, nil
	}
	return v, true, nil
}

func (cc *cache[V]) SetWithGen(ctx context.Context, key string, value V, observedGen uint64, ttl time.Duration) error {
	if !cc.enabled {
		return nil
	}
	if ttl <= 0 {
		ttl = cc.ttl
	}

	cur, err := cc.SnapshotGen(ctx, key)
	if err != nil {
		return err
	}
	if cur != observedGen {
		// generation moved; skip stale write
		cc.hooks.SetSkipped(key)
		cc.log.Debug("populate skipped (gen mismatch)", Fields{"key": key, "obs": observedGen, "cur": cur})
		return ErrSuperseded
	}

	payload, err := cc.codec.Encode(value)
	if err != nil {
		return err
	}
	octx, cancel := cc.op(ctx)
	defer cancel()
	if err := cc.provider.Set(octx, key, wire.Encode(observedGen, payload), ttl); err != nil {
		cc.hooks.KeyStoreError("set", key, err)
		return &KeyStoreError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Invalidate bumps the generation of keys, then deletes them. It runs after
// a committed write, so the caller's cancellation is ignored; each store call
// is still bounded by the op timeout.
func (cc *cache[V]) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)

	bctx, cancel := cc.op(ctx)
	gens, bumpErr := cc.gen.BumpMany(bctx, keys)
	cancel()
	if bumpErr != nil {
		cc.hooks.GenBumpError(keys, bumpErr)
	}

	var errs []error
	for _, k := range keys {
		octx, cancel := cc.op(ctx)
		delErr := cc.provider.Del(octx, k)
		cancel()

		switch {
		case bumpErr != nil && delErr != nil:
			cc.hooks.InvalidateOutage(k, bumpErr, delErr)
		case delErr != nil:
			cc.hooks.KeyStoreError("del", k, delErr)
		default:
			cc.hooks.Invalidated(k)
		}
		if bumpErr != nil || delErr != nil {
			errs = append(errs, &InvalidateError{Key: k, BumpErr: bumpErr, DelErr: delErr})
			continue
		}
		cc.log.Debug("invalidated key (bumped gen + deleted)", Fields{"key": k, "gen": gens[k]})
	}
	return errors.Join(errs...)
}

func (cc *cache[V]) SnapshotGen(ctx context.Context, key string) (uint64, error) {
	octx, cancel := cc.op(ctx)
	defer cancel()
	g, err := cc.gen.Snapshot(octx, key)
	if err != nil {
		cc.hooks.GenSnapshotError(key, err)
		cc.log.Warn("gen snapshot error", Fields{"key": key, "err": err})
		return 0, err
	}
	return g, nil
}

func (cc *cache[V]) SnapshotGens(ctx context.Context, keys []string) (map[string]uint64, error) {
	octx, cancel := cc.op(ctx)
	defer cancel()
	m, err := cc.gen.SnapshotMany(octx, keys)
	if err != nil {
		cc.hooks.GenSnapshotError("", err)
		cc.log.Warn("gen snapshot error", Fields{"keys": len(keys), "err": err})
		return nil, err
	}
	return m, nil
}

// discard deletes an unusable entry without touching its generation.
func (cc *cache[V]) discard(ctx context.Context, key, reason string) {
	cc.hooks.SelfHeal(key, reason)
	octx, cancel := cc.op(ctx)
	defer cancel()
	if err := cc.provider.Del(octx, key); err != nil {
		cc.hooks.KeyStoreError("del", key, err)
	}
}
