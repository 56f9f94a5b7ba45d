package breaker

import (
	"context"
	"time"

	gen "github.com/unkn0wn-root/usercache/genstore"
)

// GenStore puts generation snapshots behind the provider's circuit. Use it
// when generations live in the same server as the cached values (redis gen
// store): every miss snapshots a generation, and without the shared circuit
// each one would wait out the op timeout during an outage.
//
// Bumps bypass the circuit for the same reason deletes do.
func (p *Provider) GenStore(inner gen.GenStore) gen.GenStore {
	return &genStore{inner: inner, p: p}
}

type genStore struct {
	inner gen.GenStore
	p     *Provider
}

func (g *genStore) Snapshot(ctx context.Context, key string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	res, err := g.p.cb.Execute(func() (interface{}, error) {
		return g.inner.Snapshot(ctx, key)
	})
	if err != nil {
		return 0, mapErr(err)
	}
	return res.(uint64), nil
}

func (g *genStore) SnapshotMany(ctx context.Context, keys []string) (map[string]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := g.p.cb.Execute(func() (interface{}, error) {
		return g.inner.SnapshotMany(ctx, keys)
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return res.(map[string]uint64), nil
}

func (g *genStore) Bump(ctx context.Context, key string) (uint64, error) {
	return g.inner.Bump(ctx, key)
}

func (g *genStore) BumpMany(ctx context.Context, keys []string) (map[string]uint64, error) {
	return g.inner.BumpMany(ctx, keys)
}

func (g *genStore) Cleanup(retention time.Duration) { g.inner.Cleanup(retention) }

func (g *genStore) Close(ctx context.Context) error { return g.inner.Close(ctx) }
