package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"
	"github.com/dustin/go-humanize"

	pr "github.com/unkn0wn-root/usercache/provider"
)

// Provider is an admission-controlled in-process store. Ristretto may
// reject a Set under contention; a rejected Set is reported as a miss on the
// next read, which the read-through path already tolerates.
type Provider struct {
	c *rc.Cache
}

var (
	_ pr.Provider  = (*Provider)(nil)
	_ pr.Inspector = (*Provider)(nil)
)

type Config struct {
	NumCounters int64
	MaxCost     int64 // cost is the payload length in bytes
	BufferItems int64
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set waits for the write buffer to drain so a read right after a miss
// observes the populated entry.
func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	p.c.SetWithTTL(key, value, int64(len(value)), ttl)
	p.c.Wait()
	return nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

// Keys is unsupported: ristretto stores hashed keys only.
func (p *Provider) Keys(context.Context, string) ([]string, error) {
	return nil, pr.ErrUnsupported
}

func (p *Provider) Info(_ context.Context) (pr.ServerInfo, error) {
	m := p.c.Metrics
	used := int64(m.CostAdded() - m.CostEvicted())
	if used < 0 {
		used = 0
	}
	return pr.ServerInfo{
		Version:         "ristretto",
		UsedMemory:      used,
		UsedMemoryHuman: humanize.IBytes(uint64(used)),
		Hits:            int64(m.Hits()),
		Misses:          int64(m.Misses()),
	}, nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}
