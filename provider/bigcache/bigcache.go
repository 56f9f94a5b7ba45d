package bigcache

import (
	"context"
	"errors"
	"path"
	"time"

	bc "github.com/allegro/bigcache/v3"
	"github.com/dustin/go-humanize"

	pr "github.com/unkn0wn-root/usercache/provider"
)

// Provider is an in-process store. BigCache has no per-entry TTL: every
// entry lives for LifeWindow regardless of the TTL passed to Set.
type Provider struct {
	c *bc.BigCache
}

var (
	_ pr.Provider  = (*Provider)(nil)
	_ pr.Inspector = (*Provider)(nil)
)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(ctx context.Context, cfg Config) (*Provider, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	return p.c.Set(key, value)
}

func (p *Provider) Del(_ context.Context, key string) error {
	if err := p.c.Delete(key); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
		return err
	}
	return nil
}

func (p *Provider) Keys(_ context.Context, pattern string) ([]string, error) {
	var out []string
	it := p.c.Iterator()
	for it.SetNext() {
		e, err := it.Value()
		if err != nil {
			return nil, err
		}
		if ok, _ := path.Match(pattern, e.Key()); ok {
			out = append(out, e.Key())
		}
	}
	return out, nil
}

func (p *Provider) Info(_ context.Context) (pr.ServerInfo, error) {
	st := p.c.Stats()
	used := int64(p.c.Capacity())
	return pr.ServerInfo{
		Version:         "bigcache/v3",
		UsedMemory:      used,
		UsedMemoryHuman: humanize.IBytes(uint64(used)),
		Hits:            st.Hits,
		Misses:          st.Misses,
	}, nil
}

func (p *Provider) Close(_ context.Context) error {
	return p.c.Close()
}
