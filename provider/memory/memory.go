// Package memory is an in-process Provider with per-entry TTL and full
// introspection. It backs local development and tests; it is not shared
// between processes.
package memory

import (
	"context"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	pr "github.com/unkn0wn-root/usercache/provider"
)

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

func (e entry) expired(now time.Time) bool {
	return !e.exp.IsZero() && now.After(e.exp)
}

type Provider struct {
	mu sync.RWMutex
	m  map[string]entry

	hits   atomic.Int64
	misses atomic.Int64
	cmds   atomic.Int64

	now func() time.Time
}

var (
	_ pr.Provider  = (*Provider)(nil)
	_ pr.Inspector = (*Provider)(nil)
)

func New() *Provider {
	return &Provider{m: make(map[string]entry), now: time.Now}
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.cmds.Add(1)
	now := p.now()

	p.mu.RLock()
	e, ok := p.m[key]
	p.mu.RUnlock()

	if ok && e.expired(now) {
		p.mu.Lock()
		// re-check under write lock; a concurrent Set may have replaced it
		if cur, still := p.m[key]; still && cur.expired(now) {
			delete(p.m, key)
		}
		p.mu.Unlock()
		ok = false
	}
	if !ok {
		p.misses.Add(1)
		return nil, false, nil
	}
	p.hits.Add(1)
	out := make([]byte, len(e.v))
	copy(out, e.v)
	return out, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	p.cmds.Add(1)
	var exp time.Time
	if ttl > 0 {
		exp = p.now().Add(ttl)
	}
	v := make([]byte, len(value))
	copy(v, value)

	p.mu.Lock()
	p.m[key] = entry{v: v, exp: exp}
	p.mu.Unlock()
	return nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.cmds.Add(1)
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *Provider) Keys(_ context.Context, pattern string) ([]string, error) {
	p.cmds.Add(1)
	now := p.now()
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []string
	for k, e := range p.m {
		if e.expired(now) {
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (p *Provider) Info(_ context.Context) (pr.ServerInfo, error) {
	p.cmds.Add(1)
	var used int64
	p.mu.RLock()
	for k, e := range p.m {
		used += int64(len(k) + len(e.v))
	}
	p.mu.RUnlock()

	return pr.ServerInfo{
		Version:           "memory",
		UsedMemory:        used,
		UsedMemoryHuman:   humanize.IBytes(uint64(used)),
		ConnectedClients:  1,
		CommandsProcessed: p.cmds.Load(),
		Hits:              p.hits.Load(),
		Misses:            p.misses.Load(),
	}, nil
}

// Len reports the number of stored entries, expired ones included.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.m)
}

func (p *Provider) Close(context.Context) error { return nil }
