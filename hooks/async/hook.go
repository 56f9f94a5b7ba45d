// Package asynchook moves hook delivery off the request path.
//
// usage:
//
//	raw := loghooks.New(logger, loghooks.Options{SelfHealEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	res, _ := usercache.NewResource[User](usercache.ResourceOptions[User]{
//	    Keyspace: usercache.Keyspace{Prefix: "user"},
//	    Provider: provider,
//	    Hooks:    hooks, // or `raw` if you don't want async
//	    ...
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/usercache"
)

// Hooks queues every event for a small worker pool. When the queue is full
// the event is dropped; Dropped reports how many.
type Hooks struct {
	inner   usercache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ usercache.Hooks = (*Hooks)(nil)

func New(inner usercache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}
	if inner == nil {
		inner = usercache.NopHooks{}
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events fired after
// Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) Hit(k string)                { h.try(func() { h.inner.Hit(k) }) }
func (h *Hooks) Miss(k string)               { h.try(func() { h.inner.Miss(k) }) }
func (h *Hooks) SelfHeal(k, r string)        { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) SetSkipped(k string)         { h.try(func() { h.inner.SetSkipped(k) }) }
func (h *Hooks) Invalidated(k string)        { h.try(func() { h.inner.Invalidated(k) }) }
func (h *Hooks) GenSnapshotError(k string, err error) {
	h.try(func() { h.inner.GenSnapshotError(k, err) })
}
func (h *Hooks) GenBumpError(ks []string, err error) {
	h.try(func() { h.inner.GenBumpError(ks, err) })
}
func (h *Hooks) KeyStoreError(op, k string, err error) {
	h.try(func() { h.inner.KeyStoreError(op, k, err) })
}
func (h *Hooks) InvalidateOutage(k string, be, de error) {
	h.try(func() { h.inner.InvalidateOutage(k, be, de) })
}
