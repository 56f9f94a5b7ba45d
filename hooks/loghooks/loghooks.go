// Package loghooks reports cache events through a usercache.Logger.
package loghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	"github.com/unkn0wn-root/usercache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery   uint64
	StoreErrorEvery uint64
	// Log hits and misses at debug level.
	Traffic bool
	// Optional key redactor. Defaults to the key itself; keys carry only
	// a resource name and a numeric id.
	Redact func(string) string
}

type Hooks struct {
	l    usercache.Logger
	opts Options

	selfHealCtr   atomic.Uint64
	storeErrorCtr atomic.Uint64
}

var _ usercache.Hooks = (*Hooks)(nil)

func New(l usercache.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

// HashRedact replaces a key with a short SHA-256 prefix.
func HashRedact(k string) string {
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return k
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Hit(key string) {
	if h.l == nil || !h.opts.Traffic {
		return
	}
	h.l.Debug("usercache.hit", usercache.Fields{"key": h.redact(key)})
}

func (h *Hooks) Miss(key string) {
	if h.l == nil || !h.opts.Traffic {
		return
	}
	h.l.Debug("usercache.miss", usercache.Fields{"key": h.redact(key)})
}

func (h *Hooks) SelfHeal(key, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("usercache.self_heal", usercache.Fields{
		"key":    h.redact(key),
		"reason": reason,
	})
}

func (h *Hooks) SetSkipped(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("usercache.set_skipped", usercache.Fields{"key": h.redact(key)})
}

func (h *Hooks) KeyStoreError(op, key string, err error) {
	if h.l == nil || !sample(h.opts.StoreErrorEvery, &h.storeErrorCtr) {
		return
	}
	h.l.Warn("usercache.key_store_error", usercache.Fields{
		"op":  op,
		"key": h.redact(key),
		"err": err,
	})
}

func (h *Hooks) GenSnapshotError(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("usercache.gen_snapshot_error", usercache.Fields{
		"key": h.redact(key),
		"err": err,
	})
}

func (h *Hooks) GenBumpError(keys []string, err error) {
	if h.l == nil {
		return
	}
	red := make([]string, len(keys))
	for i, k := range keys {
		red[i] = h.redact(k)
	}
	h.l.Warn("usercache.gen_bump_error", usercache.Fields{
		"keys": red,
		"err":  err,
	})
}

func (h *Hooks) Invalidated(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("usercache.invalidated", usercache.Fields{"key": h.redact(key)})
}

func (h *Hooks) InvalidateOutage(key string, bumpErr, delErr error) {
	if h.l == nil {
		return
	}
	h.l.Error("usercache.invalidate_outage", usercache.Fields{
		"key":      h.redact(key),
		"bump_err": bumpErr,
		"del_err":  delErr,
	})
}
