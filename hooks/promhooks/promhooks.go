// Package promhooks exports cache events as Prometheus counters.
//
// Keys are folded into a low-cardinality "kind" label (collection or item)
// so the series count does not grow with the number of records.
package promhooks

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/usercache"
)

// Hooks holds the counters. Register them with Register or read them
// through Registry.
type Hooks struct {
	registry *prometheus.Registry

	Hits              *prometheus.CounterVec
	Misses            *prometheus.CounterVec
	SelfHeals         *prometheus.CounterVec
	SetsSkipped       *prometheus.CounterVec
	KeyStoreErrors    *prometheus.CounterVec
	GenErrors         *prometheus.CounterVec
	Invalidations     *prometheus.CounterVec
	InvalidateOutages prometheus.Counter
}

var _ usercache.Hooks = (*Hooks)(nil)

// New creates the counters under namespace and registers them in a fresh
// registry.
func New(namespace string) *Hooks {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		}, labels)
	}

	h := &Hooks{
		registry:       prometheus.NewRegistry(),
		Hits:           counter("hits_total", "Reads served from the key store", "kind"),
		Misses:         counter("misses_total", "Reads that fell through to the data source", "kind"),
		SelfHeals:      counter("self_heals_total", "Stored entries deleted on read", "kind", "reason"),
		SetsSkipped:    counter("sets_skipped_total", "Populates dropped because the key was invalidated during the load", "kind"),
		KeyStoreErrors: counter("key_store_errors_total", "Failed key store round-trips", "op"),
		GenErrors:      counter("gen_errors_total", "Failed generation store calls", "op"),
		Invalidations:  counter("invalidations_total", "Keys invalidated after a mutation", "kind"),
		InvalidateOutages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidate_outages_total",
			Help:      "Invalidations where both the generation bump and the delete failed",
		}),
	}
	h.registry.MustRegister(
		h.Hits, h.Misses, h.SelfHeals, h.SetsSkipped,
		h.KeyStoreErrors, h.GenErrors, h.Invalidations, h.InvalidateOutages,
	)
	return h
}

// Registry returns the registry holding the cache counters.
func (h *Hooks) Registry() *prometheus.Registry { return h.registry }

func kind(key string) string {
	if strings.HasSuffix(key, "_list") {
		return usercache.Collection.String()
	}
	return usercache.Item.String()
}

func (h *Hooks) Hit(k string)  { h.Hits.WithLabelValues(kind(k)).Inc() }
func (h *Hooks) Miss(k string) { h.Misses.WithLabelValues(kind(k)).Inc() }

func (h *Hooks) SelfHeal(k, reason string) {
	h.SelfHeals.WithLabelValues(kind(k), reason).Inc()
}

func (h *Hooks) SetSkipped(k string) { h.SetsSkipped.WithLabelValues(kind(k)).Inc() }

func (h *Hooks) KeyStoreError(op, _ string, _ error) {
	h.KeyStoreErrors.WithLabelValues(op).Inc()
}

func (h *Hooks) GenSnapshotError(string, error) { h.GenErrors.WithLabelValues("snapshot").Inc() }
func (h *Hooks) GenBumpError([]string, error)   { h.GenErrors.WithLabelValues("bump").Inc() }

func (h *Hooks) Invalidated(k string) { h.Invalidations.WithLabelValues(kind(k)).Inc() }

func (h *Hooks) InvalidateOutage(string, error, error) { h.InvalidateOutages.Inc() }
