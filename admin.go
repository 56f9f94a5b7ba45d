package usercache

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/go-humanize"

	pr "github.com/unkn0wn-root/usercache/provider"
)

// Stats is a read-only snapshot of the key store. When the store cannot be
// inspected every field is zero and Error explains why.
type Stats struct {
	Keys              []string `json:"keys"`
	KeyCount          int      `json:"key_count"`
	MemoryUsage       string   `json:"memory_usage"`
	MemoryUsageBytes  int64    `json:"memory_usage_bytes"`
	HitCount          int64    `json:"hit_count"`
	MissCount         int64    `json:"miss_count"`
	ServerVersion     string   `json:"server_version"`
	ConnectedClients  int64    `json:"connected_clients"`
	CommandsProcessed int64    `json:"commands_processed"`
	Error             string   `json:"error,omitempty"`
}

// Inspect collects Stats for keys matching pattern. It never fails: an
// unreachable store yields a degraded snapshot. A store that cannot list
// keys still reports its server figures.
func Inspect(ctx context.Context, p pr.Provider, pattern string, timeout time.Duration) Stats {
	st := Stats{Keys: []string{}}
	in, ok := p.(pr.Inspector)
	if !ok {
		st.Error = pr.ErrUnsupported.Error()
		return st
	}

	ctx, cancel := context.WithTimeout(ctx, coalesce[time.Duration](timeout, DefaultOpTimeout))
	defer cancel()

	keys, keysErr := in.Keys(ctx, pattern)
	if keysErr != nil && !errors.Is(keysErr, pr.ErrUnsupported) {
		st.Error = (&KeyStoreError{Op: "keys", Err: keysErr}).Error()
		return st
	}
	info, err := in.Info(ctx)
	if err != nil {
		st.Error = (&KeyStoreError{Op: "info", Err: err}).Error()
		return st
	}

	if keys != nil {
		st.Keys = keys
	}
	st.KeyCount = len(st.Keys)
	st.MemoryUsageBytes = info.UsedMemory
	st.MemoryUsage = info.UsedMemoryHuman
	if st.MemoryUsage == "" {
		st.MemoryUsage = humanize.IBytes(uint64(max(info.UsedMemory, 0)))
	}
	st.HitCount = info.Hits
	st.MissCount = info.Misses
	st.ServerVersion = info.Version
	st.ConnectedClients = info.ConnectedClients
	st.CommandsProcessed = info.CommandsProcessed
	if keysErr != nil {
		st.Error = (&KeyStoreError{Op: "keys", Err: keysErr}).Error()
	}
	return st
}

// Stats inspects the resource's keyspace.
func (r *Resource[V]) Stats(ctx context.Context) Stats {
	return Inspect(ctx, r.provider, r.keys.Pattern(), r.opTimeout)
}

// WarmReport summarizes a WarmAll run.
type WarmReport struct {
	Collection bool          `json:"collection"` // collection key written
	Items      int           `json:"items"`      // item keys written
	Skipped    int           `json:"skipped"`    // entries not written because of a concurrent mutation
	Duration   time.Duration `json:"duration"`
}

// WarmAll loads the whole resource set once and writes the collection key
// plus one item key per record, each with the standard TTL. A data-source
// error aborts the run; re-running only overwrites.
func (r *Resource[V]) WarmAll(ctx context.Context, listAll Loader[[]V]) (rep WarmReport, err error) {
	start := time.Now()
	defer func() { rep.Duration = time.Since(start) }()

	if !r.items.Enabled() {
		r.log.Info("cache disabled; warm-up skipped", nil)
		return rep, nil
	}

	listKey := r.keys.Collection()
	obsList, err := r.list.SnapshotGen(ctx, listKey)
	if err != nil {
		return rep, err
	}

	all, err := listAll(ctx)
	if err != nil {
		return rep, err
	}
	if all == nil {
		all = []V{}
	}

	itemKeys := make([]string, len(all))
	for i, v := range all {
		itemKeys[i] = r.keys.Item(r.id(v))
	}
	obsItems, err := r.items.SnapshotGens(ctx, itemKeys)
	if err != nil {
		return rep, err
	}

	// Every mutation bumps the collection key. If it moved since the listing,
	// an item gen snapshotted above may already cover a newer record.
	cur, err := r.list.SnapshotGen(ctx, listKey)
	if err != nil {
		return rep, err
	}
	if cur != obsList {
		rep.Skipped = len(all) + 1
		r.log.Info("warm-up skipped: resource changed while listing", Fields{"items": len(all)})
		return rep, nil
	}

	switch err := r.list.SetWithGen(ctx, listKey, all, obsList, 0); {
	case errors.Is(err, ErrSuperseded):
		rep.Skipped++
	case err != nil:
		return rep, err
	default:
		rep.Collection = true
	}

	for i, v := range all {
		switch err := r.items.SetWithGen(ctx, itemKeys[i], v, obsItems[itemKeys[i]], 0); {
		case errors.Is(err, ErrSuperseded):
			rep.Skipped++
		case err != nil:
			return rep, err
		default:
			rep.Items++
		}
	}
	r.log.Info("warm-up complete", Fields{"items": rep.Items})
	return rep, nil
}
