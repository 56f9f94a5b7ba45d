package usercache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// A read found a live entry / did not.
	Hit(key string)
	Miss(key string)

	// An entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "gen_mismatch", "value_decode"}
	SelfHeal(key, reason string)

	// A populate was not written because the key was invalidated while the
	// value was loading.
	SetSkipped(key string)

	// A key-store round-trip failed. op ∈ {"get", "set", "del", "keys", "info"}
	KeyStoreError(op, key string, err error)

	// GenStore errors (snapshot or bump).
	GenSnapshotError(key string, err error)
	GenBumpError(keys []string, err error)

	// An entry was invalidated after a mutation.
	Invalidated(key string)

	// Both gen bump and delete failed during Invalidate (likely backend outage).
	InvalidateOutage(key string, bumpErr, delErr error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(string)                            {}
func (NopHooks) Miss(string)                           {}
func (NopHooks) SelfHeal(string, string)               {}
func (NopHooks) SetSkipped(string)                     {}
func (NopHooks) KeyStoreError(string, string, error)   {}
func (NopHooks) GenSnapshotError(string, error)        {}
func (NopHooks) GenBumpError([]string, error)          {}
func (NopHooks) Invalidated(string)                    {}
func (NopHooks) InvalidateOutage(string, error, error) {}

// MultiHooks fans every event out to each of hs in order.
type MultiHooks []Hooks

var _ Hooks = MultiHooks(nil)

func (m MultiHooks) Hit(k string) {
	for _, h := range m {
		h.Hit(k)
	}
}

func (m MultiHooks) Miss(k string) {
	for _, h := range m {
		h.Miss(k)
	}
}

func (m MultiHooks) SelfHeal(k, reason string) {
	for _, h := range m {
		h.SelfHeal(k, reason)
	}
}

func (m MultiHooks) SetSkipped(k string) {
	for _, h := range m {
		h.SetSkipped(k)
	}
}

func (m MultiHooks) KeyStoreError(op, k string, err error) {
	for _, h := range m {
		h.KeyStoreError(op, k, err)
	}
}

func (m MultiHooks) GenSnapshotError(k string, err error) {
	for _, h := range m {
		h.GenSnapshotError(k, err)
	}
}

func (m MultiHooks) GenBumpError(ks []string, err error) {
	for _, h := range m {
		h.GenBumpError(ks, err)
	}
}

func (m MultiHooks) Invalidated(k string) {
	for _, h := range m {
		h.Invalidated(k)
	}
}

func (m MultiHooks) InvalidateOutage(k string, bumpErr, delErr error) {
	for _, h := range m {
		h.InvalidateOutage(k, bumpErr, delErr)
	}
}
