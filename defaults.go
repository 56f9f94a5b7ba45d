package usercache

import "time"

const (
	// DefaultTTL is the process-wide entry lifetime.
	DefaultTTL = 3600 * time.Second
	// DefaultOpTimeout bounds every key-store round-trip.
	DefaultOpTimeout = 500 * time.Millisecond

	defaultGenRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
