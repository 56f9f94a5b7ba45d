// Package breaker wraps a Provider with a circuit breaker so reads and
// writes fail fast while the key-value store is down instead of each
// request paying the full operation timeout.
//
// Deletes always reach the wrapped store: an invalidation skipped because
// the circuit was open would leave a stale entry behind once the store
// recovers.
//
// A caller that gave up (cancelled ctx) says nothing about the store and is
// never counted as a failure. Generation snapshots kept in the same server
// share the circuit through GenStore.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	pr "github.com/unkn0wn-root/usercache/provider"
)

// ErrOpen is returned while the circuit rejects calls.
var ErrOpen = errors.New("breaker: key store circuit open")

type Config struct {
	Name             string
	MaxRequests      uint32        // probes allowed while half-open
	Interval         time.Duration // closed-state counter reset period
	Timeout          time.Duration // open -> half-open delay
	FailureThreshold float64       // failure ratio that trips the circuit
	MinRequests      uint32        // requests before the ratio is evaluated

	// OnStateChange is called on every transition (optional).
	OnStateChange func(name string, from, to string)
}

func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          5 * time.Second,
		FailureThreshold: 0.5,
		MinRequests:      5,
	}
}

type Provider struct {
	inner pr.Provider
	cb    *gobreaker.CircuitBreaker
}

var _ pr.Provider = (*Provider)(nil)

func New(inner pr.Provider, cfg Config) *Provider {
	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < cfg.MinRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	if cfg.OnStateChange != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, from.String(), to.String())
		}
	}
	return &Provider{inner: inner, cb: gobreaker.NewCircuitBreaker(st)}
}

// State is "closed", "half-open" or "open".
func (p *Provider) State() string { return p.cb.State().String() }

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	type hit struct {
		b  []byte
		ok bool
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	res, err := p.cb.Execute(func() (interface{}, error) {
		b, ok, err := p.inner.Get(ctx, key)
		return hit{b, ok}, err
	})
	if err != nil {
		return nil, false, mapErr(err)
	}
	h := res.(hit)
	return h.b, h.ok, nil
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, p.inner.Set(ctx, key, value, ttl)
	})
	return mapErr(err)
}

func (p *Provider) Del(ctx context.Context, key string) error {
	return p.inner.Del(ctx, key)
}

// Keys and Info pass through when the wrapped store supports them.
func (p *Provider) Keys(ctx context.Context, pattern string) ([]string, error) {
	in, ok := p.inner.(pr.Inspector)
	if !ok {
		return nil, pr.ErrUnsupported
	}
	return in.Keys(ctx, pattern)
}

func (p *Provider) Info(ctx context.Context) (pr.ServerInfo, error) {
	in, ok := p.inner.(pr.Inspector)
	if !ok {
		return pr.ServerInfo{}, pr.ErrUnsupported
	}
	return in.Info(ctx)
}

func (p *Provider) Close(ctx context.Context) error { return p.inner.Close(ctx) }

func mapErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}
