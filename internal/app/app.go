// Package app wires configuration into a running user service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/unkn0wn-root/usercache"
	"github.com/unkn0wn-root/usercache/codec"
	gen "github.com/unkn0wn-root/usercache/genstore"
	asynchook "github.com/unkn0wn-root/usercache/hooks/async"
	"github.com/unkn0wn-root/usercache/hooks/loghooks"
	"github.com/unkn0wn-root/usercache/hooks/promhooks"
	"github.com/unkn0wn-root/usercache/internal/config"
	"github.com/unkn0wn-root/usercache/internal/httpapi"
	"github.com/unkn0wn-root/usercache/internal/store"
	"github.com/unkn0wn-root/usercache/internal/users"
	uclogrus "github.com/unkn0wn-root/usercache/log/logrus"
	ucslog "github.com/unkn0wn-root/usercache/log/slog"
	uczap "github.com/unkn0wn-root/usercache/log/zap"
	pr "github.com/unkn0wn-root/usercache/provider"
	"github.com/unkn0wn-root/usercache/provider/bigcache"
	"github.com/unkn0wn-root/usercache/provider/breaker"
	"github.com/unkn0wn-root/usercache/provider/memory"
	redisprov "github.com/unkn0wn-root/usercache/provider/redis"
	"github.com/unkn0wn-root/usercache/provider/ristretto"
)

// App owns every long-lived dependency of the service. Close releases them
// in reverse order of construction.
type App struct {
	Config  *config.Config
	Logger  usercache.Logger
	Users   *users.Service
	Cache   *usercache.Resource[store.User]
	Handler http.Handler

	db      *gorm.DB
	closers []func(context.Context) error
}

// New builds the App described by cfg. On error everything built so far is
// released.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	if a.Logger, err = NewLogger(cfg.Log); err != nil {
		return nil, err
	}

	if a.db, err = store.Open(cfg.Database.Driver, cfg.Database.DSN); err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return store.Close(a.db) })

	prom := promhooks.New("usercache")
	hooks := asynchook.New(usercache.MultiHooks{
		loghooks.New(a.Logger, loghooks.Options{SelfHealEvery: 10, StoreErrorEvery: 10}),
		prom,
	}, 1, 1024)
	a.onClose(func(context.Context) error { hooks.Close(); return nil })

	if a.Cache, err = a.newResource(ctx, hooks); err != nil {
		return nil, err
	}
	a.Users = users.New(store.New(a.db), a.Cache, a.Logger)

	httpReg := prometheus.NewRegistry()
	httpReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Handler = httpapi.NewRouter(a.Users, httpapi.Options{
		Logger:   a.Logger,
		Registry: httpReg,
		Gatherer: prometheus.Gatherers{httpReg, prom.Registry()},
	})
	return a, nil
}

func (a *App) onClose(f func(context.Context) error) { a.closers = append(a.closers, f) }

// NewLogger builds the configured logging backend.
func NewLogger(cfg config.Log) (usercache.Logger, error) {
	switch cfg.Backend {
	case "zap":
		return uczap.New(cfg.Level)
	case "logrus":
		return uclogrus.New(os.Stderr, cfg.Level)
	case "slog":
		return ucslog.New(os.Stderr, cfg.Level)
	default:
		return nil, fmt.Errorf("app: unknown log backend %q", cfg.Backend)
	}
}

func (a *App) newResource(ctx context.Context, hooks usercache.Hooks) (*usercache.Resource[store.User], error) {
	cfg := a.Config.Cache
	ks, err := usercache.NewKeyspace(cfg.Resource)
	if err != nil {
		return nil, err
	}

	var rdb *goredis.Client
	redisClient := func() *goredis.Client {
		if rdb == nil {
			rc := a.Config.Redis
			rdb = redisprov.NewClient(redisprov.ClientOptions{
				Host:         rc.Host,
				Port:         rc.Port,
				DB:           rc.DB,
				Password:     rc.Password,
				DialTimeout:  rc.DialTimeout,
				ReadTimeout:  rc.ReadTimeout,
				WriteTimeout: rc.WriteTimeout,
			})
			a.onClose(func(context.Context) error {
				if err := rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
					return err
				}
				return nil
			})
		}
		return rdb
	}

	p, err := newProvider(ctx, cfg, redisClient)
	if err != nil {
		return nil, err
	}
	// An unreachable store is not fatal: reads fall through to the database.
	if pg, ok := p.(interface{ Ping(context.Context) error }); ok {
		pctx, cancel := context.WithTimeout(ctx, cfg.OpTimeout)
		if err := pg.Ping(pctx); err != nil {
			a.Logger.Warn("key store unreachable at startup", usercache.Fields{"backend": cfg.Backend, "err": err})
		}
		cancel()
	}
	var cb *breaker.Provider
	if cfg.Breaker.Enabled {
		b := cfg.Breaker
		cb = breaker.New(p, breaker.Config{
			Name:             "keystore",
			MaxRequests:      b.MaxRequests,
			Interval:         b.Interval,
			Timeout:          b.Timeout,
			FailureThreshold: b.FailureRatio,
			MinRequests:      b.MinRequests,
			OnStateChange: func(name, from, to string) {
				a.Logger.Warn("key store circuit changed state", usercache.Fields{"breaker": name, "from": from, "to": to})
			},
		})
		p = cb
	}

	var gs gen.GenStore
	switch cfg.GenStore {
	case "redis":
		// generations must outlive the entries they guard
		gs = gen.NewRedisGenStoreWithTTL(redisClient(), ks.Prefix, 2*cfg.TTLDuration())
		if cb != nil {
			gs = cb.GenStore(gs)
		}
	default:
		gs = gen.NewLocalGenStore(time.Hour, 30*24*time.Hour)
	}

	listCodec, err := codec.ByName[[]store.User](cfg.Codec)
	if err != nil {
		return nil, err
	}
	itemCodec, err := codec.ByName[store.User](cfg.Codec)
	if err != nil {
		return nil, err
	}
	if cfg.MaxDecode > 0 {
		listCodec = codec.Limit[[]store.User]{Inner: listCodec, MaxDecode: cfg.MaxDecode}
		itemCodec = codec.Limit[store.User]{Inner: itemCodec, MaxDecode: cfg.MaxDecode}
	}

	res, err := usercache.NewResource[store.User](usercache.ResourceOptions[store.User]{
		Keyspace:  ks,
		Provider:  p,
		ListCodec: listCodec,
		ItemCodec: itemCodec,
		ID:        func(u store.User) int64 { return u.ID },
		Logger:    a.Logger,
		Hooks:     hooks,
		TTL:       cfg.TTLDuration(),
		OpTimeout: cfg.OpTimeout,
		GenStore:  gs,
		Disabled:  !cfg.Enabled,
	})
	if err != nil {
		_ = gs.Close(ctx)
		_ = p.Close(ctx)
		return nil, err
	}
	// Resource.Close releases the provider and the generation store; it
	// runs before the shared redis client is closed.
	a.onClose(res.Close)
	a.Logger.Info("cache configured", usercache.Fields{
		"backend":   cfg.Backend,
		"gen_store": cfg.GenStore,
		"codec":     cfg.Codec,
		"ttl":       cfg.TTLDuration().String(),
		"enabled":   cfg.Enabled,
	})
	return res, nil
}

func newProvider(ctx context.Context, cfg config.Cache, redisClient func() *goredis.Client) (pr.Provider, error) {
	switch cfg.Backend {
	case "redis":
		// the client is shared with the generation store and closed by App
		return redisprov.New(redisprov.Config{Client: redisClient()})
	case "bigcache":
		return bigcache.New(ctx, bigcache.Config{
			LifeWindow:         cfg.TTLDuration(),
			HardMaxCacheSizeMB: cfg.Capacity,
		})
	case "ristretto":
		return ristretto.New(ristretto.Config{
			NumCounters: 100_000,
			MaxCost:     int64(cfg.Capacity) << 20,
			BufferItems: 64,
		})
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("app: unknown cache backend %q", cfg.Backend)
	}
}

// Serve runs the HTTP server until ctx is done, then shuts it down
// gracefully.
func (a *App) Serve(ctx context.Context) error {
	sc := a.Config.Server
	srv := &http.Server{
		Addr:         sc.Addr,
		Handler:      a.Handler,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		a.Logger.Info("listening", usercache.Fields{"addr": sc.Addr})
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("app: shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases resources in reverse order and joins their errors.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if s, ok := a.Logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
	return errors.Join(errs...)
}
