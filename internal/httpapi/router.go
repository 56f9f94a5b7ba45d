// Package httpapi exposes the user service and the cache admin endpoints
// over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unkn0wn-root/usercache"
	"github.com/unkn0wn-root/usercache/internal/store"
	"github.com/unkn0wn-root/usercache/internal/users"
)

// Users is the service surface the handlers need.
type Users interface {
	List(ctx context.Context) ([]store.User, error)
	Get(ctx context.Context, id int64) (store.User, error)
	Create(ctx context.Context, in users.Input) (store.User, error)
	Update(ctx context.Context, id int64, in users.Input) (store.User, error)
	Delete(ctx context.Context, id int64) error
	Warm(ctx context.Context) (usercache.WarmReport, error)
	Stats(ctx context.Context) usercache.Stats
}

type Options struct {
	Logger usercache.Logger
	// Registry receives the HTTP metrics; nil => a private registry.
	Registry *prometheus.Registry
	// Gatherer is served on /metrics; nil => Registry.
	Gatherer prometheus.Gatherer
}

// NewRouter mounts:
//
//	GET    /users
//	POST   /users
//	GET    /users/{id}
//	PUT    /users/{id}
//	DELETE /users/{id}
//	GET    /cache-stats
//	POST   /cache/warm
//	GET    /metrics
//	GET    /health
func NewRouter(svc Users, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = usercache.NopLogger{}
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	var gatherer prometheus.Gatherer = reg
	if opts.Gatherer != nil {
		gatherer = opts.Gatherer
	}

	h := &handler{svc: svc, log: log}
	m := newMetrics(reg)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.StripSlashes)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(m.middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
		r.Get("/{id}", h.getUser)
		r.Put("/{id}", h.updateUser)
		r.Delete("/{id}", h.deleteUser)
	})

	r.Get("/cache-stats", h.cacheStats)
	r.Post("/cache/warm", h.warmCache)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
