package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lumashop/api/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type middlewareFunc = func(http.Handler) http.Handler

const (
	defaultAPIPrefix = "/api/v1"
	defaultTimeout   = 60 * time.Second
)

// mountedGroups are the sub-routers under the API prefix, in mount order.
var mountedGroups = []string{"/orders", "/cart", "/me", "/admin", "/webhooks", "/internal"}

type routeGroup struct {
	registrar   RouteRegistrar
	middlewares []middlewareFunc
}

type routerConfig struct {
	basePath    string
	timeout     time.Duration
	middlewares []middlewareFunc
	health      *HealthHandlers
	metrics     http.Handler
	public      []RouteRegistrar
	groups      map[string]*routeGroup
}

func (cfg *routerConfig) group(path string) *routeGroup {
	if cfg.groups == nil {
		cfg.groups = make(map[string]*routeGroup, len(mountedGroups))
	}
	g, ok := cfg.groups[path]
	if !ok {
		g = &routeGroup{}
		cfg.groups[path] = g
	}
	return g
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

// NewRouter builds the chi router. Probes and /metrics sit at the root, everything else
// under /api/v1. A group without a registrar answers 501.
func NewRouter(opts ...Option) chi.Router {
	cfg := &routerConfig{basePath: defaultAPIPrefix, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Timeout(cfg.timeout))
	useAll(r, cfg.middlewares)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", "no route for "+req.URL.Path, http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		msg := fmt.Sprintf("%s is not supported on %s", req.Method, req.URL.Path)
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", msg, http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)
	if cfg.metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metrics)
	}

	r.Route(cfg.basePath, func(api chi.Router) {
		for _, registrar := range cfg.public {
			if registrar == nil {
				continue
			}
			api.Group(func(sub chi.Router) { registrar(sub) })
		}
		for _, path := range mountedGroups {
			g := cfg.group(path)
			api.Route(path, func(sub chi.Router) {
				useAll(sub, g.middlewares)
				if g.registrar == nil {
					notImplemented(sub, path)
					return
				}
				g.registrar(sub)
			})
		}
	})
	return r
}

func useAll(r chi.Router, mws []middlewareFunc) {
	for _, mw := range mws {
		if mw != nil {
			r.Use(mw)
		}
	}
}

func notImplemented(r chi.Router, path string) {
	h := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", path+" is not available", http.StatusNotImplemented))
	}
	r.HandleFunc("/", h)
	r.HandleFunc("/*", h)
	r.NotFound(h)
	r.MethodNotAllowed(h)
}

func groupRoutes(path string, reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.group(path).registrar = reg }
}

func groupMiddlewares(path string, mw ...middlewareFunc) Option {
	return func(cfg *routerConfig) {
		g := cfg.group(path)
		g.middlewares = append(g.middlewares, mw...)
	}
}

// WithRequestTimeout bounds each request's context. Non-positive values keep the default.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *routerConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

// WithMiddlewares appends router-wide middleware, applied after the chi defaults.
func WithMiddlewares(mw ...middlewareFunc) Option {
	return func(cfg *routerConfig) { cfg.middlewares = append(cfg.middlewares, mw...) }
}

func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h }
}

// WithMetricsHandler exposes h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(cfg *routerConfig) { cfg.metrics = h }
}

// WithPublicRoutes mounts registrars directly under the API prefix (catalog, reviews, analytics).
func WithPublicRoutes(regs ...RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.public = append(cfg.public, regs...) }
}

func WithOrderRoutes(reg RouteRegistrar) Option    { return groupRoutes("/orders", reg) }
func WithCartRoutes(reg RouteRegistrar) Option     { return groupRoutes("/cart", reg) }
func WithMeRoutes(reg RouteRegistrar) Option       { return groupRoutes("/me", reg) }
func WithAdminRoutes(reg RouteRegistrar) Option    { return groupRoutes("/admin", reg) }
func WithWebhookRoutes(reg RouteRegistrar) Option  { return groupRoutes("/webhooks", reg) }
func WithInternalRoutes(reg RouteRegistrar) Option { return groupRoutes("/internal", reg) }

// WithWebhookMiddlewares guards /webhooks, typically with HMAC signature checks.
func WithWebhookMiddlewares(mw ...middlewareFunc) Option {
	return groupMiddlewares("/webhooks", mw...)
}

// WithInternalMiddlewares guards /internal, typically with OIDC service tokens.
func WithInternalMiddlewares(mw ...middlewareFunc) Option {
	return groupMiddlewares("/internal", mw...)
}
