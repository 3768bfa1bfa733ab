// Package api exposes the MarketBook services over HTTP under /api.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/erazemk/marketbook/internal/action"
	"github.com/erazemk/marketbook/internal/media"
)

// Services are the application services the handlers call.
type Services struct {
	Identity      *action.Identity
	Items         *action.Items
	Notifications *action.Notifications
	Admin         *action.Admin
}

// Options configures the router.
type Options struct {
	DB       *sql.DB
	Logger   *slog.Logger
	Uploader *media.Uploader
	// MediaDir is served at /media/ when set.
	MediaDir string
	// Metrics is mounted at /api/metrics when set.
	Metrics http.Handler
	// RateLimit is the number of /api/users requests allowed per IP and
	// hour. Zero disables limiting.
	RateLimit int
	// TrustedProxies are the peers whose X-Forwarded-For header is used to
	// find the client address for rate limiting and audit entries.
	TrustedProxies []netip.Prefix
	CORS           CORSOptions
	Development    bool
}

// Router is the HTTP handler for the whole API.
type Router struct {
	svc         Services
	db          *sql.DB
	logger      *slog.Logger
	uploader    *media.Uploader
	limiter     *RateLimiter
	clients     clientResolver
	development bool
	started     time.Time
	handler     http.Handler
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(svc Services, opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Router{
		svc:         svc,
		db:          opts.DB,
		logger:      logger.With("component", "api"),
		uploader:    opts.Uploader,
		development: opts.Development,
		clients:     clientResolver{trusted: opts.TrustedProxies},
		started:     time.Now(),
	}

	authed := RequireAuth(svc.Identity, rt.writeError)
	admin := Chain(authed, RequireAdmin)
	handle := func(mux *http.ServeMux, pattern string, mw Middleware, h http.HandlerFunc) {
		if mw == nil {
			mux.Handle(pattern, h)
			return
		}
		mux.Handle(pattern, mw(h))
	}

	users := http.NewServeMux()
	handle(users, "POST /api/users/register", nil, rt.register)
	handle(users, "POST /api/users/register-admin", nil, rt.registerAdmin)
	handle(users, "POST /api/users/login", nil, rt.login)
	handle(users, "POST /api/users/logout", authed, rt.logout)
	handle(users, "GET /api/users/profile", authed, rt.getProfile)
	handle(users, "PUT /api/users/profile", authed, rt.updateProfile)
	handle(users, "GET /api/users/notifications", authed, rt.listNotifications)
	handle(users, "PUT /api/users/notifications/{id}/read", authed, rt.markNotificationRead)
	handle(users, "GET /api/users/audit-logs", admin, rt.auditLogs)
	handle(users, "GET /api/users/dashboard-stats", admin, rt.dashboardStats)
	handle(users, "GET /api/users", admin, rt.listUsers)

	var usersHandler http.Handler = users
	if opts.RateLimit > 0 {
		rt.limiter = NewRateLimiter(opts.RateLimit, 10*time.Minute, rt.clients.ip)
		usersHandler = rt.limiter.Middleware(users)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/users", usersHandler)
	mux.Handle("/api/users/", usersHandler)

	handle(mux, "GET /api/items", authed, rt.listItems)
	handle(mux, "POST /api/items", authed, rt.createItem)
	handle(mux, "GET /api/items/admin/all", admin, rt.listAllItems)
	handle(mux, "GET /api/items/stats", admin, rt.itemStats)
	handle(mux, "GET /api/items/financial-summary", authed, rt.financialSummary)
	handle(mux, "GET /api/items/by-payment-status/{status}", authed, rt.itemsByPaymentStatus)
	handle(mux, "GET /api/items/{id}", authed, rt.getItem)
	handle(mux, "PUT /api/items/{id}", authed, rt.updateItem)
	handle(mux, "DELETE /api/items/{id}", authed, rt.deleteItem)

	handle(mux, "GET /api/health", nil, rt.health)
	if opts.Metrics != nil {
		mux.Handle("GET /api/metrics", opts.Metrics)
	}
	if opts.MediaDir != "" {
		mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(http.Dir(opts.MediaDir))))
	}

	rt.handler = Chain(
		RequestID,
		Logging(rt.logger),
		Recovery(rt.logger),
		CORS(opts.CORS),
	)(mux)
	return rt
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.handler.ServeHTTP(w, r)
}

// Close stops background work started by the router.
func (rt *Router) Close() {
	if rt.limiter != nil {
		rt.limiter.Stop()
	}
}

type healthResponse struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
}

// health handles GET /api/health.
func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	if rt.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.db.PingContext(ctx); err != nil {
			rt.logger.ErrorContext(r.Context(), "health check failed", "error", err)
			jsonResponse(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Uptime: time.Since(rt.started).Seconds()})
			return
		}
	}
	jsonResponse(w, http.StatusOK, healthResponse{Status: "ok", Uptime: time.Since(rt.started).Seconds()})
}
