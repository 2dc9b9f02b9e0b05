// Package web provides the HTTP server and JSON handlers of the console.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/assetconsole/internal/backend"
	"github.com/JonMunkholm/assetconsole/internal/config"
	"github.com/JonMunkholm/assetconsole/internal/core"
	"github.com/JonMunkholm/assetconsole/internal/importer"
	"github.com/JonMunkholm/assetconsole/internal/metrics"
	"github.com/JonMunkholm/assetconsole/internal/session"
	"github.com/JonMunkholm/assetconsole/internal/web/middleware"
)

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Config   *config.Config
	Service  *core.Service
	Sessions *session.Manager
	Backend  *backend.Client
	Importer *importer.Importer
	Metrics  *metrics.Recorder // nil disables /metrics
}

// Server is the HTTP server of the console.
type Server struct {
	cfg      *config.Config
	service  *core.Service
	sessions *session.Manager
	backend  *backend.Client
	importer *importer.Importer
	metrics  *metrics.Recorder

	router *chi.Mux
	server *http.Server

	stop context.CancelFunc
}

// NewServer creates a server and wires session teardown to workspace
// disposal.
func NewServer(deps Deps) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      deps.Config,
		service:  deps.Service,
		sessions: deps.Sessions,
		backend:  deps.Backend,
		importer: deps.Importer,
		metrics:  deps.Metrics,
		router:   chi.NewRouter(),
		stop:     cancel,
	}
	s.sessions.OnTeardown(s.service.Drop)
	s.setupMiddleware()
	s.setupRoutes(ctx)
	return s
}

// TeardownHook returns the backend hook that ends the console session
// whose bearer token the backend rejected.
func TeardownHook(sessions *session.Manager) backend.UnauthorizedFunc {
	return func(creds backend.Credentials, status int) {
		sess, ok := creds.(*session.Session)
		if !ok || sess == nil {
			return
		}
		slog.Warn("backend rejected session token", "status", status, "user_id", sess.User.UserID)
		sessions.Teardown(context.Background(), sess.Token)
	}
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	var observe middleware.ObserveFunc
	if s.metrics != nil {
		observe = s.metrics.ObserveRequest
	}

	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger(observe))
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))
}

// setupRoutes configures all HTTP routes. ctx bounds the rate limiter
// cleanup goroutines.
func (s *Server) setupRoutes(ctx context.Context) {
	general := s.limiter(ctx, s.cfg.Rate.RequestsPerMinute)
	login := s.limiter(ctx, s.cfg.Rate.LoginLimit)
	imports := s.limiter(ctx, s.cfg.Rate.ImportLimit)

	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(general)

		r.With(login).Post("/auth/login", s.handleLogin)
		r.With(login).Post("/auth/signup", s.handleSignup)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(s.sessions, s.cfg.Session.CookieName))

			// Account
			r.Post("/auth/logout", s.handleLogout)
			r.Get("/me", s.handleGetMe)
			r.Put("/me", s.handleUpdateMe)
			r.Post("/users/auth", s.handleGrantAuth)
			r.Delete("/users/auth", s.handleRevokeAuth)

			// Tables
			r.Get("/tables", s.handleListTables)
			r.Route("/tables/{table}", func(r chi.Router) {
				r.Get("/rows", s.handleRows)
				r.Post("/reload", s.handleReload)
				r.Get("/export", s.handleExport)
				r.Post("/mode", s.handleMode)
				r.Post("/edits", s.handleEdit)
				r.Post("/selection", s.handleSelection)
				r.Post("/remarks", s.handleRemark)
				r.Post("/save/prepare", s.handlePrepareSave)
				r.Post("/save/submit", s.handleSubmitSave)
				r.Post("/retire/prepare", s.handlePrepareRetire)
				r.Post("/retire/submit", s.handleSubmitRetire)
				r.Post("/cancel", s.handleCancel)
			})

			// History
			r.Get("/history/export", s.handleHistoryExport)
			r.Get("/history/export/{assetId}", s.handleHistoryExport)
			r.Get("/history/{assetId}", s.handleHistory)

			// Registration. {id} is the table key when opening a form and
			// the registration id everywhere else.
			r.Get("/registrations/template/{table}", s.handleTemplate)
			r.Post("/registrations/{id}", s.handleOpenRegistration)
			r.Get("/registrations/{id}", s.handleGetRegistration)
			r.Delete("/registrations/{id}", s.handleCloseRegistration)
			r.Post("/registrations/{id}/rows", s.handleAddRow)
			r.Post("/registrations/{id}/rows/remove", s.handleRemoveRows)
			r.Patch("/registrations/{id}/rows/{rowId}", s.handleSetField)
			r.With(imports).Post("/registrations/{id}/import", s.handleImport)
			r.Post("/registrations/{id}/submit", s.handleSubmitRegistration)

			// Audit log
			r.Get("/audit-log", s.handleAuditLog)
		})
	})
}

// limiter returns a rate limiting middleware, or a pass-through when rate
// limiting is off.
func (s *Server) limiter(ctx context.Context, perMinute int) func(http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled || perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return newRateLimiter(ctx, perMinute, time.Minute).middleware
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

const contentSecurityPolicy = "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self'; frame-ancestors 'none'"

// securityHeaders adds security headers to all responses.
func securityHeaders(csp bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Cache-Control", "no-store")
			if csp {
				h.Set("Content-Security-Policy", contentSecurityPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter implements a fixed-window limiter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	now      func() time.Time
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the specified rate per window.
// Stale visitors are dropped until ctx ends.
func newRateLimiter(ctx context.Context, rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
	}
	go rl.cleanup(ctx)
	return rl
}

func (rl *rateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastReset) > rl.window*2 {
			delete(rl.visitors, ip)
		}
	}
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[ip]
	if !exists || now.Sub(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// middleware rate limits by RemoteAddr, which TrustedRealIP has already
// resolved to the client IP.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(r.RemoteAddr) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			respondUser(w, r, core.UserMessage{
				Message: "요청이 너무 많습니다.",
				Action:  "잠시 후 다시 시도하세요.",
				Code:    "RATE001",
			}, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError writes a JSON error response for malformed requests.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q,"message":%q,"code":"REQ000"}`, message, message)
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
