// Package web provides the HTTP server and handlers for the knowledge-base
// admin console.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/kbconsole/internal/audit"
	"github.com/JonMunkholm/kbconsole/internal/backend"
	"github.com/JonMunkholm/kbconsole/internal/config"
	"github.com/JonMunkholm/kbconsole/internal/console"
	"github.com/JonMunkholm/kbconsole/internal/web/middleware"
)

//go:embed static
var staticFiles embed.FS

// Backend is the knowledge-base API plus file downloads.
type Backend interface {
	console.Backend
	OpenFile(ctx context.Context, id string) (*backend.File, error)
}

// Options are the server's collaborators. Audit and AuditLog may be nil.
type Options struct {
	Config   *config.Config
	Backend  Backend
	Limiter  *console.SaveLimiter
	Audit    audit.Recorder
	AuditLog audit.Lister
}

// Server is the HTTP server for the admin console.
type Server struct {
	cfg      *config.Config
	backend  Backend
	limiter  *console.SaveLimiter
	audit    audit.Recorder
	auditLog audit.Lister

	sessions *SessionStore
	tokens   *TokenStore
	rate     *middleware.RateLimiter

	router *chi.Mux
	server *http.Server
}

// NewServer creates a new Server instance.
func NewServer(opts Options) *Server {
	s := &Server{
		cfg:      opts.Config,
		backend:  opts.Backend,
		limiter:  opts.Limiter,
		audit:    opts.Audit,
		auditLog: opts.AuditLog,
		tokens:   NewTokenStore(opts.Config.Session.TokenTTL),
		router:   chi.NewRouter(),
	}
	if s.limiter == nil {
		s.limiter = console.NewSaveLimiter(opts.Config.Save.MaxConcurrent, opts.Config.Save.MaxWaitTime)
	}
	if s.audit == nil {
		s.audit = audit.LogRecorder{}
	}
	s.sessions = NewSessionStore(opts.Config.Session.IdleTimeout, func() *console.Controller {
		return console.NewController(s.backend, s.limiter)
	})
	if opts.Config.Rate.Enabled {
		s.rate = middleware.NewRateLimiter(opts.Config.Rate.RequestsPerMinute, time.Minute)
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(middleware.SecurityHeaders)

	if s.rate != nil {
		s.router.Use(s.rate.Middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.Get("/healthz", s.handleHealth)

	// Pages
	s.router.Get("/", s.handleIndex)
	s.router.Get("/edit/{id}", s.handleEditPage)
	s.router.Get("/admin/{token}", s.handleAdminLink)

	// Console fragments
	s.router.Route("/console", func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/rows", s.handleRows)
		r.Post("/sort/{field}", s.handleSort)
		r.Post("/reload", s.handleReload)
		r.Get("/form", s.handleForm)
		r.Get("/entries/{id}/form", s.handleEntryForm)
		r.Delete("/entries/{id}", s.handleDelete)
		r.Post("/save", s.handleSave)
	})

	s.router.With(s.requireSession).Get("/files/by-id/{id}", s.handleFile)

	// Machine endpoints
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))
		r.Get("/generate-token", s.handleGenerateToken)
		r.Get("/api/audit", s.handleAuditList)
	})
}

// Start begins listening on the configured address. It returns nil after
// Shutdown.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// RunMaintenance sweeps expired sessions, admin tokens and idle rate limiter
// entries every interval until ctx is cancelled.
func (s *Server) RunMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions := s.sessions.Sweep()
			tokens := s.tokens.Sweep()
			if s.rate != nil {
				s.rate.Cleanup()
			}
			if sessions > 0 || tokens > 0 {
				slog.Debug("swept expired admin state", "sessions", sessions, "tokens", tokens)
			}
		}
	}
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
