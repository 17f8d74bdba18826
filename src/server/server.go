// SPDX-License-Identifier: MIT
package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/apimgr/torsentry/src/config"
	"github.com/apimgr/torsentry/src/paths"
	"github.com/apimgr/torsentry/src/server/handler"
	"github.com/apimgr/torsentry/src/server/service/admin"
	"github.com/apimgr/torsentry/src/server/service/logging"
	"github.com/apimgr/torsentry/src/server/service/ratelimit"
	"github.com/apimgr/torsentry/src/server/service/scheduler"
	"github.com/apimgr/torsentry/src/tormanager"
)

// MigrationManager is the subset of the schema manager the server needs
// to expose over the admin API.
type MigrationManager interface {
	GetMigrationStatus() ([]map[string]interface{}, error)
	RunMigrations() error
	RollbackMigration() error
}

// Server is the admin HTTP API surface over a tormanager.Manager: REST
// endpoints for daemon status and control, an SSE stream of bus events,
// and the scheduler/admin-account management underneath it.
type Server struct {
	cfg          *config.Config
	configDir    string
	dataDir      string
	torMgr       *tormanager.Manager
	adminSvc     *admin.Service
	migrationMgr MigrationManager
	scheduler    *scheduler.Scheduler
	logger       *logging.AppLogger
	router       *chi.Mux
	srv          *http.Server
	rateLimiter  *ratelimit.Limiter
	adminAPI     *handler.AdminAPI
}

// New creates a new Server wired around the given Tor manager.
func New(cfg *config.Config, configDir, dataDir string, torMgr *tormanager.Manager, adminSvc *admin.Service, migrationMgr MigrationManager, sched *scheduler.Scheduler, logger *logging.AppLogger) *Server {
	limiter := ratelimit.New(
		cfg.Server.RateLimit.Enabled,
		cfg.Server.RateLimit.Requests,
		cfg.Server.RateLimit.Window,
	)
	limiter.SetLogger(logger)

	s := &Server{
		cfg:          cfg,
		configDir:    configDir,
		dataDir:      dataDir,
		torMgr:       torMgr,
		adminSvc:     adminSvc,
		migrationMgr: migrationMgr,
		scheduler:    sched,
		logger:       logger,
		router:       chi.NewRouter(),
		rateLimiter:  limiter,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures the shared middleware chain.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(URLNormalizeMiddleware)
	s.router.Use(paths.PathSecurityMiddleware)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "SAMEORIGIN")
			w.Header().Set("X-XSS-Protection", "1; mode=block")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy", "default-src 'none'")
			w.Header().Set("X-Robots-Tag", "noindex, nofollow")
			if s.cfg.Server.SSL.Enabled {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			}
			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				w.Header().Set("X-Request-ID", reqID)
			}
			if strings.HasPrefix(r.URL.Path, "/api/") {
				w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
			}
			next.ServeHTTP(w, r)
		})
	})

	s.router.Use(s.rateLimiter.Middleware)
}

// setupRoutes wires the admin REST+SSE surface over the manager façade.
func (s *Server) setupRoutes() {
	api := handler.NewAdminAPI(s.cfg, s.torMgr, s.adminSvc, s.migrationMgr, s.scheduler, s.logger)
	s.adminAPI = api

	s.router.Get("/healthz", api.Healthz)
	s.router.Get("/healthz.json", api.Healthz)

	s.registerDebugRoutes(s.router)

	if s.cfg.Server.Metrics.Enabled {
		s.router.Handle(s.cfg.Server.Metrics.Endpoint, api.MetricsHandler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/setup", api.Setup)
		r.Post("/login", api.Login)

		r.Group(func(r chi.Router) {
			r.Use(api.AuthMiddleware)

			r.Route("/tor", func(r chi.Router) {
				r.Get("/status", api.TorStatus)
				r.Post("/signal", api.TorSignal)
				r.Get("/info", api.TorInfo)
			})

			r.Route("/hidden-services", func(r chi.Router) {
				r.Get("/", api.HiddenServicesList)
				r.Post("/", api.HiddenServiceCreate)
				r.Get("/{name}", api.HiddenServiceGet)
				r.Delete("/{name}", api.HiddenServiceDelete)
				r.Post("/{name}/export", api.HiddenServiceExport)
				r.Post("/import", api.HiddenServiceImport)
			})

			r.Get("/migrations", api.MigrationsStatus)

			r.Route("/scheduler", func(r chi.Router) {
				r.Get("/", api.SchedulerTasks)
				r.Post("/{id}/run", api.SchedulerRunTask)
				r.Post("/{id}/enable", api.SchedulerEnableTask)
				r.Post("/{id}/disable", api.SchedulerDisableTask)
			})

			r.Get("/events", api.EventStream)

			r.Route("/tokens", func(r chi.Router) {
				r.Post("/", api.APITokenCreate)
				r.Delete("/{id}", api.APITokenRevoke)
			})
		})
	})

	s.router.NotFound(api.NotFound)
}

// ListenAndServe starts the HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  parseDuration(s.cfg.Server.Limits.ReadTimeout, 30*time.Second),
		WriteTimeout: parseDuration(s.cfg.Server.Limits.WriteTimeout, 30*time.Second),
		IdleTimeout:  parseDuration(s.cfg.Server.Limits.IdleTimeout, 120*time.Second),
	}
	return s.srv.ListenAndServe()
}

// Serve serves the admin API on an already-accepted listener, e.g. one
// bound to a Tor hidden service's local forwarding port.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  parseDuration(s.cfg.Server.Limits.ReadTimeout, 30*time.Second),
		WriteTimeout: parseDuration(s.cfg.Server.Limits.WriteTimeout, 30*time.Second),
		IdleTimeout:  parseDuration(s.cfg.Server.Limits.IdleTimeout, 120*time.Second),
	}
	return srv.Serve(listener)
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// URLNormalizeMiddleware strips a trailing slash from non-root paths,
// redirecting to the canonical form.
func URLNormalizeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" {
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasSuffix(path, "/") {
			lastSlashIdx := strings.LastIndex(path, "/")
			if lastSlashIdx >= 0 && !strings.Contains(path[lastSlashIdx:], ".") {
				canonical := strings.TrimSuffix(path, "/")
				if r.URL.RawQuery != "" {
					canonical += "?" + r.URL.RawQuery
				}
				http.Redirect(w, r, canonical, http.StatusMovedPermanently)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
