package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/imranansari/apigee-deploy-wf/config"
)

// Server serves the deployment form and its JSON API
type Server struct {
	router   *chi.Mux
	server   *http.Server
	sessions *Registry
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	// deployments outlive the request that started them but not the server
	runCtx    context.Context
	cancelRun context.CancelFunc
}

// NewServer creates a server whose sessions are built by newSession
func NewServer(cfg config.ServerConfig, newSession SessionFactory, logger zerolog.Logger) *Server {
	runCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:    chi.NewRouter(),
		sessions:  NewRegistry(newSession),
		upgrader:  newUpgrader(cfg.AllowedOrigins),
		logger:    logger,
		runCtx:    runCtx,
		cancelRun: cancel,
	}
	s.routes(cfg.AllowedOrigins)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) routes(allowedOrigins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	if len(allowedOrigins) > 0 {
		// a wildcard never receives the session cookie
		s.router.Use(cors.New(cors.Options{
			AllowCredentials: !allowsAnyOrigin(allowedOrigins),
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Accept"},
			Debug:            false,
		}).Handler)
	}

	s.router.Get("/", s.handleIndex)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Post("/deploy", s.handleDeploy)
		r.Post("/reset", s.handleReset)
		r.Get("/logs/ws", s.handleLogStream)

		r.Route("/github", func(r chi.Router) {
			r.Post("/validate", s.handleValidate)
			r.Post("/disconnect", s.handleDisconnect)
			r.Get("/repos", s.handleRepositories)
			r.Post("/repos/select", s.handleSelectRepository)
			r.Post("/branches/select", s.handleSelectBranch)
			r.Get("/pulls/{owner}/{repo}/{number}", s.handlePullRequest)
		})
	})
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Deployment form server started")
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, then cancels running deployments and waits for them
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	s.cancelRun()
	s.sessions.Wait()
	return err
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// sameOriginOr accepts requests from the server's own host and from the listed
// origins. The stream always carries the session cookie, so a wildcard is ignored.
func sameOriginOr(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, o := range origins {
			if o != "*" && strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}
