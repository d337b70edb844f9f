// Package api provides the HTTP API server and handlers for HiveCache.
package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bookmarkhive/hivecache/internal/store"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store           *store.Store
	services        *Services
	router          *chi.Mux
	api             huma.API
	logger          *slog.Logger
	authRateLimiter *RateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(store *store.Store, services *Services, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(authMiddleware(services.Auth))

	// Credential endpoints get their own, tighter limit. Registered before
	// humachi mounts any routes: chi rejects middleware added after that.
	authLimiter := NewRateLimiter(20, time.Minute, 10)
	limited := rateLimitMiddleware(authLimiter, logger)
	router.Use(func(next http.Handler) http.Handler {
		guarded := limited(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api/v1/auth/") {
				guarded.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	humaConfig := huma.DefaultConfig("HiveCache API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	humaAPI := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		store:           store,
		services:        services,
		router:          router,
		api:             humaAPI,
		logger:          logger,
		authRateLimiter: authLimiter,
	}

	s.registerHealthRoutes()
	s.registerInstanceRoutes()
	s.registerAuthRoutes()
	s.registerUserRoutes()
	s.registerBookmarkRoutes()
	s.registerTagRoutes()
	s.registerSyncRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases server-held resources.
func (s *Server) Close() {
	s.authRateLimiter.Stop()
}
