// Package server exposes the shift claim operations over HTTP
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-selector/internal/config"
	"github.com/jakechorley/shift-selector/pkg/core/services"
)

// ShiftClaimer claims and releases shifts on behalf of an authenticated user
type ShiftClaimer interface {
	Claim(ctx context.Context, auth *services.AuthResult, shiftID string) error
	Release(ctx context.Context, auth *services.AuthResult, shiftID string) error
}

type Server struct {
	router         *chi.Mux
	directory      services.DirectoryLoader
	claims         ShiftClaimer
	schedule       config.ScheduleConfig
	logger         *zap.Logger
	allowedOrigins []string
}

type Options func(*Server)

// WithAllowedOrigins restricts CORS to the given origins. By default any origin is allowed.
func WithAllowedOrigins(origins ...string) Options {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func New(directory services.DirectoryLoader, claims ShiftClaimer, schedule config.ScheduleConfig, logger *zap.Logger, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:    r,
		directory: directory,
		claims:    claims,
		schedule:  schedule,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(s.accessLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/health", healthHandler)
	r.Get("/shiftsSheetInfo", s.shiftsSheetInfoHandler)
	r.Post("/sessions", s.sessionsHandler)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/users/me", s.usersMeHandler)
		r.Get("/teams/{teamId}", s.teamHandler)
		r.Post("/shifts/{shiftId}/claims", s.claimHandler)
		r.Delete("/shifts/{shiftId}/claims", s.releaseHandler)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func (s *Server) accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("access",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote", r.RemoteAddr),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// cors allows browser clients on other origins, answering preflight requests directly
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.allowOrigin(r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(origin string) string {
	if len(s.allowedOrigins) == 0 {
		return "*"
	}
	for _, allowed := range s.allowedOrigins {
		if allowed == origin {
			return origin
		}
	}
	return ""
}
