// Package server exposes fact checks and follow-up questions over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ppiankov/verity/internal/logging"
	"github.com/ppiankov/verity/internal/pipeline"
	"github.com/ppiankov/verity/internal/session"
)

const maxRequestBytes = 1 << 20

// FactChecker starts a fact check and returns its event stream
type FactChecker interface {
	Run(ctx context.Context, claim string) *pipeline.Stream
}

// Responder answers follow-up questions within a session
type Responder interface {
	Answer(ctx context.Context, sessionID, question string, onChunk func(string) error) (string, error)
}

// Server routes the HTTP API
type Server struct {
	router    *chi.Mux
	checker   FactChecker
	responder Responder
	sessions  *session.Store
	version   string
}

// Options configures a Server
type Options func(*Server)

// WithVersion sets the version reported by /health
func WithVersion(version string) Options {
	return func(s *Server) {
		s.version = version
	}
}

// New creates the router
func New(checker FactChecker, responder Responder, sessions *session.Store, opts ...Options) *Server {
	r := chi.NewRouter()
	s := &Server{
		router:    r,
		checker:   checker,
		responder: responder,
		sessions:  sessions,
		version:   "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/health", s.handleHealth)
	r.Post("/new-session", s.handleNewSession)
	r.Post("/fact-check", s.handleFactCheck)
	r.Post("/followup-stream", s.handleFollowup)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger attaches a logger carrying the request id to the context
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.From(r.Context()).With("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(logging.With(r.Context(), logger)))
	})
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			logging.From(r.Context()).Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// cors allows any origin, method and header
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
			h.Set("Access-Control-Allow-Headers", req)
		} else {
			h.Set("Access-Control-Allow-Headers", "*")
		}
		h.Set("Access-Control-Expose-Headers", sessionHeader)

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
