// Package api exposes assignment and stored runs over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/segment-assigner/internal/assign"
	"github.com/sells-group/segment-assigner/internal/pipeline"
	"github.com/sells-group/segment-assigner/internal/store"
)

// maxBodyBytes caps POST bodies; inline GeoJSON layers can be large.
const maxBodyBytes = 64 << 20

// Options configures a Server.
type Options struct {
	// Defaults are the parameters a request starts from before overrides.
	Defaults    assign.Params
	Elevation   pipeline.Elevation
	CORSOrigins []string
}

// Server handles the HTTP API.
type Server struct {
	pipe  *pipeline.Pipeline
	store store.Store
	opts  Options
	log   *zap.Logger
}

// New creates a Server. st may be nil, in which case run endpoints answer
// 503 and assignments are not persisted.
func New(pipe *pipeline.Pipeline, st store.Store, opts Options) *Server {
	return &Server{
		pipe:  pipe,
		store: st,
		opts:  opts,
		log:   zap.L().With(zap.String("component", "api")),
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/assign", s.assign)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{id}", s.getRun)
		r.Get("/runs/{id}/best", s.bestMatches)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, field, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Field: field})
}
