// Package api serves the persisted assignment table over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/territory-cli/internal/metrics"
	"github.com/sells-group/territory-cli/internal/store"
)

// Config holds the API's access settings.
type Config struct {
	APIToken       string
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server answers queries against a Store.
type Server struct {
	store   store.Store
	metrics *metrics.Metrics
	cfg     Config
	log     *zap.Logger
}

// NewServer creates a Server. m may be nil.
func NewServer(st store.Store, m *metrics.Metrics, cfg Config) *Server {
	return &Server{
		store:   st,
		metrics: m,
		cfg:     cfg,
		log:     zap.L().With(zap.String("component", "api")),
	}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(s.logRequests)
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}
	if s.cfg.RateLimitRPS > 0 {
		r.Use(rateLimit(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))
	}

	r.Group(func(pub chi.Router) {
		pub.Get("/health", s.health)
		if s.metrics != nil {
			pub.Handle("/metrics", s.metrics.Handler())
		}
	})

	r.Group(func(priv chi.Router) {
		if s.cfg.APIToken != "" {
			priv.Use(bearerAuth(s.cfg.APIToken))
		}
		priv.Route("/assignments", func(ar chi.Router) {
			ar.Get("/", s.listAssignments)
			ar.Get("/{zip}", s.getAssignment)
			ar.Get("/{zip}/activity", s.zipActivity)
		})
		priv.Get("/stats", s.stats)
		priv.Get("/export.csv", s.exportCSV)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}
