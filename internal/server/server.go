// Package server exposes the county rarity API over HTTP. Handlers translate
// query parameters, drive the upstream clients, and emit the wire shapes the
// map frontend consumes.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/featherline/rarity-mapper/internal/boundary"
	"github.com/featherline/rarity-mapper/internal/ebird"
	"github.com/featherline/rarity-mapper/internal/fips"
	"github.com/featherline/rarity-mapper/internal/model"
	"github.com/featherline/rarity-mapper/internal/rarity"
	"github.com/featherline/rarity-mapper/internal/resolver"
	"github.com/featherline/rarity-mapper/internal/spatial"
)

// ObservationSource is the slice of the upstream observation client the
// handlers use.
type ObservationSource interface {
	RecentNotable(ctx context.Context, region string, back int, detail string) ([]model.RawObservation, error)
	Regions(ctx context.Context, country string) ([]ebird.Region, error)
}

// GeometrySource serves county boundary geometry.
type GeometrySource interface {
	StateCounties(ctx context.Context, stateCode string) (*boundary.StateCounties, error)
	CountyHiRes(ctx context.Context, region fips.Region) (geom.T, string, error)
}

// NotablesResolver runs the county-notables fallback ladder.
type NotablesResolver interface {
	CountyNotables(ctx context.Context, q resolver.Query) (*resolver.Result, error)
}

// Deps carries everything the HTTP layer needs. All fields are required
// except Registry, which defaults to a fresh registry.
type Deps struct {
	Observations ObservationSource
	Boundaries   GeometrySource
	Resolver     NotablesResolver
	Index        *spatial.Index
	Rarity       *rarity.Table
	Registry     *prometheus.Registry
}

// Server is the HTTP front end. Construct with New, then Start/Shutdown.
type Server struct {
	deps Deps
	mux  http.Handler
	http *http.Server
}

// New builds the router and wires middleware. The returned server is not
// listening yet.
func New(deps Deps) *Server {
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	s := &Server{deps: deps}

	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.GetHead)
	r.Use(originGuard)
	r.Use(preflight)
	r.Use(corsHandler())
	r.Use(methodGuard)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/aba_meta", s.wrap(s.handleABAMeta))
		r.Get("/regions", s.wrap(s.handleRegions))
		r.Get("/rarities", s.wrap(s.handleRarities))
		r.Get("/lower48_rarities", s.wrap(s.handleLower48Rarities))
		r.Get("/county_resolve", s.wrap(s.handleCountyResolve))
		r.Get("/county_outline", s.wrap(s.handleCountyOutline))
		r.Get("/county_hires", s.wrap(s.handleCountyHiRes))
		r.Get("/county_notables", s.wrap(s.handleCountyNotables))
		r.Get("/us_notable_counts", s.wrap(s.handleUSNotableCounts))
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	s.mux = r
	return s
}

// ServeHTTP lets tests exercise the full middleware stack without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start blocks serving on addr until the listener fails or Shutdown runs.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	zap.L().Info("http server listening", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !eris.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	if err := s.http.Shutdown(ctx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// apiError pairs an HTTP status with a client-facing message. Handlers return
// it for expected failures; anything else becomes a 502 upstream error.
type apiError struct {
	status  int
	message string
	detail  string
}

func (e *apiError) Error() string { return e.message }

func errBadRequest(msg string) error { return &apiError{status: http.StatusBadRequest, message: msg} }
func errNotFound(msg string) error   { return &apiError{status: http.StatusNotFound, message: msg} }

// wrap converts a fallible handler into an http.HandlerFunc. Unexpected
// errors surface as 502 with the upstream detail, mirroring the behavior
// clients were built against.
func (s *Server) wrap(h func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		var ae *apiError
		if eris.As(err, &ae) {
			if ae.detail != "" {
				writeJSON(w, ae.status, map[string]string{"error": ae.message, "detail": ae.detail})
				return
			}
			writeError(w, ae.status, ae.message)
			return
		}
		zap.L().Warn("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":  "Upstream request failed",
			"detail": err.Error(),
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("request",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func cacheControl(w http.ResponseWriter, maxAge int) {
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
}
