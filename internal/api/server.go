// Package api provides the idlebit HTTP control plane.
// Every handler goes through the loop runner; nothing here touches the
// player directly.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/idle-bit/idlebit/internal/app/loop"
	"github.com/idle-bit/idlebit/internal/domain"
	"github.com/idle-bit/idlebit/internal/infra/observability"
)

// Version is reported by /api/version.
const Version = "0.3.0"

// Config controls the HTTP server.
type Config struct {
	MetricsEnabled bool
	RateLimitRPS   float64 // per client IP; <= 0 disables limiting
	RateLimitBurst int
	RequestTimeout time.Duration // default: 10s
}

// Server is the idlebit HTTP API server.
type Server struct {
	runner  *loop.Runner
	config  Config
	limiter *clientLimiter // nil when disabled
}

// NewServer creates a server backed by runner.
func NewServer(runner *loop.Runner, cfg Config) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	s := &Server{runner: runner, config: cfg}
	if cfg.RateLimitRPS > 0 {
		s.limiter = newClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	return s
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.RequestTimeout))
	r.Use(countRequests)
	r.Use(corsMiddleware)
	if s.limiter != nil {
		r.Use(s.limiter.middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]interface{}{"status": "ok"}
		switch st := s.runner.Stats(); {
		case st.Stopped:
			status = http.StatusServiceUnavailable
			body["status"] = "stopped"
			if st.Fatal != "" {
				body["fatal"] = st.Fatal
			}
		case !st.Running:
			body["status"] = "starting"
		}
		writeJSON(w, status, body)
	})

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":      Version,
			"save_version": strconv.Itoa(domain.SaveVersion),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/loop", s.handleLoopStats)

		r.Get("/purchases", s.handleListPurchases)
		r.Post("/purchases/*", s.handleBuy)

		r.Post("/disks/{id}/interact", s.handleDiskInteract)
		r.Post("/chips/{index}/interact", s.handleChipInteract)
		r.Post("/chips/{index}/overclock", s.handleOverclock)
		r.Post("/chips/{index}/target", s.handleChipTarget)
		r.Post("/cloud/interact", s.handleCloudInteract)
		r.Post("/cloud/upload", s.handleCloudUpload)
		r.Delete("/selection", s.handleClearSelection)

		r.Post("/save", s.handleSave)
		r.Get("/save/export", s.handleExport)
		r.Post("/save/import", s.handleImport)
	})

	if s.config.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    errorType(status),
		},
	})
}

func errorType(status int) string {
	switch {
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusConflict:
		return "conflict"
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status == http.StatusServiceUnavailable:
		return "unavailable"
	case status < 500:
		return "invalid_request"
	default:
		return "error"
	}
}

// writeDomainError maps a runner or game error to an HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnknownDisk),
		errors.Is(err, domain.ErrUnknownChip),
		errors.Is(err, domain.ErrUnknownPurchase):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNoCloud):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrSaveCorrupted):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrLoopStopped),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, err.Error())
}

// corsMiddleware adds CORS headers for browser front-ends.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// countRequests records every response by route pattern and status.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.APIRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}
