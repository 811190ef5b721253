// Package api exposes the knowledge service over a JSON HTTP API.
package api

import (
	"errors"
	"net/http"

	"github.com/sitebrain/sitebrain/internal/log"
	"github.com/sitebrain/sitebrain/internal/pipeline"
)

// ServerConfig configures NewServer.
type ServerConfig struct {
	Service       *pipeline.Service // Required
	Logger        log.Logger
	MaxUploadSize int64 // Bytes; 0 = 10 MB
	RateBurst     int   // Per-IP burst (0 = default 30)
}

// Server is the HTTP front of the knowledge service.
type Server struct {
	mux *http.ServeMux
}

// NewServer wires routes and the middleware stack. The health endpoint
// sits outside the rate limiter so probes never get throttled.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	maxUpload := cfg.MaxUploadSize
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}

	qh := &queryHandler{service: cfg.Service, logger: logger}
	dh := &documentHandler{service: cfg.Service, maxUploadSize: maxUpload, logger: logger}
	sh := &statusHandler{service: cfg.Service, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/query", qh.ask)
	mux.HandleFunc("POST /api/v1/documents", dh.upload)
	mux.HandleFunc("GET /api/v1/documents", dh.list)
	mux.HandleFunc("DELETE /api/v1/documents/{name}", dh.remove)
	mux.HandleFunc("GET /api/v1/stats", sh.stats)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 30
	}
	rl := newRateLimiter(1.0, burst)

	// Outermost first: Recovery, RequestID, Logging, RateLimit, Routes.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	top := http.NewServeMux()
	top.HandleFunc("GET /health", sh.health)
	top.Handle("/", handler)

	return &Server{mux: top}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
