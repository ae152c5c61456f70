// Package api exposes the campus guide over HTTP: a liveness probe, a
// single-shot chat endpoint, an SSE token stream and a WebSocket stream.
// All surfaces except the probe sit behind the credential gate.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/zk-jackie/campusqa/internal/auth"
	"github.com/zk-jackie/campusqa/internal/guide"
)

// Route paths.
const (
	testPath   = "/api/test"
	chatPath   = "/api/chat"
	streamPath = "/api/stream"
	wsPath     = "/ws/stream"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Guide       *guide.Guide // Required
	Gate        *auth.Gate   // Required
	CORSOrigins []string     // Allowed origins for CORS
	TrustProxy  bool         // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst   int          // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	handler http.Handler
	gate    *auth.Gate
	guide   *guide.Guide
	logger  *slog.Logger
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Guide == nil {
		return nil, errors.New("guide is required")
	}
	if cfg.Gate == nil {
		return nil, errors.New("gate is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		gate:   cfg.Gate,
		guide:  cfg.Guide,
		logger: logger.With("component", "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+testPath, s.test)
	mux.HandleFunc("POST "+chatPath, s.chat)
	mux.HandleFunc("POST "+streamPath, s.stream)
	mux.HandleFunc("GET "+wsPath, s.wsStream)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	limiter := newRateLimiter(float64(burst)/60.0, burst)

	s.handler = chain(mux,
		recoveryMiddleware(s.logger),
		requestIDMiddleware(cfg.TrustProxy),
		loggingMiddleware(s.logger),
		corsMiddleware(cfg.CORSOrigins),
		rateLimitMiddleware(limiter, cfg.TrustProxy, s.logger),
		s.authMiddleware(),
	)

	return s, nil
}

// Handler returns the root http.Handler with the full middleware stack.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// test is the liveness probe. It requires no credentials and always
// answers the same body.
func (s *Server) test(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, testResponse{Code: "200", Msg: "ok", Data: "hello, world!"})
}
