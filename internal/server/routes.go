package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /sign", h.Sign)
	mux.HandleFunc("POST /jobs", h.StartJob)
	mux.HandleFunc("GET /jobs/{id}/stream", h.StreamJob)
	mux.HandleFunc("GET /jobs/{id}/ws", h.StreamJobWS)
	mux.HandleFunc("GET /results/latest", h.LatestResults)
	mux.HandleFunc("GET /clips/{name}", h.ServeClip)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
