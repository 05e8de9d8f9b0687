package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/chathub-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Handler serves the API, health and status routes.
	Handler http.Handler

	// Metrics serves /metrics and counts requests. Nil disables both.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger *slog.Logger

	// RateLimit is the per-IP limit for /api routes (requests/second).
	// Zero disables limiting.
	RateLimit int

	// MaxBodyBytes caps request bodies on /api routes.
	MaxBodyBytes int64

	// TrustedProxies may report the client address in forwarding headers.
	TrustedProxies TrustedProxies
}

// NewRouter creates the HTTP router with all routes and middleware.
//
// Order: Recover -> RequestID -> ClientIP -> AccessLog -> [RateLimit -> MaxBodyBytes] -> Handler
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()

	// Health checks bypass rate limiting so orchestrators never see 429.
	mux.Handle("GET /health", cfg.Handler)
	mux.Handle("GET /ready", cfg.Handler)

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	api := Chain(cfg.Handler,
		RateLimit(cfg.RateLimit),
		MaxBodyBytes(cfg.MaxBodyBytes),
	)
	mux.Handle("/api/", api)

	return Chain(mux,
		Recover(log),
		RequestID(),
		ClientIP(cfg.TrustedProxies),
		AccessLog(log, cfg.Metrics),
	)
}
