package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/yndnr/chathub-go/internal/core/domain"
	"github.com/yndnr/chathub-go/internal/core/service"
	"github.com/yndnr/chathub-go/internal/telemetry/logger"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "chathub_session"

// DefaultMaxImageBytes bounds multipart uploads when Config leaves it zero.
const DefaultMaxImageBytes = service.DefaultMaxImageBytes

// Config holds the services behind the handlers.
type Config struct {
	Accounts *service.AccountService
	Chat     *service.ChatService
	Backup   *service.BackupService

	// Ready reports whether startup restore has finished. Nil means
	// always ready.
	Ready func() bool

	// MaxImageBytes bounds the image part of POST /api/images.
	MaxImageBytes int64

	// SecureCookie sets the Secure attribute on the session cookie.
	SecureCookie bool

	Logger *slog.Logger
}

// Handler is the main HTTP handler that routes requests to appropriate handlers.
type Handler struct {
	accounts     *service.AccountService
	chat         *service.ChatService
	backup       *service.BackupService
	ready        func() bool
	maxImage     int64
	secureCookie bool
	logger       *slog.Logger
	mux          *http.ServeMux
}

// New creates a new Handler.
func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Ready == nil {
		cfg.Ready = func() bool { return true }
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}

	h := &Handler{
		accounts:     cfg.Accounts,
		chat:         cfg.Chat,
		backup:       cfg.Backup,
		ready:        cfg.Ready,
		maxImage:     cfg.MaxImageBytes,
		secureCookie: cfg.SecureCookie,
		logger:       cfg.Logger,
		mux:          http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)
	h.mux.HandleFunc("GET /api/status", h.handleStatus)

	h.mux.HandleFunc("POST /api/register", h.whenReady(h.handleRegister))
	h.mux.HandleFunc("POST /api/login", h.whenReady(h.handleLogin))
	h.mux.HandleFunc("POST /api/logout", h.whenReady(h.handleLogout))
	h.mux.HandleFunc("GET /api/me", h.whenReady(h.handleMe))

	h.mux.HandleFunc("POST /api/messages", h.whenReady(h.handlePostMessage))
	h.mux.HandleFunc("GET /api/messages", h.whenReady(h.handleListMessages))

	h.mux.HandleFunc("POST /api/images", h.whenReady(h.handleUploadImage))
	h.mux.HandleFunc("GET /api/images/{id}", h.whenReady(h.handleGetImage))
}

// whenReady answers 503 until startup restore has finished; state written
// before that would be replaced by the restore.
func (h *Handler) whenReady(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready() {
			w.Header().Set("Retry-After", "1")
			h.writeError(w, r, http.StatusServiceUnavailable, domain.ErrNotReady.Code, domain.ErrNotReady.Message, nil)
			return
		}
		next(w, r)
	}
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := logger.RequestIDFromContext(r.Context())
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := logger.RequestIDFromContext(r.Context())
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// handleServiceError converts service errors to HTTP responses. Caller
// errors keep their message; everything else becomes a generic 500.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) && domain.IsValidation(err) {
		var details any
		if de.Details != "" {
			details = de.Details
		}
		h.writeError(w, r, errorCodeToHTTPStatus(de.Code), de.Code, de.Message, details)
		return
	}

	h.logger.ErrorContext(r.Context(), "request failed",
		"path", r.URL.Path,
		"error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternal.Code, domain.ErrInternal.Message, nil)
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4010"):
		return http.StatusUnauthorized
	case strings.HasSuffix(code, "-4040"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4090"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4130"):
		return http.StatusRequestEntityTooLarge
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case len(code) >= 4 && code[len(code)-4] == '4':
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes a request body into v, rejecting unknown fields and
// trailing data.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.ErrBadRequest.WithDetails("request body too large")
		}
		return domain.ErrBadRequest.WithDetails("malformed json body").WithCause(err)
	}
	if dec.More() {
		return domain.ErrBadRequest.WithDetails("trailing data after json body")
	}
	return nil
}

// sessionToken returns the bearer token or the session cookie value.
func sessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// getClientIP returns the client address resolved by the ClientIP
// middleware, falling back to the socket peer.
func getClientIP(r *http.Request) string {
	if ip := logger.ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
