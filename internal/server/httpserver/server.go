package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 2 * time.Minute
)

// Server is the chathub HTTP listener. It serves TLS when both a
// certificate and a key are configured.
type Server struct {
	srv      *http.Server
	certFile string
	keyFile  string
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithTLS serves HTTPS with the given PEM files.
func WithTLS(certFile, keyFile string) ServerOption {
	return func(s *Server) {
		s.certFile = certFile
		s.keyFile = keyFile
	}
}

// New returns a server for addr. It does not listen until Serve.
func New(addr string, h http.Handler, opts ...ServerOption) *Server {
	s := &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TLS reports whether the server serves HTTPS.
func (s *Server) TLS() bool {
	return s.certFile != "" && s.keyFile != ""
}

// Serve listens on the configured address and serves until Shutdown.
// It returns nil after a graceful shutdown.
func (s *Server) Serve() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ln)
}

// ServeListener serves on ln, which the server takes ownership of.
func (s *Server) ServeListener(ln net.Listener) error {
	var err error
	if s.TLS() {
		err = s.srv.ServeTLS(ln, s.certFile, s.keyFile)
	} else {
		err = s.srv.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for active requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
