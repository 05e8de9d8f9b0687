package httpserver

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/yndnr/chathub-go/internal/telemetry/logger"
)

// TrustedProxies is the set of peers allowed to report the client address
// through forwarding headers.
type TrustedProxies []netip.Prefix

func (t TrustedProxies) contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range t {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP resolves the client address once per request and stores it in
// the request context, where rate limiting, access logs and handlers read
// it.
//
// Forwarding headers are honoured only when the socket peer is trusted.
// X-Forwarded-For is walked from the right and the first untrusted hop is
// the client; X-Real-IP is used when no X-Forwarded-For is present.
func ClientIP(trusted TrustedProxies) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.WithClientIP(r.Context(), resolveClientIP(r, trusted))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveClientIP(r *http.Request, trusted TrustedProxies) string {
	peer := remoteHost(r.RemoteAddr)
	addr, err := netip.ParseAddr(peer)
	if err != nil || !trusted.contains(addr) {
		return peer
	}

	if values := r.Header.Values("X-Forwarded-For"); len(values) > 0 {
		hops := strings.Split(strings.Join(values, ","), ",")
		client := addr.Unmap().String()
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			client = hop.Unmap().String()
			if !trusted.contains(hop) {
				break
			}
		}
		return client
	}

	if xri, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xri.Unmap().String()
	}
	return peer
}

// getClientIP returns the address resolved by ClientIP, or the socket peer
// when the middleware did not run.
func getClientIP(r *http.Request) string {
	if ip := logger.ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return remoteHost(r.RemoteAddr)
}

// remoteHost strips the port from addr. SplitHostPort handles IPv6
// addresses like [::1]:8080.
func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
