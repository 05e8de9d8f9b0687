// Package httpserver provides the HTTP server for the chat API.
//
// It uses the standard library net/http:
//
//   - Account endpoints: /api/register, /api/login, /api/logout, /api/me
//   - Message endpoints: /api/messages, /api/images, /api/images/{id}
//   - Status endpoints: /health, /ready, /api/status, /metrics
//
// Middleware chain: Recover, RequestID (ULID), AccessLog with request
// metrics, and per-IP RateLimit plus body caps on /api routes.
package httpserver
