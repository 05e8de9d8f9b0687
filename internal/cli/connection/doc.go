// Package connection is the HTTP client chathub-cli uses to talk to a
// running chathub-server.
//
// Responses use the server's JSON envelope; ParseResponse unwraps the data
// field on success and turns error envelopes into *APIError.
package connection
