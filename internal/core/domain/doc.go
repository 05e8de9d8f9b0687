// Package domain defines the core domain models for ChatHub.
//
// Domain models are plain values without IO dependencies. This package
// contains:
//
//   - ChatMessage: an entry of the bounded message log
//   - Account: a registered user with its credential hash
//   - Session: a login session bound to an opaque token
//   - Errors: coded domain errors shared by every layer
package domain
