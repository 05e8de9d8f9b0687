package domain

import "time"

// Session binds an opaque token to a username until ExpiresAt.
// The registry only ever stores the token hash.
type Session struct {
	TokenHash string    `json:"token_hash"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExpiredAt reports whether the session is no longer valid at now.
// A session is valid only while now < ExpiresAt.
func (s *Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionTokenPrefix marks plaintext session tokens so the logger can mask them.
const SessionTokenPrefix = "chtk_"
