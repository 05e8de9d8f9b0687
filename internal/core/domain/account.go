package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Account constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
	MinPasswordLength = 4
)

// Account is a registered user. Username keeps the casing used at
// registration; lookups go through NormalizeUsername.
type Account struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

// NormalizeUsername returns the case-folded lookup key for a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(username)
}

// ValidateUsername checks length and the [A-Za-z0-9_] alphabet.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return ErrInvalidUsername
	}
	for i := 0; i < len(username); i++ {
		c := username[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			return ErrInvalidUsername
		}
	}
	return nil
}

// ValidatePassword checks the minimum password length (in characters).
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
