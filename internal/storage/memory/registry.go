package memory

import (
	"fmt"
	"time"

	"github.com/yndnr/chathub-go/internal/core/domain"
	"github.com/yndnr/chathub-go/pkg/cmap"
	"github.com/yndnr/chathub-go/pkg/token"
)

// DefaultSessionTTL is the default lifetime of a session.
const DefaultSessionTTL = 24 * time.Hour

// Registry maps opaque session tokens to usernames.
//
// Only token hashes are kept. Expired sessions are removed lazily by
// Validate and in bulk by SweepExpired.
type Registry struct {
	sessions *cmap.Map[string, domain.Session] // key: token hash
	now      func() time.Time
}

func newRegistry(now func() time.Time) *Registry {
	return &Registry{
		sessions: cmap.New[string, domain.Session](),
		now:      now,
	}
}

// Create issues a session for username valid for ttl and returns the
// plaintext token. A non-positive ttl yields a session that is already
// expired.
func (r *Registry) Create(username string, ttl time.Duration) (string, domain.Session, error) {
	plain, err := token.New(domain.SessionTokenPrefix)
	if err != nil {
		return "", domain.Session{}, fmt.Errorf("generate session token: %w", err)
	}

	now := r.now()
	s := domain.Session{
		TokenHash: token.Hash(plain),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	r.sessions.Set(s.TokenHash, s)
	return plain, s, nil
}

// Validate resolves a token to its username. Unknown and expired tokens
// yield ErrSessionInvalid; an expired entry is removed on the way.
func (r *Registry) Validate(plain string) (string, error) {
	if !token.WellFormed(domain.SessionTokenPrefix, plain) {
		return "", domain.ErrSessionInvalid
	}

	hash := token.Hash(plain)
	s, ok := r.sessions.Get(hash)
	if !ok {
		return "", domain.ErrSessionInvalid
	}
	now := r.now()
	if s.ExpiredAt(now) {
		r.sessions.DeleteIf(hash, func(s domain.Session) bool { return s.ExpiredAt(now) })
		return "", domain.ErrSessionInvalid.WithCause(domain.ErrSessionExpired)
	}
	return s.Username, nil
}

// Revoke removes the session for token. Unknown tokens are a no-op.
func (r *Registry) Revoke(plain string) bool {
	if plain == "" {
		return false
	}
	_, ok := r.sessions.Pop(token.Hash(plain))
	return ok
}

// SweepExpired removes every session expired at now and returns how many
// were removed.
func (r *Registry) SweepExpired(now time.Time) int {
	return r.sessions.Sweep(func(_ string, s domain.Session) bool {
		return s.ExpiredAt(now)
	})
}

// Count returns the number of stored sessions, expired ones included
// until they are swept.
func (r *Registry) Count() int {
	return r.sessions.Len()
}
