package memory

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/chathub-go/internal/core/domain"
)

func TestRegistry_CreateValidateRevoke(t *testing.T) {
	s, _ := newTestStore(t)

	tok, sess, err := s.Sessions.Create("alice", time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(tok, domain.SessionTokenPrefix) {
		t.Fatalf("token %q lacks prefix %q", tok, domain.SessionTokenPrefix)
	}
	if sess.TokenHash == "" || strings.Contains(sess.TokenHash, tok) {
		t.Fatalf("TokenHash = %q, want hash of token", sess.TokenHash)
	}

	user, err := s.Sessions.Validate(tok)
	if err != nil || user != "alice" {
		t.Fatalf("Validate = (%q, %v), want (alice, nil)", user, err)
	}

	if !s.Sessions.Revoke(tok) {
		t.Fatal("Revoke = false, want true")
	}
	if _, err := s.Sessions.Validate(tok); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("Validate after revoke err = %v, want ErrSessionInvalid", err)
	}
	if s.Sessions.Revoke(tok) {
		t.Fatal("second Revoke = true, want false")
	}
}

func TestRegistry_UniqueTokens(t *testing.T) {
	s, _ := newTestStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, _, err := s.Sessions.Create("alice", time.Hour)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
	if s.Sessions.Count() != 100 {
		t.Fatalf("Count = %d, want 100", s.Sessions.Count())
	}
}

func TestRegistry_ExpiryIsExclusive(t *testing.T) {
	s, clk := newTestStore(t)

	tok, _, err := s.Sessions.Create("alice", time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	clk.Advance(time.Hour - time.Nanosecond)
	if _, err := s.Sessions.Validate(tok); err != nil {
		t.Fatalf("Validate just before expiry: %v", err)
	}

	clk.Advance(time.Nanosecond)
	_, err = s.Sessions.Validate(tok)
	if !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("Validate at expiry err = %v, want ErrSessionInvalid", err)
	}
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatal("expired lookup lost its internal cause")
	}
	if s.Sessions.Count() != 0 {
		t.Fatalf("Count = %d, want 0 after lazy removal", s.Sessions.Count())
	}
}

func TestRegistry_SweepExpired(t *testing.T) {
	s, clk := newTestStore(t)

	for i := 0; i < 3; i++ {
		if _, _, err := s.Sessions.Create("old", time.Hour); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	clk.Advance(30 * time.Minute)
	fresh, _, err := s.Sessions.Create("new", time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	clk.Advance(45 * time.Minute)
	if n := s.Sessions.SweepExpired(clk.Now()); n != 3 {
		t.Fatalf("SweepExpired = %d, want 3", n)
	}
	if user, err := s.Sessions.Validate(fresh); err != nil || user != "new" {
		t.Fatalf("fresh session = (%q, %v), want (new, nil)", user, err)
	}
	if n := s.Sessions.SweepExpired(clk.Now()); n != 0 {
		t.Fatalf("second SweepExpired = %d, want 0", n)
	}
}

func TestRegistry_ZeroTTLIsImmediatelyInvalid(t *testing.T) {
	s, _ := newTestStore(t)

	for _, ttl := range []time.Duration{0, -time.Second} {
		tok, _, err := s.Sessions.Create("alice", ttl)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := s.Sessions.Validate(tok); !errors.Is(err, domain.ErrSessionInvalid) {
			t.Fatalf("Validate(ttl=%v) err = %v, want ErrSessionInvalid", ttl, err)
		}
	}
}

func TestRegistry_UnknownToken(t *testing.T) {
	s, _ := newTestStore(t)

	for _, tok := range []string{"", "chtk_nope", "garbage"} {
		if _, err := s.Sessions.Validate(tok); !errors.Is(err, domain.ErrSessionInvalid) {
			t.Errorf("Validate(%q) err = %v, want ErrSessionInvalid", tok, err)
		}
	}
}
