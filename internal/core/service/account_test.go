package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/chathub-go/internal/core/domain"
	"github.com/yndnr/chathub-go/internal/telemetry/metric"
)

func TestAccountService_RegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	info, err := env.accounts.Register(ctx, &RegisterRequest{Username: "Bob", Password: "pass1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if info.Username != "Bob" {
		t.Fatalf("Username = %q, want Bob", info.Username)
	}

	res, err := env.accounts.Login(ctx, &LoginRequest{Username: "bob", Password: "pass1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !strings.HasPrefix(res.Token, domain.SessionTokenPrefix) {
		t.Fatalf("token %q lacks prefix %q", res.Token, domain.SessionTokenPrefix)
	}
	if want := env.clock.Now().Add(24 * time.Hour); !res.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", res.ExpiresAt, want)
	}
	if res.Account.Username != "Bob" {
		t.Fatalf("Account.Username = %q, want display case Bob", res.Account.Username)
	}

	if got := testutil.ToFloat64(env.metrics.AccountsRegistered); got != 1 {
		t.Fatalf("accounts_registered_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(env.metrics.Logins.WithLabelValues(metric.LoginOK)); got != 1 {
		t.Fatalf("logins_total{ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(env.metrics.SessionsCreated); got != 1 {
		t.Fatalf("sessions_created_total = %v, want 1", got)
	}
}

func TestAccountService_LoginFailuresLookAlike(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ann", "secret")

	_, errWrong := env.accounts.Login(ctx, &LoginRequest{Username: "ann", Password: "wrong"})
	_, errUnknown := env.accounts.Login(ctx, &LoginRequest{Username: "nobody", Password: "x"})

	if !errors.Is(errWrong, domain.ErrInvalidCredentials) || !errors.Is(errUnknown, domain.ErrInvalidCredentials) {
		t.Fatalf("errors = %v / %v, want ErrInvalidCredentials", errWrong, errUnknown)
	}
	if errWrong.Error() != errUnknown.Error() {
		t.Fatalf("messages differ: %q vs %q", errWrong.Error(), errUnknown.Error())
	}

	if got := testutil.ToFloat64(env.metrics.Logins.WithLabelValues(metric.LoginBadPassword)); got != 1 {
		t.Fatalf("logins_total{bad_password} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(env.metrics.Logins.WithLabelValues(metric.LoginUnknownUser)); got != 1 {
		t.Fatalf("logins_total{unknown_user} = %v, want 1", got)
	}
}

func TestAccountService_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ann", "secret")

	tests := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{"short username", "ab", "secret", domain.ErrInvalidUsername},
		{"bad characters", "ann!", "secret", domain.ErrInvalidUsername},
		{"weak password", "carol", "abc", domain.ErrWeakPassword},
		{"case collision", "Ann", "other", domain.ErrUsernameTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.accounts.Register(ctx, &RegisterRequest{Username: tt.username, Password: tt.password})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Register err = %v, want %v", err, tt.want)
			}
		})
	}

	if got := testutil.ToFloat64(env.metrics.AccountsRegistered); got != 1 {
		t.Fatalf("accounts_registered_total = %v, want 1", got)
	}
}

func TestAccountService_WhoamiAndLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "Carol", "secret")
	token := env.login(t, "carol", "secret")

	info, err := env.accounts.Whoami(ctx, token)
	if err != nil {
		t.Fatalf("Whoami: %v", err)
	}
	if info.Username != "Carol" {
		t.Fatalf("Whoami = %q, want Carol", info.Username)
	}

	if err := env.accounts.Logout(ctx, token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := env.accounts.Whoami(ctx, token); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("Whoami after logout err = %v, want ErrSessionInvalid", err)
	}
	if err := env.accounts.Logout(ctx, token); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
}

func TestAccountService_ExpiryPaths(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "dave", "secret")

	lazy := env.login(t, "dave", "secret")
	env.login(t, "dave", "secret")
	env.login(t, "dave", "secret")

	env.clock.Advance(25 * time.Hour)

	if _, err := env.accounts.Authenticate(ctx, lazy); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("Authenticate expired err = %v, want ErrSessionInvalid", err)
	}
	if got := testutil.ToFloat64(env.metrics.SessionsExpired.WithLabelValues(metric.ExpiredLazy)); got != 1 {
		t.Fatalf("sessions_expired_total{lazy} = %v, want 1", got)
	}

	if n := env.accounts.SweepExpired(ctx); n != 2 {
		t.Fatalf("SweepExpired = %d, want 2", n)
	}
	if got := testutil.ToFloat64(env.metrics.SessionsExpired.WithLabelValues(metric.ExpiredSweep)); got != 2 {
		t.Fatalf("sessions_expired_total{sweep} = %v, want 2", got)
	}
	if n := env.store.Sessions.Count(); n != 0 {
		t.Fatalf("sessions left = %d, want 0", n)
	}
}

func TestAccountService_WhoamiAfterAccountVanished(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "erin", "secret")
	token := env.login(t, "erin", "secret")

	if err := env.store.Replace(nil, nil); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	// Header values may carry surrounding whitespace.
	if _, err := env.accounts.Whoami(ctx, " "+token+"\n"); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("Whoami err = %v, want ErrSessionInvalid", err)
	}
	if n := env.store.Sessions.Count(); n != 0 {
		t.Fatalf("Sessions.Count() = %d after Whoami on a vanished account, want 0", n)
	}
	if _, err := env.accounts.Authenticate(ctx, token); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("stale session still valid: %v", err)
	}
}

func TestAccountService_CanceledContext(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := env.accounts.Register(ctx, &RegisterRequest{Username: "fay", Password: "secret"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Register err = %v, want context.Canceled", err)
	}
	if env.store.Directory.Count() != 0 {
		t.Fatal("canceled Register created an account")
	}
}
