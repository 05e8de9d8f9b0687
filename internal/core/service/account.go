package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/yndnr/chathub-go/internal/core/domain"
	"github.com/yndnr/chathub-go/internal/storage/memory"
	"github.com/yndnr/chathub-go/internal/telemetry/metric"
)

// AccountServiceConfig configures AccountService.
type AccountServiceConfig struct {
	// SessionTTL is the lifetime of sessions issued by Login.
	// Default: 24h
	SessionTTL time.Duration
}

// AccountService handles registration, login and session lookups.
type AccountService struct {
	store   *memory.Store
	ttl     time.Duration
	metrics *metric.Registry
	logger  *slog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(store *memory.Store, cfg AccountServiceConfig, metrics *metric.Registry, logger *slog.Logger) *AccountService {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = memory.DefaultSessionTTL
	}
	if metrics == nil {
		metrics = metric.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		store:   store,
		ttl:     cfg.SessionTTL,
		metrics: metrics,
		logger:  logger,
	}
}

// AccountInfo is the public view of an account.
type AccountInfo struct {
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

func accountInfo(a domain.Account) AccountInfo {
	return AccountInfo{Username: a.Username, CreatedAt: a.CreatedAt, LastSeenAt: a.LastSeenAt}
}

// RegisterRequest contains parameters for account registration.
type RegisterRequest struct {
	Username string
	Password string
}

// Register creates an account.
func (s *AccountService) Register(ctx context.Context, req *RegisterRequest) (AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return AccountInfo{}, err
	}

	acct, err := s.store.Directory.Register(req.Username, req.Password)
	if err != nil {
		return AccountInfo{}, err
	}

	s.metrics.AccountsRegistered.Inc()
	s.logger.InfoContext(ctx, "account registered", "username", acct.Username)
	return accountInfo(acct), nil
}

// LoginRequest contains parameters for Login.
type LoginRequest struct {
	Username      string
	Password      string
	SourceAddress string
}

// LoginResult is returned by a successful Login. Token is only ever
// returned here.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   AccountInfo
}

// Login authenticates the user and issues a session.
func (s *AccountService) Login(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acct, err := s.store.Directory.Authenticate(req.Username, req.Password)
	if err != nil {
		s.metrics.Logins.WithLabelValues(loginOutcome(err)).Inc()
		return nil, err
	}
	s.metrics.Logins.WithLabelValues(metric.LoginOK).Inc()

	plain, sess, err := s.store.Sessions.Create(acct.Username, s.ttl)
	if err != nil {
		s.logger.ErrorContext(ctx, "create session failed", "username", acct.Username, "error", err)
		return nil, domain.ErrInternal.WithCause(err)
	}
	s.metrics.SessionsCreated.Inc()

	s.logger.DebugContext(ctx, "login succeeded",
		"username", acct.Username,
		"source", req.SourceAddress,
		"expires_at", sess.ExpiresAt)

	return &LoginResult{
		Token:     plain,
		ExpiresAt: sess.ExpiresAt,
		Account:   accountInfo(acct),
	}, nil
}

func loginOutcome(err error) string {
	if errors.Is(err, domain.ErrUnknownAccount) {
		return metric.LoginUnknownUser
	}
	return metric.LoginBadPassword
}

// Authenticate resolves a session token to its username.
func (s *AccountService) Authenticate(ctx context.Context, token string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	username, err := s.store.Sessions.Validate(strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionExpired) {
			s.metrics.SessionsExpired.WithLabelValues(metric.ExpiredLazy).Inc()
		}
		return "", err
	}
	return username, nil
}

// Logout revokes the session. Logging out an unknown session is not an
// error.
func (s *AccountService) Logout(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.store.Sessions.Revoke(strings.TrimSpace(token))
	return nil
}

// Whoami returns the account owning the session.
func (s *AccountService) Whoami(ctx context.Context, token string) (AccountInfo, error) {
	token = strings.TrimSpace(token)
	username, err := s.Authenticate(ctx, token)
	if err != nil {
		return AccountInfo{}, err
	}
	acct, ok := s.store.Directory.Get(username)
	if !ok {
		// The account disappeared under a restore; the session is stale.
		s.store.Sessions.Revoke(token)
		return AccountInfo{}, domain.ErrSessionInvalid
	}
	return accountInfo(acct), nil
}

// SweepExpired removes expired sessions and returns how many were removed.
func (s *AccountService) SweepExpired(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	n := s.store.Sessions.SweepExpired(s.store.Now())
	if n > 0 {
		s.metrics.SessionsExpired.WithLabelValues(metric.ExpiredSweep).Add(float64(n))
		s.logger.Debug("expired sessions swept", "count", n)
	}
	return n
}
