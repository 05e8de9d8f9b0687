package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yndnr/chathub-go/internal/core/credential"
	"github.com/yndnr/chathub-go/internal/core/domain"
)

// PasswordHasher derives and checks password hashes.
// *credential.Vault satisfies it.
type PasswordHasher interface {
	Hash(password string) string
	Verify(password, encoded string) bool
}

// Directory maps case-insensitive usernames to accounts.
//
// Password hashing runs outside the lock; only the map access is guarded.
type Directory struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account // key: normalized username

	hasher    PasswordHasher
	dummyHash string
	now       func() time.Time
}

func newDirectory(hasher PasswordHasher, now func() time.Time) *Directory {
	return &Directory{
		accounts: make(map[string]domain.Account),
		hasher:   hasher,
		// Verified against for unknown usernames so both failure paths
		// cost one hash.
		dummyHash: hasher.Hash("chathub-unknown-account"),
		now:       now,
	}
}

// Register creates an account. Usernames collide case-insensitively.
func (d *Directory) Register(username, password string) (domain.Account, error) {
	if err := domain.ValidateUsername(username); err != nil {
		return domain.Account{}, err
	}
	if err := domain.ValidatePassword(password); err != nil {
		return domain.Account{}, err
	}

	key := domain.NormalizeUsername(username)
	if d.Exists(username) {
		return domain.Account{}, domain.ErrUsernameTaken
	}

	now := d.now()
	acct := domain.Account{
		Username:     username,
		PasswordHash: d.hasher.Hash(password),
		CreatedAt:    now,
		LastSeenAt:   now,
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Re-check: another registration may have won while we were hashing.
	if _, ok := d.accounts[key]; ok {
		return domain.Account{}, domain.ErrUsernameTaken
	}
	d.accounts[key] = acct
	return acct, nil
}

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords both yield ErrInvalidCredentials.
func (d *Directory) Authenticate(username, password string) (domain.Account, error) {
	key := domain.NormalizeUsername(username)

	d.mu.RLock()
	acct, ok := d.accounts[key]
	d.mu.RUnlock()

	if !ok {
		d.hasher.Verify(password, d.dummyHash)
		return domain.Account{}, domain.ErrInvalidCredentials.WithCause(domain.ErrUnknownAccount)
	}
	if !d.hasher.Verify(password, acct.PasswordHash) {
		return domain.Account{}, domain.ErrInvalidCredentials.WithCause(domain.ErrPasswordMismatch)
	}

	now := d.now()
	d.mu.Lock()
	if cur, ok := d.accounts[key]; ok && cur.PasswordHash == acct.PasswordHash {
		cur.LastSeenAt = now
		d.accounts[key] = cur
		acct = cur
	}
	d.mu.Unlock()

	return acct, nil
}

// Get returns the account for username.
func (d *Directory) Get(username string) (domain.Account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acct, ok := d.accounts[domain.NormalizeUsername(username)]
	return acct, ok
}

// Exists reports whether username is registered.
func (d *Directory) Exists(username string) bool {
	_, ok := d.Get(username)
	return ok
}

// Count returns the number of registered accounts.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.accounts)
}

// snapshotLocked returns all accounts ordered by normalized username.
func (d *Directory) snapshotLocked() []domain.Account {
	keys := make([]string, 0, len(d.accounts))
	for k := range d.accounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]domain.Account, 0, len(keys))
	for _, k := range keys {
		out = append(out, d.accounts[k])
	}
	return out
}

// buildAccountMap validates restored accounts and indexes them. It runs
// before any lock is taken.
func buildAccountMap(accounts []domain.Account) (map[string]domain.Account, error) {
	m := make(map[string]domain.Account, len(accounts))
	for i, a := range accounts {
		if err := domain.ValidateUsername(a.Username); err != nil {
			return nil, fmt.Errorf("account %d: invalid username %q", i, a.Username)
		}
		if a.PasswordHash == "" {
			return nil, fmt.Errorf("account %d: empty password hash", i)
		}
		if err := credential.CheckHash(a.PasswordHash); err != nil {
			return nil, fmt.Errorf("account %d: %w", i, err)
		}
		key := domain.NormalizeUsername(a.Username)
		if _, dup := m[key]; dup {
			return nil, fmt.Errorf("account %d: duplicate username %q", i, a.Username)
		}
		m[key] = a
	}
	return m, nil
}
