package memory

import (
	"fmt"
	"time"

	"github.com/yndnr/chathub-go/internal/core/domain"
)

// Store owns the shared chat state: the message log, the account
// directory and the session registry.
//
// Lock order for operations spanning both log and directory is log lock
// first, then directory lock. The session registry uses its own sharded
// locks and never takes either.
type Store struct {
	Log       *MessageLog
	Directory *Directory
	Sessions  *Registry

	now func() time.Time
}

type storeOptions struct {
	capacity int
	policy   IDPolicy
	maxText  int
	now      func() time.Time
}

// Option configures the Store.
type Option func(*storeOptions)

// WithClock overrides the time source. Tests use it to control expiry.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithCapacity sets the message log capacity.
func WithCapacity(n int) Option {
	return func(o *storeOptions) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithIDPolicy sets the message id policy.
func WithIDPolicy(p IDPolicy) Option {
	return func(o *storeOptions) {
		if p.Valid() {
			o.policy = p
		}
	}
}

// WithMaxTextLength sets the message text cap in characters.
func WithMaxTextLength(n int) Option {
	return func(o *storeOptions) {
		if n > 0 {
			o.maxText = n
		}
	}
}

// New creates an empty store.
func New(hasher PasswordHasher, opts ...Option) *Store {
	o := storeOptions{
		capacity: DefaultCapacity,
		policy:   PolicyRenumber,
		maxText:  domain.DefaultMaxTextLength,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Store{
		Log:       newMessageLog(o.capacity, o.policy, o.maxText, o.now),
		Directory: newDirectory(hasher, o.now),
		Sessions:  newRegistry(o.now),
		now:       o.now,
	}
}

// View is a mutually consistent copy of the persistable state.
type View struct {
	CapturedAt time.Time
	Accounts   []domain.Account
	Messages   []domain.ChatMessage

	// LatestID and TotalMessages describe the full log, not just the
	// captured suffix.
	LatestID      uint64
	TotalMessages int

	// TotalAppended counts appends since process start at capture time.
	TotalAppended uint64
}

// Capture copies all accounts and the newest limit messages under both
// read locks, so no append or registration can interleave.
func (s *Store) Capture(limit int) View {
	s.Log.mu.RLock()
	defer s.Log.mu.RUnlock()
	s.Directory.mu.RLock()
	defer s.Directory.mu.RUnlock()

	return View{
		CapturedAt:    s.now(),
		Accounts:      s.Directory.snapshotLocked(),
		Messages:      s.Log.suffixLocked(limit),
		LatestID:      s.Log.latestIDLocked(),
		TotalMessages: len(s.Log.entries),
		TotalAppended: s.Log.appended,
	}
}

// Replace installs accounts and messages as the new state. Validation
// happens before any lock is taken; on error nothing changes. Messages
// beyond capacity are trimmed oldest first.
func (s *Store) Replace(accounts []domain.Account, messages []domain.ChatMessage) error {
	accountMap, err := buildAccountMap(accounts)
	if err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	if err := validateMessages(messages, s.Log.policy); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}

	s.Log.mu.Lock()
	defer s.Log.mu.Unlock()
	s.Directory.mu.Lock()
	defer s.Directory.mu.Unlock()

	s.Directory.accounts = accountMap
	s.Log.replaceLocked(messages)
	return nil
}

// Stats is a point-in-time summary of the store sizes.
type Stats struct {
	Accounts      int    `json:"accounts"`
	Messages      int    `json:"messages"`
	LatestID      uint64 `json:"latest_id"`
	Sessions      int    `json:"sessions"`
	Appended      uint64 `json:"appended"`
	TrimmedTotal  uint64 `json:"trimmed_total"`
	LogCapacity   int    `json:"log_capacity"`
	MessageIDMode string `json:"message_id_mode"`
}

// Stats returns the current store sizes.
func (s *Store) Stats() Stats {
	s.Log.mu.RLock()
	st := Stats{
		Messages:      len(s.Log.entries),
		LatestID:      s.Log.latestIDLocked(),
		Appended:      s.Log.appended,
		TrimmedTotal:  s.Log.trimmed,
		LogCapacity:   s.Log.capacity,
		MessageIDMode: string(s.Log.policy),
	}
	s.Log.mu.RUnlock()

	st.Accounts = s.Directory.Count()
	st.Sessions = s.Sessions.Count()
	return st
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}
