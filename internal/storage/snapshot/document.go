package snapshot

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/chathub-go/internal/core/credential"
	"github.com/yndnr/chathub-go/internal/core/domain"
)

// FormatVersion is the document version written by Encode.
const FormatVersion = 1

// Document is the persisted form of accounts plus recent messages.
type Document struct {
	Version    int                      `json:"version"`
	ID         string                   `json:"id"`
	CapturedAt time.Time                `json:"captured_at"`
	Accounts   map[string]AccountRecord `json:"accounts"`
	Messages   []domain.ChatMessage     `json:"messages"`
	Counters   Counters                 `json:"counters"`
}

// AccountRecord is the persisted form of an account. The map key of
// Document.Accounts equals Username.
type AccountRecord struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

// Counters summarize the state the document was captured from.
type Counters struct {
	Accounts        int    `json:"accounts"`
	Messages        int    `json:"messages"`
	LatestMessageID uint64 `json:"latest_message_id"`
	TotalAppended   uint64 `json:"total_appended"`
}

// New builds a document from captured state.
func New(capturedAt time.Time, accounts []domain.Account, messages []domain.ChatMessage, totalAppended uint64) *Document {
	doc := &Document{
		Version:    FormatVersion,
		ID:         newID(capturedAt),
		CapturedAt: capturedAt.UTC(),
		Accounts:   make(map[string]AccountRecord, len(accounts)),
		Messages:   messages,
		Counters: Counters{
			Accounts:      len(accounts),
			Messages:      len(messages),
			TotalAppended: totalAppended,
		},
	}
	if doc.Messages == nil {
		doc.Messages = []domain.ChatMessage{}
	}
	if n := len(messages); n > 0 {
		doc.Counters.LatestMessageID = messages[n-1].ID
	}
	for _, a := range accounts {
		doc.Accounts[a.Username] = AccountRecord{
			Username:     a.Username,
			PasswordHash: a.PasswordHash,
			CreatedAt:    a.CreatedAt,
			LastSeenAt:   a.LastSeenAt,
		}
	}
	return doc
}

func newID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return ""
	}
	return id.String()
}

// AccountList returns the accounts ordered by username.
func (d *Document) AccountList() []domain.Account {
	names := make([]string, 0, len(d.Accounts))
	for k := range d.Accounts {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]domain.Account, 0, len(names))
	for _, k := range names {
		r := d.Accounts[k]
		out = append(out, domain.Account{
			Username:     r.Username,
			PasswordHash: r.PasswordHash,
			CreatedAt:    r.CreatedAt,
			LastSeenAt:   r.LastSeenAt,
		})
	}
	return out
}

// Validate checks the document for internal consistency. Any violation
// is reported as ErrSnapshotCorrupt with details.
func (d *Document) Validate() error {
	if d.Version != FormatVersion {
		return corrupt("unsupported version %d", d.Version)
	}
	if d.Accounts == nil {
		return corrupt("missing accounts")
	}

	folded := make(map[string]string, len(d.Accounts))
	for key, r := range d.Accounts {
		if key != r.Username {
			return corrupt("account key %q does not match username %q", key, r.Username)
		}
		if err := domain.ValidateUsername(r.Username); err != nil {
			return corrupt("account %q: invalid username", key)
		}
		if r.PasswordHash == "" {
			return corrupt("account %q: empty password hash", key)
		}
		if err := credential.CheckHash(r.PasswordHash); err != nil {
			return corrupt("account %q: %v", key, err)
		}
		n := domain.NormalizeUsername(r.Username)
		if other, dup := folded[n]; dup {
			return corrupt("accounts %q and %q collide", other, r.Username)
		}
		folded[n] = r.Username
	}

	var prev uint64
	for i, m := range d.Messages {
		if m.Author == "" || len(m.Author) > domain.MaxAuthorLength {
			return corrupt("message %d: invalid author", i)
		}
		if !m.HasContent() {
			return corrupt("message %d: no text or attachment", i)
		}
		if m.Attachment != nil && !m.Attachment.Empty() && !m.Attachment.Kind.Valid() {
			return corrupt("message %d: unknown attachment kind %q", i, m.Attachment.Kind)
		}
		if m.ID == 0 || m.ID <= prev {
			return corrupt("message %d: id %d not increasing", i, m.ID)
		}
		prev = m.ID
	}

	if d.Counters.Accounts != len(d.Accounts) {
		return corrupt("counters.accounts = %d, have %d", d.Counters.Accounts, len(d.Accounts))
	}
	if d.Counters.Messages != len(d.Messages) {
		return corrupt("counters.messages = %d, have %d", d.Counters.Messages, len(d.Messages))
	}
	if d.Counters.LatestMessageID != prev {
		return corrupt("counters.latest_message_id = %d, last id %d", d.Counters.LatestMessageID, prev)
	}
	return nil
}

func corrupt(format string, args ...any) error {
	return domain.ErrSnapshotCorrupt.WithDetails(fmt.Sprintf(format, args...))
}

// Encode validates and serializes doc, encrypting it when cfg enables
// encryption.
func Encode(doc *Document, cfg EncryptionConfig) ([]byte, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	plain, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal: %w", err)
	}
	if !cfg.Enabled() {
		return plain, nil
	}

	env, err := seal(cfg, plain)
	if err != nil {
		return nil, err
	}
	blob, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal envelope: %w", err)
	}
	return blob, nil
}

// Decode parses and validates a blob produced by Encode. Plaintext blobs
// are accepted even when a passphrase is configured. Every failure wraps
// ErrSnapshotCorrupt.
func Decode(blob []byte, cfg EncryptionConfig) (*Document, error) {
	var head struct {
		Encrypted bool `json:"encrypted"`
	}
	if err := json.Unmarshal(blob, &head); err != nil {
		return nil, domain.ErrSnapshotCorrupt.WithDetails("not a json document").WithCause(err)
	}

	plain := blob
	if head.Encrypted {
		var env envelope
		if err := strictUnmarshal(blob, &env); err != nil {
			return nil, domain.ErrSnapshotCorrupt.WithDetails("malformed envelope").WithCause(err)
		}
		var err error
		plain, err = open(cfg.Passphrase, &env)
		if err != nil {
			return nil, domain.ErrSnapshotCorrupt.WithDetails(err.Error()).WithCause(err)
		}
	}

	var doc Document
	if err := strictUnmarshal(plain, &doc); err != nil {
		return nil, domain.ErrSnapshotCorrupt.WithDetails("malformed document").WithCause(err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after document")
	}
	return nil
}
