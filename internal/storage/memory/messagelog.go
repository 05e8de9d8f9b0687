package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yndnr/chathub-go/internal/core/domain"
)

// DefaultCapacity is the default number of messages the log retains.
const DefaultCapacity = 100

// IDPolicy selects how message ids behave when the log trims.
type IDPolicy string

const (
	// PolicyRenumber reassigns ids 1..N after every trim, so the oldest
	// retained message is always id 1.
	PolicyRenumber IDPolicy = "renumber"

	// PolicyMonotonic never reuses an id; trimming leaves gaps at the front.
	PolicyMonotonic IDPolicy = "monotonic"
)

// Valid reports whether p is a known policy.
func (p IDPolicy) Valid() bool {
	return p == PolicyRenumber || p == PolicyMonotonic
}

// AppendResult is returned by MessageLog.Append.
type AppendResult struct {
	// Message is the message as stored after any trim, carrying its
	// final id.
	Message domain.ChatMessage

	// Trimmed is the number of old messages dropped by this append.
	Trimmed int
}

// SinceResult is returned by MessageLog.Since.
type SinceResult struct {
	Messages []domain.ChatMessage
	LatestID uint64
	Total    int
}

// MessageLog is a bounded, ordered, concurrently appendable message list.
//
// Ids are strictly increasing from oldest to newest. Under PolicyRenumber
// they are exactly 1..N at every observable moment.
type MessageLog struct {
	mu       sync.RWMutex
	entries  []domain.ChatMessage
	capacity int
	policy   IDPolicy
	maxText  int
	nextID   uint64
	appended uint64
	trimmed  uint64
	now      func() time.Time
}

func newMessageLog(capacity int, policy IDPolicy, maxText int, now func() time.Time) *MessageLog {
	return &MessageLog{
		entries:  make([]domain.ChatMessage, 0, capacity+1),
		capacity: capacity,
		policy:   policy,
		maxText:  maxText,
		nextID:   1,
		now:      now,
	}
}

// Append validates, stamps and stores a message, trimming the oldest
// entries when the log exceeds its capacity.
func (l *MessageLog) Append(n domain.NewMessage) (AppendResult, error) {
	if err := l.Validate(n); err != nil {
		return AppendResult{}, err
	}

	msg := domain.ChatMessage{
		Author:        n.Author,
		Text:          n.Text,
		SourceAddress: n.SourceAddress,
	}
	if !n.Attachment.Empty() {
		a := *n.Attachment
		msg.Attachment = &a
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg.CreatedAt = l.now()
	msg.ID = l.nextIDLocked()
	l.entries = append(l.entries, msg)
	l.appended++

	trimmed := l.trimLocked()
	return AppendResult{
		Message: l.entries[len(l.entries)-1].Clone(),
		Trimmed: trimmed,
	}, nil
}

// Validate reports whether Append would accept n, without storing it.
func (l *MessageLog) Validate(n domain.NewMessage) error {
	return n.Validate(l.maxText)
}

// Since returns the messages with id strictly greater than cursor,
// together with the latest id and the total retained count.
func (l *MessageLog) Since(cursor uint64) SinceResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].ID > cursor
	})

	return SinceResult{
		Messages: cloneMessages(l.entries[i:]),
		LatestID: l.latestIDLocked(),
		Total:    len(l.entries),
	}
}

// SnapshotSuffix returns a copy of the newest limit messages in order.
// A non-positive limit returns every message.
func (l *MessageLog) SnapshotSuffix(limit int) []domain.ChatMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.suffixLocked(limit)
}

// Len returns the number of retained messages.
func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// LatestID returns the id of the newest message, or 0 if the log is empty.
func (l *MessageLog) LatestID() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.latestIDLocked()
}

// Policy returns the configured id policy.
func (l *MessageLog) Policy() IDPolicy {
	return l.policy
}

func (l *MessageLog) nextIDLocked() uint64 {
	if l.policy == PolicyMonotonic {
		id := l.nextID
		l.nextID++
		return id
	}
	return l.latestIDLocked() + 1
}

func (l *MessageLog) latestIDLocked() uint64 {
	if len(l.entries) == 0 {
		return 0
	}
	return l.entries[len(l.entries)-1].ID
}

// trimLocked drops the oldest entries above capacity and renumbers when
// the policy asks for it.
func (l *MessageLog) trimLocked() int {
	over := len(l.entries) - l.capacity
	if over <= 0 {
		return 0
	}

	// Copy so the dropped messages do not stay reachable through the
	// backing array.
	kept := make([]domain.ChatMessage, len(l.entries)-over, l.capacity+1)
	copy(kept, l.entries[over:])
	l.entries = kept
	l.trimmed += uint64(over)

	if l.policy == PolicyRenumber {
		l.renumberLocked()
	}
	return over
}

func (l *MessageLog) renumberLocked() {
	for i := range l.entries {
		l.entries[i].ID = uint64(i + 1)
	}
}

func (l *MessageLog) suffixLocked(limit int) []domain.ChatMessage {
	start := 0
	if limit > 0 && len(l.entries) > limit {
		start = len(l.entries) - limit
	}
	return cloneMessages(l.entries[start:])
}

// validateMessages checks a restored message list before it may replace
// the live log.
func validateMessages(messages []domain.ChatMessage, policy IDPolicy) error {
	var prev uint64
	for i, m := range messages {
		if m.Author == "" || len(m.Author) > domain.MaxAuthorLength {
			return fmt.Errorf("message %d: invalid author", i)
		}
		if !m.HasContent() {
			return fmt.Errorf("message %d: no text or attachment", i)
		}
		if m.Attachment != nil && !m.Attachment.Empty() && !m.Attachment.Kind.Valid() {
			return fmt.Errorf("message %d: unknown attachment kind %q", i, m.Attachment.Kind)
		}
		if policy == PolicyMonotonic {
			if m.ID == 0 || (i > 0 && m.ID <= prev) {
				return fmt.Errorf("message %d: id %d not increasing", i, m.ID)
			}
			prev = m.ID
		}
	}
	return nil
}

// replaceLocked installs messages as the new log content. The caller has
// already validated them.
func (l *MessageLog) replaceLocked(messages []domain.ChatMessage) {
	if over := len(messages) - l.capacity; over > 0 {
		messages = messages[over:]
	}

	entries := make([]domain.ChatMessage, len(messages), l.capacity+1)
	copy(entries, cloneMessages(messages))
	l.entries = entries

	switch l.policy {
	case PolicyMonotonic:
		l.nextID = l.latestIDLocked() + 1
	default:
		l.renumberLocked()
	}
}

func cloneMessages(src []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(src))
	for i, m := range src {
		out[i] = m.Clone()
	}
	return out
}
