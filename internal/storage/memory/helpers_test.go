package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/yndnr/chathub-go/internal/core/credential"
	"github.com/yndnr/chathub-go/internal/core/domain"
)

var testHasher = credential.New(credential.Params{
	Salt:      "memory-test-salt",
	Time:      1,
	MemoryKiB: 64,
	Threads:   1,
})

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	opts = append([]Option{WithClock(clk.Now)}, opts...)
	return New(testHasher, opts...), clk
}

func text(author, body string) domain.NewMessage {
	return domain.NewMessage{Author: author, Text: body}
}

func mustAppend(t *testing.T, l *MessageLog, n domain.NewMessage) domain.ChatMessage {
	t.Helper()
	res, err := l.Append(n)
	if err != nil {
		t.Fatalf("Append(%q): %v", n.Text, err)
	}
	return res.Message
}
