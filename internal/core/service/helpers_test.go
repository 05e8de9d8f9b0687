package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/chathub-go/internal/core/credential"
	"github.com/yndnr/chathub-go/internal/storage"
	"github.com/yndnr/chathub-go/internal/storage/memory"
	"github.com/yndnr/chathub-go/internal/telemetry/metric"
)

var testHasher = credential.New(credential.Params{
	Salt:      "service-test-salt",
	Time:      1,
	MemoryKiB: 64,
	Threads:   1,
})

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
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

// fakeSink records summaries and optionally fails.
type fakeSink struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (s *fakeSink) Send(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.payloads = append(s.payloads, append([]byte(nil), payload...))
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

type testEnv struct {
	store    *memory.Store
	clock    *fakeClock
	slots    *storage.MemorySlotStore
	sink     *fakeSink
	metrics  *metric.Registry
	accounts *AccountService
	chat     *ChatService
	backup   *BackupService
}

func newTestEnv(t *testing.T, opts ...memory.Option) *testEnv {
	t.Helper()

	clk := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]memory.Option{memory.WithClock(clk.Now)}, opts...)
	store := memory.New(testHasher, opts...)

	slots := storage.NewMemorySlotStore()
	sink := &fakeSink{}
	reg := metric.NewRegistry()

	accounts := NewAccountService(store, AccountServiceConfig{}, reg, discard)
	images := storage.NewImageStore(slots, "chathub/images")
	chat := NewChatService(store, accounts, images, ChatServiceConfig{MaxImageBytes: 1024}, discard)
	backup, err := NewBackupService(store, slots, sink, BackupConfig{Timeout: time.Second}, reg, discard)
	if err != nil {
		t.Fatalf("NewBackupService: %v", err)
	}

	return &testEnv{
		store:    store,
		clock:    clk,
		slots:    slots,
		sink:     sink,
		metrics:  reg,
		accounts: accounts,
		chat:     chat,
		backup:   backup,
	}
}

func (e *testEnv) register(t *testing.T, username, password string) {
	t.Helper()
	if _, err := e.accounts.Register(context.Background(), &RegisterRequest{Username: username, Password: password}); err != nil {
		t.Fatalf("Register(%q): %v", username, err)
	}
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	res, err := e.accounts.Login(context.Background(), &LoginRequest{Username: username, Password: password})
	if err != nil {
		t.Fatalf("Login(%q): %v", username, err)
	}
	return res.Token
}

func (e *testEnv) post(t *testing.T, token, text string) uint64 {
	t.Helper()
	m, err := e.chat.Post(context.Background(), &PostRequest{Token: token, Text: text})
	if err != nil {
		t.Fatalf("Post(%q): %v", text, err)
	}
	return m.ID
}
