package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/chathub-go/internal/core/domain"
	"github.com/yndnr/chathub-go/internal/storage/memory"
	"github.com/yndnr/chathub-go/internal/storage/snapshot"
	"github.com/yndnr/chathub-go/internal/telemetry/metric"
)

func TestBackupService_PublishRestoreRoundTrip(t *testing.T) {
	src := newTestEnv(t)
	ctx := context.Background()

	src.register(t, "alice", "secret")
	src.register(t, "Bob", "secret")
	token := src.login(t, "alice", "secret")
	for i := 1; i <= 60; i++ {
		src.post(t, token, fmt.Sprintf("m%d", i))
	}

	if err := src.backup.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	last := src.backup.LastPublish()
	if last == nil || last.Messages != DefaultMessageLimit || last.Accounts != 2 {
		t.Fatalf("LastPublish = %+v, want 50 messages and 2 accounts", last)
	}

	// A fresh process restoring from the same slot store.
	dst := newTestEnv(t)
	dst.backup.slots = src.slots

	res, err := dst.backup.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.Accounts != 2 || res.Messages != 50 || res.LatestID != 50 {
		t.Fatalf("RestoreResult = %+v, want 2 accounts, 50 messages, latest 50", res)
	}

	msgs := dst.store.Log.Since(0).Messages
	if msgs[0].Text != "m11" || msgs[0].ID != 1 {
		t.Fatalf("first restored = %q id %d, want m11 id 1", msgs[0].Text, msgs[0].ID)
	}
	if _, err := dst.accounts.Login(ctx, &LoginRequest{Username: "bob", Password: "secret"}); err != nil {
		t.Fatalf("Login after restore: %v", err)
	}
	if dst.backup.Restored() == nil {
		t.Fatal("Restored() = nil after a restore")
	}
	if got := testutil.ToFloat64(dst.metrics.SnapshotRestore.WithLabelValues(metric.ResultSuccess)); got != 1 {
		t.Fatalf("snapshot_restore_total{success} = %v, want 1", got)
	}
}

func TestBackupService_RestoreMonotonicKeepsIDs(t *testing.T) {
	src := newTestEnv(t, memory.WithIDPolicy(memory.PolicyMonotonic))
	src.register(t, "alice", "secret")
	token := src.login(t, "alice", "secret")
	for i := 1; i <= 120; i++ {
		src.post(t, token, fmt.Sprintf("m%d", i))
	}
	if err := src.backup.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	dst := newTestEnv(t, memory.WithIDPolicy(memory.PolicyMonotonic))
	dst.backup.slots = src.slots
	if _, err := dst.backup.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	msgs := dst.store.Log.Since(0).Messages
	if msgs[0].ID != 71 || msgs[len(msgs)-1].ID != 120 {
		t.Fatalf("restored ids %d..%d, want 71..120", msgs[0].ID, msgs[len(msgs)-1].ID)
	}
	next := dst.post(t, dst.login(t, "alice", "secret"), "after")
	if next != 121 {
		t.Fatalf("next id = %d, want 121", next)
	}
}

func TestBackupService_RestoreEmptySlot(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.backup.Restore(context.Background())
	if !errors.Is(err, domain.ErrSnapshotUnavailable) {
		t.Fatalf("Restore err = %v, want ErrSnapshotUnavailable", err)
	}
	if got := testutil.ToFloat64(env.metrics.SnapshotRestore.WithLabelValues(metric.ResultEmpty)); got != 1 {
		t.Fatalf("snapshot_restore_total{empty} = %v, want 1", got)
	}
}

func TestBackupService_CorruptRestoreLeavesStateUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice", "secret")
	token := env.login(t, "alice", "secret")
	env.post(t, token, "before")

	good, err := snapshot.Encode(env.backup.Capture(), snapshot.EncryptionConfig{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	blobs := map[string][]byte{
		"truncated":     good[:len(good)/2],
		"hash cost":     bytes.Replace(good, []byte("t=1,m=64,p=1"), []byte("t=400,m=64,p=1"), 1),
		"not json":      []byte("<html>502 Bad Gateway</html>"),
		"unknown field": []byte(`{"version":1,"accounts":{},"messages":[],"counters":{},"extra":true}`),
		"bad version":   []byte(`{"version":9,"id":"x","captured_at":"2026-01-01T00:00:00Z","accounts":{},"messages":[],"counters":{"accounts":0,"messages":0,"latest_message_id":0,"total_appended":0}}`),
	}

	before := env.store.Capture(0)
	for name, blob := range blobs {
		t.Run(name, func(t *testing.T) {
			if err := env.slots.Put(ctx, DefaultSnapshotSlot, blob); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if _, err := env.backup.Restore(ctx); !errors.Is(err, domain.ErrSnapshotCorrupt) {
				t.Fatalf("Restore err = %v, want ErrSnapshotCorrupt", err)
			}

			after := env.store.Capture(0)
			if !reflect.DeepEqual(before.Accounts, after.Accounts) || !reflect.DeepEqual(before.Messages, after.Messages) {
				t.Fatal("corrupt restore modified live state")
			}
		})
	}

	if got := testutil.ToFloat64(env.metrics.SnapshotRestore.WithLabelValues(metric.ResultCorrupt)); got != float64(len(blobs)) {
		t.Fatalf("snapshot_restore_total{corrupt} = %v, want %d", got, len(blobs))
	}
}

func TestBackupService_PublishFailureThenSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice", "secret")

	env.slots.SetHook(func(ctx context.Context, op, key string) error {
		if op == "put" {
			return errors.New("503 service unavailable")
		}
		return nil
	})

	before := env.store.Capture(0)
	err := env.backup.RunOnce(ctx)
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("RunOnce err = %v, want ErrStorage", err)
	}
	if after := env.store.Capture(0); !reflect.DeepEqual(before.Accounts, after.Accounts) {
		t.Fatal("failed publish modified state")
	}
	if env.backup.LastPublish() != nil {
		t.Fatal("LastPublish set after a failed publish")
	}
	if got := testutil.ToFloat64(env.metrics.SnapshotPublish.WithLabelValues(metric.ResultFailure)); got != 1 {
		t.Fatalf("snapshot_publish_total{failure} = %v, want 1", got)
	}

	env.clock.Advance(5 * time.Minute)
	env.slots.SetHook(nil)
	if err := env.backup.RunOnce(ctx); err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if got := testutil.ToFloat64(env.metrics.SnapshotPublish.WithLabelValues(metric.ResultSuccess)); got != 1 {
		t.Fatalf("snapshot_publish_total{success} = %v, want 1", got)
	}
}

func TestBackupService_PublishTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.backup.cfg.Timeout = 20 * time.Millisecond

	env.slots.SetHook(func(ctx context.Context, op, key string) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	err := env.backup.Publish(context.Background(), env.backup.Capture())
	if !errors.Is(err, domain.ErrStorage) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Publish err = %v, want ErrStorage caused by deadline", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Publish took %v, timeout not applied", elapsed)
	}
	if got := testutil.ToFloat64(env.metrics.SnapshotPublish.WithLabelValues(metric.ResultTimeout)); got != 1 {
		t.Fatalf("snapshot_publish_total{timeout} = %v, want 1", got)
	}
}

func TestBackupService_StatusDuringPublish(t *testing.T) {
	env := newTestEnv(t)
	env.backup.cfg.Timeout = 2 * time.Second

	entered := make(chan struct{})
	release := make(chan struct{})
	env.slots.SetHook(func(ctx context.Context, op, key string) error {
		if op != "put" {
			return nil
		}
		close(entered)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	done := make(chan error, 1)
	go func() { done <- env.backup.RunOnce(context.Background()) }()
	<-entered

	start := time.Now()
	st := env.backup.Status()
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("Status() took %v while a publish was in flight", elapsed)
	}
	if st.LastPublish != nil {
		t.Fatalf("LastPublish = %+v before the first publish finished", st.LastPublish)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if env.backup.Status().LastPublish == nil {
		t.Fatal("LastPublish = nil after a successful publish")
	}
}

func TestBackupService_StalePublishSkipped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	older := env.backup.Capture()
	env.clock.Advance(time.Minute)
	newer := env.backup.Capture()

	if err := env.backup.Publish(ctx, newer); err != nil {
		t.Fatalf("Publish newer: %v", err)
	}
	if err := env.backup.Publish(ctx, older); !errors.Is(err, ErrStaleSnapshot) {
		t.Fatalf("Publish older err = %v, want ErrStaleSnapshot", err)
	}
	if env.backup.LastPublish().SnapshotID != newer.ID {
		t.Fatal("stale publish replaced the last snapshot")
	}
}

func TestBackupService_EncryptedRoundTrip(t *testing.T) {
	enc := snapshot.EncryptionConfig{
		Passphrase: []byte("correct horse battery"),
		KDF:        snapshot.KDFParams{Time: 1, MemoryKiB: 64, Threads: 1},
	}
	ctx := context.Background()

	src := newTestEnv(t)
	src.backup.cfg.Encryption = enc
	src.register(t, "alice", "secret")
	if err := src.backup.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	dst := newTestEnv(t)
	dst.backup.slots = src.slots
	dst.backup.cfg.Encryption = snapshot.EncryptionConfig{
		Passphrase: []byte("wrong passphrase!"),
	}
	if _, err := dst.backup.Restore(ctx); !errors.Is(err, domain.ErrSnapshotCorrupt) {
		t.Fatalf("Restore with wrong passphrase err = %v, want ErrSnapshotCorrupt", err)
	}

	dst.backup.cfg.Encryption = enc
	if _, err := dst.backup.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !dst.store.Directory.Exists("alice") {
		t.Fatal("alice missing after encrypted restore")
	}
}

func TestNewBackupService_RejectsWeakPassphrase(t *testing.T) {
	store := memory.New(testHasher)
	_, err := NewBackupService(store, nil, nil, BackupConfig{
		Encryption: snapshot.EncryptionConfig{Passphrase: []byte("short")},
	}, nil, discard)
	if !errors.Is(err, snapshot.ErrPassphraseTooWeak) {
		t.Fatalf("err = %v, want ErrPassphraseTooWeak", err)
	}
}

func TestBackupService_Summary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice", "secret")
	token := env.login(t, "alice", "secret")
	for i := 1; i <= 8; i++ {
		env.post(t, token, fmt.Sprintf("m%d", i))
	}

	if err := env.backup.PublishSummary(ctx); err != nil {
		t.Fatalf("PublishSummary: %v", err)
	}

	var sum Summary
	if err := json.Unmarshal(env.sink.payloads[0], &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.Accounts != 1 || sum.Messages != 8 || sum.LatestID != 8 {
		t.Fatalf("summary = %+v, want 1 account, 8 messages, latest 8", sum)
	}
	if len(sum.Recent) != DefaultSummaryRecent || sum.Recent[0].Text != "m4" {
		t.Fatalf("recent = %+v, want m4..m8", sum.Recent)
	}
}

func TestBackupService_SummaryFailureIsIsolated(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "secret")
	env.sink.err = errors.New("redis: connection refused")

	if err := env.backup.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce err = %v, want nil despite summary failure", err)
	}
	if env.backup.LastPublish() == nil {
		t.Fatal("snapshot not published")
	}
	if got := testutil.ToFloat64(env.metrics.SummaryPublish.WithLabelValues(metric.ResultFailure)); got != 1 {
		t.Fatalf("summary_publish_total{failure} = %v, want 1", got)
	}
}

func TestBackupService_CaptureDuringWrites(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "writer", "secret")
	token := env.login(t, "writer", "secret")
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if _, err := env.chat.Post(ctx, &PostRequest{Token: token, Text: fmt.Sprintf("m%d", i)}); err != nil {
				t.Errorf("Post: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			req := &RegisterRequest{Username: fmt.Sprintf("user_%d", i), Password: "secret"}
			if _, err := env.accounts.Register(ctx, req); err != nil {
				t.Errorf("Register: %v", err)
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for captures := 0; ; captures++ {
		doc := env.backup.Capture()
		if err := doc.Validate(); err != nil {
			t.Fatalf("capture %d is torn: %v", captures, err)
		}
		select {
		case <-done:
			return
		default:
		}
	}
}
