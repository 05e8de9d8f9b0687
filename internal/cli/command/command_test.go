package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/chathub-go/internal/core/credential"
	"github.com/yndnr/chathub-go/internal/core/domain"
	"github.com/yndnr/chathub-go/internal/core/service"
	"github.com/yndnr/chathub-go/internal/server/config"
	"github.com/yndnr/chathub-go/internal/server/httpserver/handler"
	"github.com/yndnr/chathub-go/internal/storage"
	"github.com/yndnr/chathub-go/internal/storage/memory"
	"github.com/yndnr/chathub-go/internal/storage/snapshot"
)

// run executes the CLI with args and returns its stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	app := App()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.Reader = strings.NewReader(stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"chathub-cli"}, args...))
	return out.String(), err
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

// writeConfig writes a server config using a file backend under a temp dir
// and returns its path and the slot directory.
func writeConfig(t *testing.T, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	slots := filepath.Join(dir, "slots")
	body := "snapshot:\n  backend: file\n  file:\n    dir: " + slots + "\n" +
		"credential:\n  salt: cli-test\n  memory_kib: 64\n" + extra
	path := filepath.Join(dir, "server.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path, slots
}

func putSlot(t *testing.T, dir string, blob []byte) {
	t.Helper()
	slots, err := storage.NewFileSlotStore(dir)
	if err != nil {
		t.Fatalf("NewFileSlotStore: %v", err)
	}
	defer slots.Close()
	if err := slots.Put(context.Background(), config.DefaultSnapshotSlot, blob); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func sampleSnapshot(t *testing.T) []byte {
	t.Helper()
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	doc := snapshot.New(at,
		[]domain.Account{
			{Username: "alice", PasswordHash: "argon2id$t=1,m=64,p=1$" + strings.Repeat("A", 43), CreatedAt: at, LastSeenAt: at},
			{Username: "bob", PasswordHash: "argon2id$t=1,m=64,p=1$" + strings.Repeat("Q", 43), CreatedAt: at, LastSeenAt: at},
		},
		[]domain.ChatMessage{
			{ID: 1, Author: "alice", Text: "hello", CreatedAt: at, SourceAddress: "10.0.0.1"},
			{ID: 2, Author: "bob", Attachment: &domain.Attachment{Kind: domain.AttachmentLink, Reference: "https://example.com"}, CreatedAt: at},
		}, 2)
	blob, err := snapshot.Encode(doc, snapshot.EncryptionConfig{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return blob
}

func TestApp_RejectsUnknownOutput(t *testing.T) {
	if _, err := run(t, "", "-o", "xml", "version"); err == nil {
		t.Fatal("expected error for -o xml")
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "-o", "json", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var info struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal([]byte(out), &info); err != nil || info.Version == "" {
		t.Fatalf("version output = %q (err %v)", out, err)
	}
}

func TestHash(t *testing.T) {
	cfgPath, _ := writeConfig(t, "")
	want := credential.New(credential.Params{Salt: "cli-test", Time: 1, MemoryKiB: 64, Threads: 1}).Hash("s3cret!")

	out, err := run(t, "", "-c", cfgPath, "hash", "s3cret!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if strings.TrimSpace(out) != want {
		t.Fatalf("hash = %q, want %q", strings.TrimSpace(out), want)
	}

	out, err = run(t, "s3cret!\n", "-c", cfgPath, "hash", "--stdin")
	if err != nil {
		t.Fatalf("hash --stdin: %v", err)
	}
	if strings.TrimSpace(out) != want {
		t.Fatalf("hash --stdin = %q, want %q", strings.TrimSpace(out), want)
	}
}

func TestHash_RequiresPassword(t *testing.T) {
	cfgPath, _ := writeConfig(t, "")
	if _, err := run(t, "", "-c", cfgPath, "hash"); err == nil {
		t.Fatal("expected usage error without a password")
	}
}

func TestSnapshotShow_JSON(t *testing.T) {
	cfgPath, slots := writeConfig(t, "")
	putSlot(t, slots, sampleSnapshot(t))

	out, err := run(t, "", "-c", cfgPath, "-o", "json", "snapshot", "show")
	if err != nil {
		t.Fatalf("snapshot show: %v", err)
	}
	if strings.Contains(out, "password_hash") || strings.Contains(out, "argon2id") {
		t.Fatalf("snapshot show leaked password hashes:\n%s", out)
	}

	var view struct {
		Accounts        int              `json:"accounts"`
		LatestMessageID uint64           `json:"latest_message_id"`
		AccountList     []map[string]any `json:"account_list"`
		MessageList     []map[string]any `json:"message_list"`
	}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if view.Accounts != 2 || len(view.AccountList) != 2 || len(view.MessageList) != 2 || view.LatestMessageID != 2 {
		t.Fatalf("view = %+v", view)
	}
}

func TestSnapshotShow_Table(t *testing.T) {
	cfgPath, slots := writeConfig(t, "")
	putSlot(t, slots, sampleSnapshot(t))

	out, err := run(t, "", "-c", cfgPath, "snapshot", "show", "--messages", "1")
	if err != nil {
		t.Fatalf("snapshot show: %v", err)
	}
	for _, want := range []string{"Accounts (2):", "Messages (1 of 2):", "link:https://example.com"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hello") {
		t.Errorf("--messages 1 should list only the newest message:\n%s", out)
	}
	if strings.Contains(out, "10.0.0.1") {
		t.Errorf("source address shown without --wide:\n%s", out)
	}
}

func TestSnapshotVerify(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfgPath, slots := writeConfig(t, "")
		putSlot(t, slots, sampleSnapshot(t))

		out, err := run(t, "", "-c", cfgPath, "-o", "json", "snapshot", "verify")
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if !strings.Contains(out, `"valid": true`) {
			t.Fatalf("output = %s", out)
		}
	})

	t.Run("missing", func(t *testing.T) {
		cfgPath, _ := writeConfig(t, "")
		out, err := run(t, "", "-c", cfgPath, "-o", "json", "snapshot", "verify")
		if exitCode(err) != exitSnapshotMissing {
			t.Fatalf("exit code = %d (err %v), want %d", exitCode(err), err, exitSnapshotMissing)
		}
		if !strings.Contains(out, `"valid": false`) || !strings.Contains(out, "CH-SNAP-4040") {
			t.Fatalf("output = %s", out)
		}
	})

	t.Run("corrupt", func(t *testing.T) {
		cfgPath, slots := writeConfig(t, "")
		blob := sampleSnapshot(t)
		putSlot(t, slots, blob[:len(blob)/2])

		_, err := run(t, "", "-c", cfgPath, "snapshot", "verify")
		if exitCode(err) != exitSnapshotCorrupt {
			t.Fatalf("exit code = %d (err %v), want %d", exitCode(err), err, exitSnapshotCorrupt)
		}
	})
}

func TestConfigShow_MasksSecrets(t *testing.T) {
	cfgPath, _ := writeConfig(t, "summary:\n  redis:\n    password: hunter2hunter2\n")

	out, err := run(t, "", "-c", cfgPath, "-o", "json", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	var flat map[string]string
	if err := json.Unmarshal([]byte(out), &flat); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := flat["summary.redis.password"]; got != "hu**********r2" {
		t.Fatalf("summary.redis.password = %q, want masked", got)
	}
	if flat["snapshot.backend"] != "file" {
		t.Fatalf("snapshot.backend = %q, want file", flat["snapshot.backend"])
	}
}

func TestConfigCheck_Invalid(t *testing.T) {
	cfgPath, _ := writeConfig(t, "chat:\n  capacity: 0\n")
	if _, err := run(t, "", "-c", cfgPath, "config", "check"); exitCode(err) != 1 {
		t.Fatalf("exit code = %d (err %v), want 1", exitCode(err), err)
	}
}

func envelope(w http.ResponseWriter, status int, resp *handler.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			http.NotFound(w, r)
			return
		}
		envelope(w, http.StatusOK, handler.NewResponse("r1", service.Status{
			Stats: memory.Stats{Accounts: 4, Messages: 9, LatestID: 9},
		}))
	}))
	defer srv.Close()

	out, err := run(t, "", "-s", srv.URL, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"accounts", "4", "latest_id", "9"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestHealth(t *testing.T) {
	ready := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/health":
			envelope(w, http.StatusOK, handler.NewResponse("r", map[string]string{"status": "healthy"}))
		case r.URL.Path == "/ready" && ready:
			envelope(w, http.StatusOK, handler.NewResponse("r", map[string]string{"status": "ready"}))
		default:
			envelope(w, http.StatusServiceUnavailable, handler.NewErrorResponse("r", domain.ErrNotReady.Code, domain.ErrNotReady.Message, nil))
		}
	}))
	defer srv.Close()

	out, err := run(t, "", "-s", srv.URL, "-o", "json", "health")
	if exitCode(err) != 1 {
		t.Fatalf("not ready: exit code = %d (err %v), want 1", exitCode(err), err)
	}
	if !strings.Contains(out, `"live": true`) || !strings.Contains(out, "CH-SYS-5030") {
		t.Fatalf("not ready output = %s", out)
	}

	ready = true
	out, err = run(t, "", "-s", srv.URL, "-o", "json", "health")
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if !strings.Contains(out, `"ready": true`) {
		t.Fatalf("ready output = %s", out)
	}
}

func TestMessages(t *testing.T) {
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			envelope(w, http.StatusUnauthorized, handler.NewErrorResponse("r", "CH-AUTH-4010", "authentication required", nil))
			return
		}
		if r.URL.Query().Get("since") != "3" {
			t.Errorf("since = %q, want 3", r.URL.Query().Get("since"))
		}
		envelope(w, http.StatusOK, handler.NewResponse("r", handler.ListMessagesResponse{
			Messages: []handler.MessageResponse{{ID: 4, Author: "carol", Text: "later", CreatedAt: at}},
			LatestID: 4,
			Total:    4,
		}))
	}))
	defer srv.Close()

	out, err := run(t, "", "-s", srv.URL, "-t", "tok-1", "messages", "--since", "3")
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if !strings.Contains(out, "carol") || !strings.Contains(out, "AUTHOR") {
		t.Fatalf("messages output = %s", out)
	}

	if _, err := run(t, "", "-s", srv.URL, "messages", "--since", "3"); err == nil || !strings.Contains(err.Error(), "CH-AUTH-4010") {
		t.Fatalf("unauthenticated err = %v, want CH-AUTH-4010", err)
	}
}
