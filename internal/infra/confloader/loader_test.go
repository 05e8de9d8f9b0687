package confloader

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

type testConfig struct {
	Server struct {
		Addr      string `koanf:"addr"`
		RateLimit int    `koanf:"rate_limit"`
	} `koanf:"server"`
	Snapshot struct {
		Backend      string        `koanf:"backend"`
		Interval     time.Duration `koanf:"interval"`
		MessageLimit int           `koanf:"message_limit"`
	} `koanf:"snapshot"`
	Ignored string `koanf:"-"`
}

func defaults() testConfig {
	var c testConfig
	c.Server.Addr = "127.0.0.1:8080"
	c.Server.RateLimit = 20
	c.Snapshot.Backend = "file"
	c.Snapshot.Interval = 5 * time.Minute
	c.Snapshot.MessageLimit = 50
	return c
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chathub.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadKeepsDefaults(t *testing.T) {
	cfg := defaults()
	if err := Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, defaults()) {
		t.Fatalf("Load() with no sources = %+v, want defaults", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
server:
  addr: 0.0.0.0:9000
snapshot:
  interval: 30s
`)
	cfg := defaults()
	if err := Load(&cfg, WithFile(path)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("server.addr = %q, want 0.0.0.0:9000", cfg.Server.Addr)
	}
	if cfg.Snapshot.Interval != 30*time.Second {
		t.Errorf("snapshot.interval = %v, want 30s", cfg.Snapshot.Interval)
	}
	if cfg.Server.RateLimit != 20 {
		t.Errorf("server.rate_limit = %d, want default 20", cfg.Server.RateLimit)
	}
}

func TestLoadFileErrors(t *testing.T) {
	cfg := defaults()
	if err := Load(&cfg, WithFile(filepath.Join(t.TempDir(), "missing.yaml"))); err == nil {
		t.Error("missing file: error = nil")
	}
	if err := Load(&cfg, WithFile(writeFile(t, "server: [unclosed"))); err == nil {
		t.Error("malformed yaml: error = nil")
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := writeFile(t, `
server:
  addr: file:1
  rate_limit: 5
snapshot:
  backend: s3
`)
	t.Setenv("CHATHUB_SERVER_ADDR", "env:2")
	t.Setenv("CHATHUB_SNAPSHOT_MESSAGE_LIMIT", "7")

	cfg := defaults()
	err := Load(&cfg,
		WithFile(path),
		WithOverrides(map[string]any{"snapshot.backend": "memory"}),
	)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"env beats file", cfg.Server.Addr, "env:2"},
		{"file beats default", cfg.Server.RateLimit, 5},
		{"override beats file", cfg.Snapshot.Backend, "memory"},
		{"underscored env key", cfg.Snapshot.MessageLimit, 7},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadCustomEnvPrefix(t *testing.T) {
	t.Setenv("CHATHUB_SERVER_ADDR", "ignored")
	t.Setenv("CHT_SERVER_ADDR", "custom:1")

	cfg := defaults()
	if err := Load(&cfg, WithEnvPrefix("CHT_")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != "custom:1" {
		t.Fatalf("server.addr = %q, want custom:1", cfg.Server.Addr)
	}
}

func TestEnvKeys(t *testing.T) {
	got := envKeys(reflect.TypeOf(&testConfig{}))
	want := map[string]string{
		"SERVER_ADDR":            "server.addr",
		"SERVER_RATE_LIMIT":      "server.rate_limit",
		"SNAPSHOT_BACKEND":       "snapshot.backend",
		"SNAPSHOT_INTERVAL":      "snapshot.interval",
		"SNAPSHOT_MESSAGE_LIMIT": "snapshot.message_limit",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("envKeys() = %v, want %v", got, want)
	}
}
