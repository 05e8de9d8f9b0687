package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/yndnr/chathub-go/internal/core/credential"
	"github.com/yndnr/chathub-go/internal/storage"
	"github.com/yndnr/chathub-go/internal/storage/memory"
	"github.com/yndnr/chathub-go/internal/storage/snapshot"
	"github.com/yndnr/chathub-go/pkg/crypto/adaptive"
)

// ServerConfig is the root configuration for chathub-server.
type ServerConfig struct {
	Server     ServerSection     `koanf:"server"`
	Chat       ChatSection       `koanf:"chat"`
	Session    SessionSection    `koanf:"session"`
	Credential CredentialSection `koanf:"credential"`
	Snapshot   SnapshotSection   `koanf:"snapshot"`
	Summary    SummarySection    `koanf:"summary"`
	Images     ImagesSection     `koanf:"images"`
	Log        LogSection        `koanf:"log"`
	Metrics    MetricsSection    `koanf:"metrics"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// RateLimit is the per-IP request rate (req/s). Burst equals the rate.
	// 0 disables limiting.
	RateLimit int `koanf:"rate_limit"`

	// MaxBodyBytes caps request bodies, image uploads included.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// TrustedProxies lists the peers (IPs or CIDRs) whose X-Forwarded-For
	// and X-Real-IP headers are honoured. Empty means the socket peer is
	// always the client.
	TrustedProxies []string `koanf:"trusted_proxies"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// TrustedProxyPrefixes parses TrustedProxies. Entries may also be
// comma-separated, as they arrive from the environment.
func (c *HTTPConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, entry := range c.TrustedProxies {
		for _, s := range strings.Split(entry, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if strings.Contains(s, "/") {
				p, err := netip.ParsePrefix(s)
				if err != nil {
					return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
				}
				out = append(out, p.Masked())
				continue
			}
			addr, err := netip.ParseAddr(s)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
			}
			addr = addr.Unmap()
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return out, nil
}

// ChatSection configures the message log.
type ChatSection struct {
	Capacity      int    `koanf:"capacity"`
	IDPolicy      string `koanf:"id_policy"`
	MaxTextLength int    `koanf:"max_text_length"`
}

// SessionSection configures sessions.
type SessionSection struct {
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// CredentialSection configures password hashing.
type CredentialSection struct {
	Salt      string `koanf:"salt"`
	Time      uint32 `koanf:"time"`
	MemoryKiB uint32 `koanf:"memory_kib"`
	Threads   uint8  `koanf:"threads"`
}

// SnapshotSection configures snapshot publishing and the slot backend.
type SnapshotSection struct {
	Backend   string        `koanf:"backend"`
	Slot      string        `koanf:"slot"`
	ImageSlot string        `koanf:"image_slot"`
	Interval  time.Duration `koanf:"interval"`
	Timeout   time.Duration `koanf:"timeout"`

	// MessageLimit is the number of newest messages kept in a snapshot.
	MessageLimit int `koanf:"message_limit"`

	EncryptionPassphrase string `koanf:"encryption_passphrase"`

	// EncryptionAlgorithm is "aes-gcm", "chacha20-poly1305" or empty for
	// hardware-based selection.
	EncryptionAlgorithm string `koanf:"encryption_algorithm"`

	File   FileBackend   `koanf:"file"`
	Badger BadgerBackend `koanf:"badger"`
	S3     S3Backend     `koanf:"s3"`
	Redis  RedisBackend  `koanf:"redis"`
}

// FileBackend configures the file slot backend.
type FileBackend struct {
	Dir string `koanf:"dir"`
}

// BadgerBackend configures the Badger slot backend.
type BadgerBackend struct {
	Dir        string        `koanf:"dir"`
	GCInterval time.Duration `koanf:"gc_interval"`
	SyncWrites bool          `koanf:"sync_writes"`
}

// S3Backend configures the S3 slot backend.
type S3Backend struct {
	Endpoint        string `koanf:"endpoint"`
	Region          string `koanf:"region"`
	Bucket          string `koanf:"bucket"`
	Prefix          string `koanf:"prefix"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	UsePathStyle    bool   `koanf:"use_path_style"`
}

// RedisBackend configures a Redis connection.
type RedisBackend struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// SummarySection configures the best-effort summary sink.
type SummarySection struct {
	Enabled bool   `koanf:"enabled"`
	Backend string `koanf:"backend"`
	Key     string `koanf:"key"`
	Channel string `koanf:"channel"`
	Recent  int    `koanf:"recent"`

	// Redis overrides the connection; empty Addr reuses snapshot.redis.
	Redis RedisBackend `koanf:"redis"`
}

// ImagesSection configures image uploads.
type ImagesSection struct {
	MaxBytes int `koanf:"max_bytes"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsSection configures the /metrics endpoint.
type MetricsSection struct {
	Enabled bool `koanf:"enabled"`
}

// StorageConfig converts the snapshot section into a slot store config.
func (s *SnapshotSection) StorageConfig() storage.Config {
	badger := storage.DefaultBadgerConfig(s.Badger.Dir)
	if s.Badger.GCInterval > 0 {
		badger.GCInterval = s.Badger.GCInterval
	}
	badger.SyncWrites = s.Badger.SyncWrites

	return storage.Config{
		Backend: s.Backend,
		File:    storage.FileConfig{Dir: s.File.Dir},
		Badger:  badger,
		S3: storage.S3Config{
			Endpoint:        s.S3.Endpoint,
			Region:          s.S3.Region,
			Bucket:          s.S3.Bucket,
			Prefix:          s.S3.Prefix,
			AccessKeyID:     s.S3.AccessKeyID,
			SecretAccessKey: s.S3.SecretAccessKey,
			UsePathStyle:    s.S3.UsePathStyle,
		},
		Redis: s.Redis.storage(),
	}
}

// EncryptionConfig converts the snapshot section into an encryption config.
func (s *SnapshotSection) EncryptionConfig() snapshot.EncryptionConfig {
	if s.EncryptionPassphrase == "" {
		return snapshot.EncryptionConfig{}
	}
	return snapshot.EncryptionConfig{
		Passphrase: []byte(s.EncryptionPassphrase),
		Algorithm:  adaptive.CipherType(s.EncryptionAlgorithm),
	}
}

// RedisConfig returns the connection used by the summary sink.
func (s *SummarySection) RedisConfig(fallback RedisBackend) storage.RedisConfig {
	if s.Redis.Addr != "" {
		return s.Redis.storage()
	}
	return fallback.storage()
}

func (r RedisBackend) storage() storage.RedisConfig {
	return storage.RedisConfig{
		Addr:      r.Addr,
		Password:  r.Password,
		DB:        r.DB,
		KeyPrefix: r.KeyPrefix,
	}
}

// VaultParams converts the credential section into vault parameters.
func (c *CredentialSection) VaultParams() credential.Params {
	return credential.Params{
		Salt:      c.Salt,
		Time:      c.Time,
		MemoryKiB: c.MemoryKiB,
		Threads:   c.Threads,
	}
}

// StoreOptions converts the chat section into memory store options.
func (c *ChatSection) StoreOptions() []memory.Option {
	return []memory.Option{
		memory.WithCapacity(c.Capacity),
		memory.WithIDPolicy(memory.IDPolicy(c.IDPolicy)),
		memory.WithMaxTextLength(c.MaxTextLength),
	}
}
