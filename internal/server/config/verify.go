package config

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/yndnr/chathub-go/internal/core/credential"
	"github.com/yndnr/chathub-go/internal/storage"
	"github.com/yndnr/chathub-go/internal/storage/memory"
	"github.com/yndnr/chathub-go/internal/telemetry/logger"
)

// Verify validates the configuration. It returns every problem found,
// joined.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyServer(&cfg.Server),
		verifyChat(&cfg.Chat),
		verifySession(&cfg.Session),
		verifyCredential(&cfg.Credential),
		verifySnapshot(&cfg.Snapshot),
		verifySummary(&cfg.Summary, &cfg.Snapshot),
		verifyLog(&cfg.Log),
		verifyImages(&cfg.Images, &cfg.Server.HTTP),
	)
}

func verifyServer(cfg *ServerSection) error {
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr %q: %w", cfg.HTTP.Addr, err)
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("server.http tls file: %w", err)
		}
	}
	if cfg.HTTP.RateLimit < 0 {
		return errors.New("server.http.rate_limit must not be negative")
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		return errors.New("server.http.max_body_bytes must be positive")
	}
	if _, err := cfg.HTTP.TrustedProxyPrefixes(); err != nil {
		return fmt.Errorf("server.http.trusted_proxies: %w", err)
	}
	return nil
}

func verifyChat(cfg *ChatSection) error {
	if cfg.Capacity < 1 {
		return errors.New("chat.capacity must be at least 1")
	}
	if !memory.IDPolicy(cfg.IDPolicy).Valid() {
		return fmt.Errorf("chat.id_policy %q: want renumber or monotonic", cfg.IDPolicy)
	}
	if cfg.MaxTextLength < 1 {
		return errors.New("chat.max_text_length must be at least 1")
	}
	return nil
}

func verifySession(cfg *SessionSection) error {
	if cfg.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return errors.New("session.sweep_interval must be positive")
	}
	return nil
}

func verifyCredential(cfg *CredentialSection) error {
	if cfg.Salt == "" {
		return errors.New("credential.salt is required")
	}
	if cfg.Threads == 0 || cfg.Time == 0 {
		return errors.New("credential.time and credential.threads must be positive")
	}
	if cfg.MemoryKiB < 8*uint32(cfg.Threads) {
		return errors.New("credential.memory_kib must be at least 8 per thread")
	}
	if err := credential.CheckParams(cfg.VaultParams()); err != nil {
		return fmt.Errorf("credential: at most time=%d memory_kib=%d threads=%d: %w",
			credential.MaxTime, credential.MaxMemoryKiB, credential.MaxThreads, err)
	}
	return nil
}

func verifySnapshot(cfg *SnapshotSection) error {
	if cfg.Slot == "" || cfg.ImageSlot == "" {
		return errors.New("snapshot.slot and snapshot.image_slot are required")
	}
	if cfg.Slot == cfg.ImageSlot {
		return errors.New("snapshot.slot and snapshot.image_slot must differ")
	}
	if cfg.Interval <= 0 || cfg.Timeout <= 0 {
		return errors.New("snapshot.interval and snapshot.timeout must be positive")
	}
	if cfg.MessageLimit < 1 {
		return errors.New("snapshot.message_limit must be at least 1")
	}
	if err := cfg.EncryptionConfig().Validate(); err != nil {
		return fmt.Errorf("snapshot encryption: %w", err)
	}

	switch cfg.Backend {
	case storage.BackendMemory:
	case storage.BackendFile:
		if cfg.File.Dir == "" {
			return errors.New("snapshot.file.dir is required")
		}
	case storage.BackendBadger:
		if cfg.Badger.Dir == "" {
			return errors.New("snapshot.badger.dir is required")
		}
	case storage.BackendS3:
		if cfg.S3.Bucket == "" {
			return errors.New("snapshot.s3.bucket is required")
		}
	case storage.BackendRedis:
		if cfg.Redis.Addr == "" {
			return errors.New("snapshot.redis.addr is required")
		}
	default:
		return fmt.Errorf("snapshot.backend %q: unknown backend", cfg.Backend)
	}
	return nil
}

func verifySummary(cfg *SummarySection, snap *SnapshotSection) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Backend != storage.BackendRedis {
		return fmt.Errorf("summary.backend %q: only redis is supported", cfg.Backend)
	}
	if cfg.Key == "" && cfg.Channel == "" {
		return errors.New("summary.key or summary.channel is required")
	}
	if cfg.Redis.Addr == "" && snap.Redis.Addr == "" {
		return errors.New("summary.redis.addr or snapshot.redis.addr is required")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level %q: unknown level", cfg.Level)
	}
	switch cfg.Format {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("log.format %q: want json or text", cfg.Format)
	}
}

func verifyImages(cfg *ImagesSection, http *HTTPConfig) error {
	if cfg.MaxBytes < 1 {
		return errors.New("images.max_bytes must be at least 1")
	}
	if int64(cfg.MaxBytes) > http.MaxBodyBytes {
		return errors.New("images.max_bytes must not exceed server.http.max_body_bytes")
	}
	return nil
}
