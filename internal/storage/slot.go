package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Common errors
var (
	ErrSlotNotFound = errors.New("storage: slot not found")
	ErrClosed       = errors.New("storage: slot store closed")
)

// SlotStore stores one blob per slot key.
type SlotStore interface {
	// Get returns the blob stored under key, or ErrSlotNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put overwrites the blob stored under key.
	Put(ctx context.Context, key string, blob []byte) error

	// Close releases backend resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendS3     = "s3"
	BackendRedis  = "redis"
)

// Config selects and configures a SlotStore backend.
type Config struct {
	Backend string
	File    FileConfig
	Badger  BadgerConfig
	S3      S3Config
	Redis   RedisConfig
}

// FileConfig configures the file backend.
type FileConfig struct {
	Dir string
}

// BadgerConfig configures the Badger backend.
type BadgerConfig struct {
	Dir string

	// GCInterval is the interval between value log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the discard ratio passed to RunValueLogGC.
	// Default: 0.5
	GCThreshold float64

	// SyncWrites fsyncs every write.
	// Default: true
	SyncWrites bool
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:         dir,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
		SyncWrites:  true,
	}
}

// S3Config configures the S3 backend.
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool // Required for MinIO
}

// RedisConfig configures the Redis backend and the summary sink.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Open creates the SlotStore named by cfg.Backend.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (SlotStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemorySlotStore(), nil
	case BackendFile:
		return NewFileSlotStore(cfg.File.Dir)
	case BackendBadger:
		return NewBadgerSlotStore(cfg.Badger, logger)
	case BackendS3:
		return NewS3SlotStore(ctx, cfg.S3)
	case BackendRedis:
		return NewRedisSlotStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}
