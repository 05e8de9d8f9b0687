package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:8080"
	DefaultRateLimit       = 20
	DefaultMaxBodyBytes    = 8 << 20
	DefaultShutdownTimeout = 15 * time.Second

	DefaultChatCapacity  = 100
	DefaultIDPolicy      = "renumber"
	DefaultMaxTextLength = 500

	DefaultSessionTTL    = 24 * time.Hour
	DefaultSweepInterval = time.Hour

	DefaultCredentialSalt      = "chathub-static-salt-v1"
	DefaultCredentialTime      = 1
	DefaultCredentialMemoryKiB = 19 * 1024
	DefaultCredentialThreads   = 1

	DefaultSnapshotBackend  = "file"
	DefaultSnapshotSlot     = "chathub/main"
	DefaultImageSlot        = "chathub/images"
	DefaultSnapshotInterval = 5 * time.Minute
	DefaultSnapshotTimeout  = 10 * time.Second
	DefaultMessageLimit     = 50
	DefaultDataDir          = "/var/lib/chathub"

	DefaultSummaryBackend = "redis"
	DefaultSummaryKey     = "chathub:summary"
	DefaultSummaryChannel = "chathub:summary"
	DefaultSummaryRecent  = 5

	DefaultImageMaxBytes = 5 << 20

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:            DefaultHTTPAddr,
				RateLimit:       DefaultRateLimit,
				MaxBodyBytes:    DefaultMaxBodyBytes,
				ShutdownTimeout: DefaultShutdownTimeout,
			},
		},
		Chat: ChatSection{
			Capacity:      DefaultChatCapacity,
			IDPolicy:      DefaultIDPolicy,
			MaxTextLength: DefaultMaxTextLength,
		},
		Session: SessionSection{
			TTL:           DefaultSessionTTL,
			SweepInterval: DefaultSweepInterval,
		},
		Credential: CredentialSection{
			Salt:      DefaultCredentialSalt,
			Time:      DefaultCredentialTime,
			MemoryKiB: DefaultCredentialMemoryKiB,
			Threads:   DefaultCredentialThreads,
		},
		Snapshot: SnapshotSection{
			Backend:      DefaultSnapshotBackend,
			Slot:         DefaultSnapshotSlot,
			ImageSlot:    DefaultImageSlot,
			Interval:     DefaultSnapshotInterval,
			Timeout:      DefaultSnapshotTimeout,
			MessageLimit: DefaultMessageLimit,
			File:         FileBackend{Dir: DefaultDataDir + "/slots"},
			Badger: BadgerBackend{
				Dir:        DefaultDataDir + "/badger",
				GCInterval: 10 * time.Minute,
				SyncWrites: true,
			},
			S3:    S3Backend{Region: "us-east-1", Prefix: "chathub"},
			Redis: RedisBackend{Addr: "127.0.0.1:6379", KeyPrefix: "chathub:slot:"},
		},
		Summary: SummarySection{
			Enabled: false,
			Backend: DefaultSummaryBackend,
			Key:     DefaultSummaryKey,
			Channel: DefaultSummaryChannel,
			Recent:  DefaultSummaryRecent,
		},
		Images: ImagesSection{
			MaxBytes: DefaultImageMaxBytes,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsSection{
			Enabled: true,
		},
	}
}
