package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/chathub-go/internal/core/domain"
	"github.com/yndnr/chathub-go/internal/storage"
	"github.com/yndnr/chathub-go/internal/storage/memory"
	"github.com/yndnr/chathub-go/internal/storage/snapshot"
	"github.com/yndnr/chathub-go/internal/telemetry/metric"
)

// Backup defaults.
const (
	DefaultSnapshotSlot  = "chathub/main"
	DefaultMessageLimit  = 50
	DefaultBackupTimeout = 10 * time.Second
	DefaultSummaryRecent = 5
	summaryFormatVersion = 1
)

// ErrStaleSnapshot is returned by Publish for a document older than the
// last one published.
var ErrStaleSnapshot = errors.New("service: snapshot older than last published")

// SummarySink receives the non-authoritative chat summary.
type SummarySink interface {
	Send(ctx context.Context, payload []byte) error
}

// BackupConfig configures BackupService.
type BackupConfig struct {
	// Slot is the slot key holding the snapshot document.
	Slot string

	// MessageLimit is the number of newest messages included in a snapshot.
	// Default: 50
	MessageLimit int

	// Timeout bounds every external store call.
	// Default: 10s
	Timeout time.Duration

	// Encryption is applied to published blobs when a passphrase is set.
	Encryption snapshot.EncryptionConfig

	// SummaryRecent is the number of messages included in a summary.
	// Default: 5
	SummaryRecent int
}

// PublishInfo describes the last successful publish.
type PublishInfo struct {
	SnapshotID  string    `json:"snapshot_id"`
	CapturedAt  time.Time `json:"captured_at"`
	PublishedAt time.Time `json:"published_at"`
	Bytes       int       `json:"bytes"`
	Accounts    int       `json:"accounts"`
	Messages    int       `json:"messages"`
}

// RestoreResult describes an applied restore.
type RestoreResult struct {
	SnapshotID string    `json:"snapshot_id"`
	CapturedAt time.Time `json:"captured_at"`
	Accounts   int       `json:"accounts"`
	Messages   int       `json:"messages"`
	LatestID   uint64    `json:"latest_id"`
}

// BackupService captures consistent snapshots of the store, publishes them
// to a slot store and restores them at boot. External store calls never
// happen while store locks are held.
type BackupService struct {
	store   *memory.Store
	slots   storage.SlotStore
	sink    SummarySink
	cfg     BackupConfig
	metrics *metric.Registry
	logger  *slog.Logger

	publishMu sync.Mutex // serializes slot writes
	last      atomic.Pointer[PublishInfo]

	restoreMu sync.Mutex
	restored  *RestoreResult
}

// NewBackupService creates a new BackupService. sink may be nil to disable
// summaries.
func NewBackupService(store *memory.Store, slots storage.SlotStore, sink SummarySink, cfg BackupConfig, metrics *metric.Registry, logger *slog.Logger) (*BackupService, error) {
	if cfg.Slot == "" {
		cfg.Slot = DefaultSnapshotSlot
	}
	if cfg.MessageLimit <= 0 {
		cfg.MessageLimit = DefaultMessageLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBackupTimeout
	}
	if cfg.SummaryRecent <= 0 {
		cfg.SummaryRecent = DefaultSummaryRecent
	}
	if err := cfg.Encryption.Validate(); err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = metric.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupService{
		store:   store,
		slots:   slots,
		sink:    sink,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Capture copies accounts and the newest messages into a document. Both
// store locks are held only for the in-memory copy.
func (b *BackupService) Capture() *snapshot.Document {
	view := b.store.Capture(b.cfg.MessageLimit)
	return snapshot.New(view.CapturedAt, view.Accounts, view.Messages, view.TotalAppended)
}

// Publish encodes doc and overwrites the snapshot slot. Failures are
// reported, never retried; the next scheduled cycle publishes a fresher
// document.
func (b *BackupService) Publish(ctx context.Context, doc *snapshot.Document) error {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	if last := b.last.Load(); last != nil && doc.CapturedAt.Before(last.CapturedAt) {
		b.logger.Debug("stale snapshot skipped",
			"snapshot_id", doc.ID,
			"captured_at", doc.CapturedAt,
			"last_captured_at", last.CapturedAt)
		return ErrStaleSnapshot
	}

	start := time.Now()
	blob, err := snapshot.Encode(doc, b.cfg.Encryption)
	if err != nil {
		b.metrics.ObservePublish(metric.ResultFailure, time.Since(start), start)
		b.logger.Error("snapshot encode failed", "snapshot_id", doc.ID, "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	err = b.slots.Put(ctx, b.cfg.Slot, blob)
	elapsed := time.Since(start)
	if err != nil {
		result := resultFor(err)
		b.metrics.ObservePublish(result, elapsed, start)
		b.logger.Warn("snapshot publish failed",
			"snapshot_id", doc.ID,
			"slot", b.cfg.Slot,
			"result", result,
			"duration", elapsed,
			"error", err)
		return domain.ErrStorage.WithDetails("publish snapshot").WithCause(err)
	}

	now := time.Now()
	b.metrics.ObservePublish(metric.ResultSuccess, elapsed, now)
	b.last.Store(&PublishInfo{
		SnapshotID:  doc.ID,
		CapturedAt:  doc.CapturedAt,
		PublishedAt: now,
		Bytes:       len(blob),
		Accounts:    len(doc.Accounts),
		Messages:    len(doc.Messages),
	})
	b.logger.Info("snapshot published",
		"snapshot_id", doc.ID,
		"accounts", len(doc.Accounts),
		"messages", len(doc.Messages),
		"bytes", len(blob),
		"duration", elapsed)
	return nil
}

// Restore reads the snapshot slot and, only if the whole document decodes
// and validates, replaces accounts and messages. On any error live state is
// left untouched. An empty slot yields ErrSnapshotUnavailable.
func (b *BackupService) Restore(ctx context.Context) (*RestoreResult, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	blob, err := b.slots.Get(ctx, b.cfg.Slot)
	if err != nil {
		if errors.Is(err, storage.ErrSlotNotFound) {
			b.metrics.SnapshotRestore.WithLabelValues(metric.ResultEmpty).Inc()
			return nil, domain.ErrSnapshotUnavailable
		}
		result := resultFor(err)
		b.metrics.SnapshotRestore.WithLabelValues(result).Inc()
		b.logger.Warn("snapshot read failed", "slot", b.cfg.Slot, "result", result, "error", err)
		return nil, domain.ErrStorage.WithDetails("read snapshot").WithCause(err)
	}

	doc, err := snapshot.Decode(blob, b.cfg.Encryption)
	if err != nil {
		b.metrics.SnapshotRestore.WithLabelValues(metric.ResultCorrupt).Inc()
		b.logger.Warn("snapshot rejected", "slot", b.cfg.Slot, "bytes", len(blob), "error", err)
		return nil, err
	}

	if err := b.store.Replace(doc.AccountList(), doc.Messages); err != nil {
		b.metrics.SnapshotRestore.WithLabelValues(metric.ResultCorrupt).Inc()
		b.logger.Warn("snapshot rejected", "snapshot_id", doc.ID, "error", err)
		return nil, domain.ErrSnapshotCorrupt.WithDetails(err.Error()).WithCause(err)
	}

	res := &RestoreResult{
		SnapshotID: doc.ID,
		CapturedAt: doc.CapturedAt,
		Accounts:   len(doc.Accounts),
		Messages:   b.store.Log.Len(),
		LatestID:   b.store.Log.LatestID(),
	}
	b.restoreMu.Lock()
	b.restored = res
	b.restoreMu.Unlock()

	b.metrics.SnapshotRestore.WithLabelValues(metric.ResultSuccess).Inc()
	b.logger.Info("snapshot restored",
		"snapshot_id", res.SnapshotID,
		"captured_at", res.CapturedAt,
		"accounts", res.Accounts,
		"messages", res.Messages)
	return res, nil
}

// Summary is the payload sent to the summary sink.
type Summary struct {
	Version    int                  `json:"version"`
	CapturedAt time.Time            `json:"captured_at"`
	Accounts   int                  `json:"accounts"`
	Messages   int                  `json:"messages"`
	LatestID   uint64               `json:"latest_id"`
	Recent     []domain.ChatMessage `json:"recent"`
}

// BuildSummary captures a summary of the current state.
func (b *BackupService) BuildSummary() Summary {
	view := b.store.Capture(b.cfg.SummaryRecent)
	recent := view.Messages
	for i := range recent {
		recent[i].SourceAddress = ""
	}
	return Summary{
		Version:    summaryFormatVersion,
		CapturedAt: view.CapturedAt,
		Accounts:   len(view.Accounts),
		Messages:   view.TotalMessages,
		LatestID:   view.LatestID,
		Recent:     recent,
	}
}

// PublishSummary sends a summary to the sink. It never touches primary
// state; failures are logged and returned for the caller to ignore.
func (b *BackupService) PublishSummary(ctx context.Context) error {
	if b.sink == nil {
		return nil
	}

	payload, err := json.Marshal(b.BuildSummary())
	if err != nil {
		b.metrics.SummaryPublish.WithLabelValues(metric.ResultFailure).Inc()
		return fmt.Errorf("marshal summary: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	if err := b.sink.Send(ctx, payload); err != nil {
		result := resultFor(err)
		b.metrics.SummaryPublish.WithLabelValues(result).Inc()
		b.logger.Warn("summary publish failed", "result", result, "error", err)
		return err
	}
	b.metrics.SummaryPublish.WithLabelValues(metric.ResultSuccess).Inc()
	return nil
}

// RunOnce captures and publishes a snapshot, then sends a summary. The
// summary is attempted even when the publish fails.
func (b *BackupService) RunOnce(ctx context.Context) error {
	err := b.Publish(ctx, b.Capture())
	_ = b.PublishSummary(ctx)
	return err
}

// LastPublish returns the last successful publish, or nil. It never waits
// for a publish in flight.
func (b *BackupService) LastPublish() *PublishInfo {
	last := b.last.Load()
	if last == nil {
		return nil
	}
	info := *last
	return &info
}

// Restored returns the restore applied at boot, or nil.
func (b *BackupService) Restored() *RestoreResult {
	b.restoreMu.Lock()
	defer b.restoreMu.Unlock()
	if b.restored == nil {
		return nil
	}
	res := *b.restored
	return &res
}

func resultFor(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return metric.ResultTimeout
	}
	return metric.ResultFailure
}
