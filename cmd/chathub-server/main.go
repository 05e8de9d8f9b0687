package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/yndnr/chathub-go/internal/core/credential"
	"github.com/yndnr/chathub-go/internal/core/domain"
	"github.com/yndnr/chathub-go/internal/core/service"
	"github.com/yndnr/chathub-go/internal/infra/buildinfo"
	"github.com/yndnr/chathub-go/internal/infra/confloader"
	"github.com/yndnr/chathub-go/internal/infra/shutdown"
	"github.com/yndnr/chathub-go/internal/server/config"
	"github.com/yndnr/chathub-go/internal/server/httpserver"
	"github.com/yndnr/chathub-go/internal/server/httpserver/handler"
	"github.com/yndnr/chathub-go/internal/storage"
	"github.com/yndnr/chathub-go/internal/storage/memory"
	"github.com/yndnr/chathub-go/internal/telemetry/logger"
	"github.com/yndnr/chathub-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("chathub-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := config.Load(*configFile, nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	info := buildinfo.Get()
	log.Info("starting chathub-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile,
		"snapshot_backend", cfg.Snapshot.Backend)

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	stop := shutdown.NewHandler(cfg.Server.HTTP.ShutdownTimeout, log)

	// Shutdown hooks run in reverse, so register in acquisition order.
	slots, err := storage.Open(ctx, cfg.Snapshot.StorageConfig(), log)
	if err != nil {
		return fmt.Errorf("open snapshot backend: %w", err)
	}
	stop.OnShutdown("slot store", func(context.Context) error {
		return slots.Close()
	})

	sink := openSummarySink(ctx, cfg, log)
	if sink != nil {
		stop.OnShutdown("summary sink", func(context.Context) error {
			return sink.Close()
		})
	}

	reg := metric.NewRegistry()
	vault := credential.New(cfg.Credential.VaultParams())
	store := memory.New(vault, cfg.Chat.StoreOptions()...)
	if err := reg.RegisterState(service.StateSource(store)); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if b, ok := slots.(*storage.BadgerSlotStore); ok {
		if err := b.RegisterMetrics(reg.Registerer()); err != nil {
			return err
		}
	}

	svc, err := initServices(cfg, store, slots, sink, reg, log)
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}

	trusted, err := cfg.Server.HTTP.TrustedProxyPrefixes()
	if err != nil {
		return err
	}

	var ready atomic.Bool
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Handler: handler.New(handler.Config{
			Accounts:      svc.accounts,
			Chat:          svc.chat,
			Backup:        svc.backup,
			Ready:         ready.Load,
			MaxImageBytes: int64(cfg.Images.MaxBytes),
			SecureCookie:  cfg.Server.HTTP.TLSCertFile != "",
			Logger:        log,
		}),
		Metrics:        metricsFor(cfg, reg),
		Logger:         log,
		RateLimit:      cfg.Server.HTTP.RateLimit,
		MaxBodyBytes:   cfg.Server.HTTP.MaxBodyBytes,
		TrustedProxies: trusted,
	})
	httpServer := httpserver.New(cfg.Server.HTTP.Addr, router,
		httpserver.WithTLS(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile))

	// Health checks answer while the snapshot is being restored.
	go serve(httpServer, cfg.Server.HTTP.Addr, log, cancel)

	restore(ctx, svc.backup, log)

	scheduler := service.NewScheduler(svc.backup, svc.accounts, service.SchedulerConfig{
		PublishInterval: cfg.Snapshot.Interval,
		SweepInterval:   cfg.Session.SweepInterval,
	}, log)

	stop.OnShutdown("final snapshot", func(ctx context.Context) error {
		err := svc.backup.RunOnce(ctx)
		if errors.Is(err, service.ErrStaleSnapshot) {
			return nil
		}
		return err
	})
	stop.OnShutdown("scheduler", func(context.Context) error {
		scheduler.Stop()
		return nil
	})
	scheduler.Start(ctx)
	ready.Store(true)

	if *configFile != "" {
		watcher, err := watchConfig(*configFile, log)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			stop.OnShutdown("config watcher", func(context.Context) error {
				return watcher.Close()
			})
		}
	}

	stop.OnShutdown("http server", func(ctx context.Context) error {
		ready.Store(false)
		return httpServer.Shutdown(ctx)
	})

	log.Info("server ready", "addr", cfg.Server.HTTP.Addr)
	if err := stop.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}

	log.Info("server stopped gracefully")
	return nil
}

// summarySink is the sink plus the resource behind it.
type summarySink interface {
	service.SummarySink
	Close() error
}

// openSummarySink connects the summary sink. The sink is best effort: a
// connection failure disables summaries and the server starts anyway.
func openSummarySink(ctx context.Context, cfg *config.ServerConfig, log *slog.Logger) summarySink {
	if !cfg.Summary.Enabled {
		return nil
	}
	client, err := storage.NewRedisClient(ctx, cfg.Summary.RedisConfig(cfg.Snapshot.Redis))
	if err != nil {
		log.Warn("summary sink unavailable, summaries disabled", "error", err)
		return nil
	}
	log.Info("summary sink connected", "slot", cfg.Summary.Key, "channel", cfg.Summary.Channel)
	return storage.NewRedisSummarySink(client, cfg.Summary.Key, cfg.Summary.Channel)
}

type services struct {
	accounts *service.AccountService
	chat     *service.ChatService
	backup   *service.BackupService
}

func initServices(cfg *config.ServerConfig, store *memory.Store, slots storage.SlotStore, sink summarySink, reg *metric.Registry, log *slog.Logger) (*services, error) {
	accounts := service.NewAccountService(store, service.AccountServiceConfig{
		SessionTTL: cfg.Session.TTL,
	}, reg, log)

	images := storage.NewImageStore(slots, cfg.Snapshot.ImageSlot)
	chat := service.NewChatService(store, accounts, images, service.ChatServiceConfig{
		MaxImageBytes: cfg.Images.MaxBytes,
		Timeout:       cfg.Snapshot.Timeout,
	}, log)

	var s service.SummarySink
	if sink != nil {
		s = sink
	}
	backup, err := service.NewBackupService(store, slots, s, service.BackupConfig{
		Slot:          cfg.Snapshot.Slot,
		MessageLimit:  cfg.Snapshot.MessageLimit,
		Timeout:       cfg.Snapshot.Timeout,
		Encryption:    cfg.Snapshot.EncryptionConfig(),
		SummaryRecent: cfg.Summary.Recent,
	}, reg, log)
	if err != nil {
		return nil, err
	}

	return &services{accounts: accounts, chat: chat, backup: backup}, nil
}

// restore loads the published snapshot. Any failure leaves the store empty
// and the server starts fresh.
func restore(ctx context.Context, backup *service.BackupService, log *slog.Logger) {
	res, err := backup.Restore(ctx)
	switch {
	case err == nil:
		log.Info("state restored from snapshot",
			"snapshot_id", res.SnapshotID,
			"accounts", res.Accounts,
			"messages", res.Messages)
	case errors.Is(err, domain.ErrSnapshotUnavailable):
		log.Info("no snapshot published yet, starting empty")
	default:
		log.Warn("snapshot restore failed, starting empty", "error", err)
	}
}

func metricsFor(cfg *config.ServerConfig, reg *metric.Registry) *metric.Registry {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return reg
}

// serve runs the HTTP server until it is shut down. A listener failure
// cancels ctx, which triggers shutdown.
func serve(srv *httpserver.Server, addr string, log *slog.Logger, cancel context.CancelCauseFunc) {
	log.Info("HTTP server listening", "addr", addr, "tls", srv.TLS())
	if err := srv.Serve(); err != nil {
		log.Error("HTTP server error", "error", err)
		cancel(fmt.Errorf("http server: %w", err))
	}
}

// watchConfig reloads the config file on change. Only the log level is
// applied live; other settings need a restart.
func watchConfig(path string, log *slog.Logger) (*confloader.Watcher, error) {
	return confloader.Watch(path, func() {
		cfg, err := config.Load(path, nil)
		if err != nil {
			log.Warn("config reload rejected", "path", path, "error", err)
			return
		}
		if cfg.Log.Level == logger.Level() {
			return
		}
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			log.Warn("config reload rejected", "path", path, "error", err)
			return
		}
		log.Info("log level changed", "level", cfg.Log.Level)
	}, confloader.WithLogger(log))
}
