package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	rrwebuploader "github.com/SereneyePro/rrweb-uploader"
	"github.com/SereneyePro/rrweb-uploader/artifact"
	"github.com/SereneyePro/rrweb-uploader/artifact/sqlite"
	"github.com/SereneyePro/rrweb-uploader/collector"
	"github.com/SereneyePro/rrweb-uploader/config"
	"github.com/SereneyePro/rrweb-uploader/core"
	"github.com/SereneyePro/rrweb-uploader/gateway"
	"github.com/SereneyePro/rrweb-uploader/logging"
	"github.com/SereneyePro/rrweb-uploader/session"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to YAML config file (optional)")
		addr       = flag.String("addr", "", "Listen address (overrides config)")
		secret     = flag.String("secret", "", "Shared ingestion secret (overrides config)")
		backend    = flag.String("storage", "", "Artifact storage backend: memory or sqlite (overrides config)")
		dbPath     = flag.String("db", "", "SQLite artifact database path (overrides config)")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *secret != "" {
		cfg.Server.SharedSecret = *secret
	}
	if *backend != "" {
		cfg.Storage.Backend = *backend
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, false)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open artifact store: %v", err)
	}
	defer closeStore()

	registry := session.NewInMemoryRegistry(func(o *session.Options) {
		o.IdleTimeout = cfg.Session.IdleTimeout.Std()
		o.Strict = cfg.Session.Strict
	})

	up := rrwebuploader.New(func(o *rrwebuploader.Options) {
		o.CollectorConfig = collector.Config{
			InterChunkGapMs: cfg.Timeline.InterChunkGapMs,
			SweepInterval:   cfg.Session.SweepInterval.Std(),
		}
		o.GatewayConfig = gateway.Config{
			Addr:           cfg.Server.Addr,
			SharedSecret:   cfg.Server.SharedSecret,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}
		o.Registry = registry
		o.ArtifactStore = store
		o.Logger = logger
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := up.Serve(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	logger.Info("server exited")
}

func openStore(cfg *config.Config) (core.ArtifactStore, func(), error) {
	if cfg.Storage.Backend == "sqlite" {
		store, err := sqlite.NewStore(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		closer := func() {
			if err := store.Close(); err != nil {
				log.Printf("error closing artifact store: %v", err)
			}
		}
		return store, closer, nil
	}
	return artifact.NewInMemoryStore(), func() {}, nil
}
