package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/sitewatch/sitewatch/internal/config/sweeper"
	"github.com/sitewatch/sitewatch/internal/domain/alert"
	"github.com/sitewatch/sitewatch/internal/domain/site"
	"github.com/sitewatch/sitewatch/internal/engine"
	"github.com/sitewatch/sitewatch/internal/obs"
	"github.com/sitewatch/sitewatch/internal/probe"
	filestore "github.com/sitewatch/sitewatch/internal/repository/file"
	"github.com/sitewatch/sitewatch/internal/repository/kafka"
	pg "github.com/sitewatch/sitewatch/internal/repository/postgres"
	"github.com/sitewatch/sitewatch/internal/sweep"
)

func main() {
	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := flag.String("config", "", "path to config yaml")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	otelCloser, err := obs.SetupOTel(root, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// registry
	var (
		store  site.Store
		health = func(context.Context) error { return nil }
	)
	switch cfg.Store.Backend {
	case "postgres":
		db, err := pg.New(root, cfg.Store.DB)
		if err != nil {
			l.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		store = pg.NewSiteRepo(db)
		health = db.Pool.Ping
	default:
		fs, err := filestore.New(cfg.Store.Path)
		if err != nil {
			l.Fatal("open registry", zap.Error(err))
		}
		store = fs
	}

	eng := engine.New(store, probe.New(cfg.Probe.AsProbeConfig()), l, cfg.Sweep.Pause)

	// transition feed
	var pub alert.Publisher
	if cfg.Kafka.Enabled() {
		prod := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic).WithLogger(l)
		defer func() { _ = prod.Close() }()
		pub = kafka.NewTransitionEvents(prod)
	}

	ops := obs.BootstrapOpsServer(cfg.Server.OpsAddr, health, func(ctx context.Context) (any, error) {
		return eng.Stats(ctx)
	}, l)

	runner := sweep.New(l, eng, pub, cfg.Sweep.Every)

	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(root) }()

	select {
	case <-root.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ops.Shutdown(shCtx)
	l.Info("bye")
}
