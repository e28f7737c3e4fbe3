package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sheikh-saqib/voucher-ledger/internal/catalog"
	"github.com/sheikh-saqib/voucher-ledger/internal/config"
	"github.com/sheikh-saqib/voucher-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/voucher-ledger/internal/events/logging"
	"github.com/sheikh-saqib/voucher-ledger/internal/interfaces"
	"github.com/sheikh-saqib/voucher-ledger/internal/ledger"
	"github.com/sheikh-saqib/voucher-ledger/internal/reports"
	"github.com/sheikh-saqib/voucher-ledger/internal/storage/boltstore"
	"github.com/sheikh-saqib/voucher-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/voucher-ledger/internal/storage/postgres"
	"github.com/sheikh-saqib/voucher-ledger/internal/storage/sqlite"
)

// app is the wired core shared by every command.
type app struct {
	cfg       *config.Config
	log       *slog.Logger
	store     interfaces.LedgerStore
	catalog   *catalog.Catalog
	publisher interfaces.EventPublisher
	ledger    *ledger.Ledger
	reports   *reports.Generator

	closers []func() error
}

func loadConfig(globals *Globals) (*config.Config, error) {
	cfg, err := config.Load(globals.EnvFile)
	if err != nil {
		return nil, err
	}
	if globals.Store != "" {
		cfg.Store.Backend = globals.Store
	}
	if globals.Catalog != "" {
		cfg.Catalog.Path = globals.Catalog
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)
	log.Info("ledger store ready", "backend", cfg.Store.Backend)

	snap, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.catalog = catalog.New(snap)

	if len(cfg.Kafka.Brokers) > 0 {
		pub := kafka.NewPublisher(cfg.Kafka.Brokers)
		a.publisher = pub
		a.closers = append(a.closers, pub.Close)
		log.Info("publishing events to kafka", "brokers", cfg.Kafka.Brokers)
	} else {
		a.publisher = logging.NewPublisher(log)
	}

	a.ledger = ledger.NewLedger(a.store, a.catalog, a.publisher, ledger.Options{
		MaxAttempts: cfg.PostMaxAttempts,
		PostedTopic: cfg.Kafka.PostedTopic,
		Logger:      log,
	})
	a.reports = reports.NewGenerator(a.ledger, a.publisher, reports.Options{
		AlertTopic: cfg.Kafka.AlertsTopic,
		Logger:     log,
	})
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Error("failed to close resource", "error", err)
		}
	}
	a.closers = nil
}

// openStore opens the configured backend. SQL schemas are created if missing.
func openStore(ctx context.Context, cfg config.StoreConfig) (interfaces.LedgerStore, func() error, error) {
	switch cfg.Backend {
	case config.StoreMemory:
		return memory.NewMemoryLedgerStore(), func() error { return nil }, nil

	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.NewPostgresLedgerStore(db)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, store.Close, nil

	case config.StoreSQLite:
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case config.StoreBolt:
		store, err := boltstore.New(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

var (
	errIntegrity   = errors.New("trial balance does not balance")
	errMemoryStore = errors.New("memory store holds no posted vouchers")
)
