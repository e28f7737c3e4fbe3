package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/sheikh-saqib/voucher-ledger/internal/catalog"
	"github.com/sheikh-saqib/voucher-ledger/internal/config"
	"github.com/sheikh-saqib/voucher-ledger/internal/httpapi"
	"github.com/sheikh-saqib/voucher-ledger/internal/models"
	"github.com/sheikh-saqib/voucher-ledger/internal/reports"
)

// Globals defines flags available to all commands.
type Globals struct {
	EnvFile string `help:"Load environment from this .env file." name:"env-file" type:"path"`
	Store   string `help:"Override LEDGER_STORE (memory, postgres, sqlite, bolt)."`
	Catalog string `help:"Override CATALOG_PATH." type:"path"`
}

type Commands struct {
	Globals

	Serve        ServeCmd        `cmd:"" default:"1" help:"Run the HTTP API."`
	Migrate      MigrateCmd      `cmd:"" help:"Create the database schema and exit."`
	TrialBalance TrialBalanceCmd `cmd:"" name:"trial-balance" help:"Print the trial balance."`
	DayBook      DayBookCmd      `cmd:"" name:"day-book" help:"Print the day book."`
}

type ServeCmd struct {
	Addr string `help:"Listen address, overrides HTTP_ADDR."`
}

func (cmd *ServeCmd) Run(globals *Globals) error {
	cfg, err := loadConfig(globals)
	if err != nil {
		return err
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := cfg.HTTPAddr
	if cmd.Addr != "" {
		addr = cmd.Addr
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      httpapi.NewRouter(a.ledger, a.reports, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 70 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Catalog.Watch {
		g.Go(func() error {
			guard := catalog.EntriesGuard(a.store)
			if err := a.catalog.Watch(gctx, cfg.Catalog.Path, guard, log); err != nil {
				log.Error("catalog watcher stopped", "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		log.Info("starting ledger API", "addr", addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		log.Info("server stopped")
		return nil
	})
	return g.Wait()
}

type MigrateCmd struct{}

func (cmd *MigrateCmd) Run(globals *Globals) error {
	cfg, err := loadConfig(globals)
	if err != nil {
		return err
	}
	log := cliLogger(cfg)
	if cfg.Store.Backend == config.StoreMemory {
		log.Info("memory store has no schema")
		return nil
	}

	_, closeStore, err := openStore(context.Background(), cfg.Store)
	if err != nil {
		return err
	}
	log.Info("schema up to date", "backend", cfg.Store.Backend)
	return closeStore()
}

type TrialBalanceCmd struct {
	AsOn          models.Date `help:"Report date (YYYY-MM-DD)." name:"as-on" required:""`
	FinancialYear string      `help:"Financial year code." name:"fy" required:""`
}

func (cmd *TrialBalanceCmd) Run(ctx *kong.Context, globals *Globals) error {
	a, err := newCLIApp(globals)
	if err != nil {
		return err
	}
	defer a.Close()

	tb, err := a.reports.TrialBalance(context.Background(), cmd.AsOn, cmd.FinancialYear)
	if err != nil {
		return err
	}
	if err := renderer().TrialBalance(ctx.Stdout, tb); err != nil {
		return err
	}
	if tb.Alert != nil {
		return fmt.Errorf("%w: %v", errIntegrity, tb.Alert)
	}
	return nil
}

type DayBookCmd struct {
	From          models.Date `help:"First day (YYYY-MM-DD)." required:""`
	To            models.Date `help:"Last day (YYYY-MM-DD)." required:""`
	Type          string      `help:"Only this voucher type code."`
	FinancialYear string      `help:"Only this financial year." name:"fy"`
}

func (cmd *DayBookCmd) Run(ctx *kong.Context, globals *Globals) error {
	a, err := newCLIApp(globals)
	if err != nil {
		return err
	}
	defer a.Close()

	book, err := a.reports.DayBook(context.Background(), reports.DayBookQuery{
		From:          cmd.From,
		To:            cmd.To,
		TypeCode:      cmd.Type,
		FinancialYear: cmd.FinancialYear,
	})
	if err != nil {
		return err
	}
	return renderer().DayBook(ctx.Stdout, book)
}

// newCLIApp wires the core for the report commands. Those read what other
// processes have posted, so the per-process memory store is refused.
func newCLIApp(globals *Globals) (*app, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, err
	}
	if err := requirePersistentStore(cfg); err != nil {
		return nil, err
	}
	return newApp(context.Background(), cfg, cliLogger(cfg))
}

// cliLogger writes human-readable logs to stderr so stdout stays clean for
// report output.
func cliLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

func renderer() reports.Renderer {
	return reports.Renderer{Styled: term.IsTerminal(int(os.Stdout.Fd()))}
}

func requirePersistentStore(cfg *config.Config) error {
	if cfg.Store.Backend == config.StoreMemory {
		return fmt.Errorf("%w: reports need a persistent store, set LEDGER_STORE or --store to postgres, sqlite or bolt",
			errMemoryStore)
	}
	return nil
}
