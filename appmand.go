// Package appmand is the embeddable facade over the app lifecycle daemon:
// a single-operator engine that launches and closes a small catalog of
// desktop applications, keeps durable usage statistics and reconciles its
// pid bookkeeping against the live process table.
package appmand

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/appmand/appmand/internal/catalog"
	"github.com/appmand/appmand/internal/dispatcher"
	"github.com/appmand/appmand/internal/engine"
	"github.com/appmand/appmand/internal/history"
	ch "github.com/appmand/appmand/internal/history/clickhouse"
	"github.com/appmand/appmand/internal/ledger"
	"github.com/appmand/appmand/internal/logger"
	"github.com/appmand/appmand/internal/metrics"
	"github.com/appmand/appmand/internal/server"
	"github.com/appmand/appmand/internal/store"
	"github.com/appmand/appmand/internal/store/factory"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type App = catalog.App

type Settings = catalog.Settings

type Usage = engine.Usage

type AppStatus = engine.AppStatus

type HistorySink = history.Sink

// Options configures Open. Zero values fall back to the catalog file's
// settings and their defaults.
type Options struct {
	CatalogPath string // apps/settings JSON, defaults merged per field
	LedgerPath  string // running-pids JSON
	StoreDSN    string // overrides settings.store_dsn when non-empty
	LogLevel    string // overrides settings.log_level when non-empty
	LogPath     string // daemon log file, console-only when empty
}

// Daemon is a fully wired engine with its catalog, pid ledger and usage
// store. Construct with Open; call Shutdown when done.
type Daemon struct {
	eng  *engine.Engine
	cat  *catalog.Catalog
	led  *ledger.Ledger
	st   store.Store
	sink *ch.Sink
	log  *slog.Logger
}

// Open loads the catalog and pid ledger, opens the usage store and ensures
// its schema, and wires the engine. Config problems degrade to defaults;
// only an unusable store is fatal.
func Open(opts Options) (*Daemon, error) {
	cat := catalog.Load(opts.CatalogPath, logger.New("INFO", opts.LogPath))
	level := cat.Settings.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	log := logger.New(level, opts.LogPath)

	cat.Discover(log)

	dsn := cat.Settings.StoreDSN
	if opts.StoreDSN != "" {
		dsn = opts.StoreDSN
	}
	st, err := factory.NewFromDSN(dsn, log)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(context.Background()); err != nil {
		_ = st.Close()
		return nil, err
	}

	led := ledger.Load(opts.LedgerPath, cat.Settings.AutoSavePids, log)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn("metrics registration failed", "error", err)
	}

	d := &Daemon{cat: cat, led: led, st: st, log: log}
	d.eng = engine.New(cat, led, st, logger.Config{Dir: cat.Settings.AppLogDir}, log)
	if addr := cat.Settings.HistoryAddr; addr != "" {
		sink, err := ch.New(addr, cat.Settings.HistoryTable)
		if err != nil {
			log.Warn("history sink unavailable", "addr", addr, "error", err)
		} else {
			d.eng.SetHistorySinks(sink)
			d.sink = sink
		}
	}
	return d, nil
}

// Engine exposes the lifecycle engine for embedding.
func (d *Daemon) Engine() *engine.Engine { return d.eng }

// Catalog exposes the loaded app catalog.
func (d *Daemon) Catalog() *catalog.Catalog { return d.cat }

// Logger exposes the daemon logger.
func (d *Daemon) Logger() *slog.Logger { return d.log }

func (d *Daemon) IsRunning(appID string) bool { return d.eng.IsRunning(appID) }

func (d *Daemon) Launch(ctx context.Context, appID string) error { return d.eng.Launch(ctx, appID) }

func (d *Daemon) Close(ctx context.Context, appID string) error { return d.eng.Close(ctx, appID) }

func (d *Daemon) CloseAll(ctx context.Context) []string { return d.eng.CloseAll(ctx) }

func (d *Daemon) Stats(ctx context.Context) map[string]Usage { return d.eng.Stats(ctx) }

func (d *Daemon) Status() []AppStatus { return d.eng.Status() }

// Dispatcher builds the rate-limited text-command boundary for the given
// operator identity, using the catalog's cooldown setting.
func (d *Daemon) Dispatcher(operator string) *dispatcher.Dispatcher {
	return dispatcher.New(d.eng, d.cat, operator, d.cat.Cooldown(), d.log)
}

// Serve starts the HTTP control surface on addr. The returned server is
// already listening; shut it down via its Shutdown/Close methods.
func (d *Daemon) Serve(addr, basePath string) (*http.Server, error) {
	return server.NewServer(addr, basePath, d.eng)
}

// Shutdown flushes the pid ledger and closes the usage store. Managed apps
// are left running; they are detached on purpose and are reattached by pid
// or name on the next start.
func (d *Daemon) Shutdown() {
	if err := d.led.Flush(); err != nil {
		d.log.Warn("pid ledger flush failed", "error", err)
	}
	if d.sink != nil {
		_ = d.sink.Close()
	}
	_ = d.st.Close()
}
