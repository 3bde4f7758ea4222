// Package engine owns the application lifecycle: it decides whether a
// catalog app is running, launches and terminates it, reconciles its own
// bookkeeping against the live OS process table, and records usage history.
//
// The engine's belief about an app is two-valued: Running or Unknown.
// Ambiguity always collapses to "not confirmed running" and is corrected by
// the next IsRunning reconciliation pass.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/appmand/appmand/internal/catalog"
	"github.com/appmand/appmand/internal/detector"
	"github.com/appmand/appmand/internal/history"
	"github.com/appmand/appmand/internal/ledger"
	"github.com/appmand/appmand/internal/logger"
	"github.com/appmand/appmand/internal/metrics"
	"github.com/appmand/appmand/internal/store"
)

// NeverLaunched is the LastLaunch value for apps with no recorded history.
const NeverLaunched = "never"

// Usage is the aggregated per-app view returned by Stats. Apps that were
// never launched get a well-defined zero view, not absence.
type Usage struct {
	Launches     int64   `json:"launches"`
	TotalSeconds float64 `json:"total_seconds"`
	LastLaunch   string  `json:"last_launch"` // RFC 3339 instant or "never"
}

// AppStatus is the live view served to status consumers.
type AppStatus struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Icon    string `json:"icon"`
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
}

// Engine is the lifecycle core. It exclusively owns writes to the pid
// ledger and the usage store; collaborators only read aggregated views.
// Construct one per data directory with New; there are no package globals.
type Engine struct {
	cat    *catalog.Catalog
	ledger *ledger.Ledger
	store  store.Store
	sinks  []history.Sink
	applog logger.Config
	log    *slog.Logger
}

// New builds an Engine over the injected catalog, pid ledger and usage
// store. applog configures where launched apps' stdout/stderr go.
func New(cat *catalog.Catalog, led *ledger.Ledger, st store.Store, applog logger.Config, log *slog.Logger) *Engine {
	return &Engine{cat: cat, ledger: led, store: st, applog: applog, log: log}
}

// SetHistorySinks configures external usage-event sinks (ClickHouse etc.).
// Passing no sinks clears the list.
func (e *Engine) SetHistorySinks(sinks ...history.Sink) {
	e.sinks = append([]history.Sink(nil), sinks...)
}

// IsRunning reports whether the app is running, reconciling tracking state
// with OS reality on the way:
//
//  1. A recorded pid that is still alive wins. The recorded process start
//     time guards against pid reuse; a dead or reused recorded pid is purged
//     write-through before anything else is trusted.
//  2. Otherwise the process table is scanned for the catalog process name;
//     a match heals the ledger with the discovered pid and start time.
//
// A manually started or externally restarted app is therefore reattached on
// first observation, and a stale pid never yields a false positive beyond a
// single check.
func (e *Engine) IsRunning(appID string) bool {
	if ent := e.ledger.Get(appID); ent.PID > 0 {
		d := detector.PIDDetector{PID: ent.PID, StartUnix: ent.StartUnix}
		if alive, err := d.Alive(); err == nil && alive {
			return true
		}
		e.ledger.Remove(appID)
		e.log.Debug("purged stale pid", "app", appID, "pid", ent.PID)
	}
	name := e.cat.ProcessName(appID)
	if name == "" {
		return false
	}
	pids, err := detector.FindByName(name)
	if err != nil {
		e.log.Warn("process scan failed", "app", appID, "process_name", name, "error", err)
		return false
	}
	if len(pids) == 0 {
		return false
	}
	e.ledger.Set(appID, ledger.Entry{PID: pids[0], StartUnix: detector.ProcStartUnix(pids[0])})
	e.log.Info("reattached to externally started app", "app", appID, "pid", pids[0])
	return true
}

// Launch starts the app detached from the engine's own process group; the
// engine exiting never takes managed apps down with it. On success the pid
// is recorded and a launch event is appended to the usage store. No partial
// state is committed on failure.
func (e *Engine) Launch(ctx context.Context, appID string) error {
	argv, err := e.cat.Command(appID)
	if err != nil {
		metrics.IncLaunchFailure(appID, "not_configured")
		return fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	if e.IsRunning(appID) {
		return ErrAlreadyRunning
	}
	pid, err := e.spawn(appID, argv)
	if err != nil {
		serr := classifySpawn(err)
		e.log.Error("launch failed", "app", appID, "kind", string(serr.Kind), "error", serr.Err)
		metrics.IncLaunchFailure(appID, string(serr.Kind))
		return serr
	}
	now := time.Now()
	e.ledger.Set(appID, ledger.Entry{PID: pid, StartUnix: detector.ProcStartUnix(pid)})
	if err := e.store.RecordLaunch(ctx, appID, now); err != nil {
		// Persistence degraded: the launch itself succeeded, keep going.
		e.log.Warn("failed to record launch", "app", appID, "error", err)
	}
	metrics.IncLaunch(appID)
	e.emit(ctx, history.Event{Type: history.EventLaunch, OccurredAt: now, AppID: appID, PID: pid})
	e.log.Info("app launched", "app", appID, "pid", pid)
	return nil
}

// Close force-terminates the app. Tier 1 targets the recorded pid; tier 2
// falls back to killing by catalog process name when there is no record or
// the pid kill errors out. Name-based termination hits every process with
// that name, a known limitation when unrelated same-named processes exist.
// Whichever tier succeeds, the session end is recorded and the pid record
// purged.
func (e *Engine) Close(ctx context.Context, appID string) error {
	pid := e.ledger.Get(appID).PID
	tracked := pid > 0
	closed := false

	if tracked {
		if err := killPID(ctx, pid); err != nil {
			e.log.Info("close by pid failed, falling back to name", "app", appID, "pid", pid, "error", err)
			// The event below must not claim a pid the kill never reached.
			pid = 0
		} else {
			closed = true
		}
		// The record is spent either way: dead pids must not be retried.
		e.ledger.Remove(appID)
	}
	if !closed {
		name := e.cat.ProcessName(appID)
		if name != "" {
			n, err := killByName(ctx, name)
			if err != nil {
				e.log.Warn("close by name failed", "app", appID, "process_name", name, "error", err)
			} else if n > 0 {
				closed = true
			}
		}
	}
	if !closed {
		if !tracked {
			return ErrNotRunning
		}
		// Tracked but nothing to kill: not a crash, the caller decides
		// whether to retry.
		return ErrTerminateFailed
	}

	now := time.Now()
	added, err := e.store.RecordSessionEnd(ctx, appID, now)
	if err != nil {
		e.log.Warn("failed to record session end", "app", appID, "error", err)
	} else if added > 0 {
		metrics.ObserveSession(appID, added)
	}
	metrics.IncClose(appID)
	e.emit(ctx, history.Event{Type: history.EventClose, OccurredAt: now, AppID: appID, PID: pid, SessionSeconds: added})
	e.log.Info("app closed", "app", appID, "session_seconds", added)
	return nil
}

// CloseAll sweeps the full catalog in catalog order and returns the
// identifiers that were running and were successfully closed. A failure on
// one app never prevents attempting the rest.
func (e *Engine) CloseAll(ctx context.Context) []string {
	var closed []string
	for _, id := range e.cat.IDs() {
		if !e.IsRunning(id) {
			continue
		}
		if err := e.Close(ctx, id); err != nil {
			e.log.Warn("close failed during sweep", "app", id, "error", err)
			continue
		}
		closed = append(closed, id)
	}
	return closed
}

// Stats returns the usage view for every catalog entry. Apps without a
// stored record yield the zero view so callers never special-case missing
// history. Store failures degrade to zero views with a logged warning.
func (e *Engine) Stats(ctx context.Context) map[string]Usage {
	out := make(map[string]Usage, len(e.cat.Apps))
	for _, id := range e.cat.IDs() {
		u := Usage{LastLaunch: NeverLaunched}
		rec, found, err := e.store.Get(ctx, id)
		if err != nil {
			e.log.Warn("failed to read usage record", "app", id, "error", err)
		} else if found {
			u.Launches = rec.Launches
			u.TotalSeconds = rec.TotalSeconds
			if rec.LastLaunch.Valid && rec.LastLaunch.String != "" {
				u.LastLaunch = rec.LastLaunch.String
			}
		}
		out[id] = u
	}
	return out
}

// Status returns the live per-app view in catalog order and refreshes the
// running-apps gauge. Reads are reconciling: see IsRunning.
func (e *Engine) Status() []AppStatus {
	out := make([]AppStatus, 0, len(e.cat.Apps))
	running := 0
	for _, id := range e.cat.IDs() {
		app, _ := e.cat.Get(id)
		st := AppStatus{ID: id, Name: app.Name, Icon: app.Icon}
		if e.IsRunning(id) {
			st.Running = true
			st.PID = e.ledger.Get(id).PID
			running++
		}
		out = append(out, st)
	}
	metrics.SetRunningApps(running)
	return out
}

func (e *Engine) emit(ctx context.Context, evt history.Event) {
	for _, s := range e.sinks {
		if err := s.Send(ctx, evt); err != nil {
			e.log.Warn("history sink failed", "type", string(evt.Type), "app", evt.AppID, "error", err)
		}
	}
}
