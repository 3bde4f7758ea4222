// Package ledger persists the app→process map that lets the engine find the
// processes it launched across its own restarts. The whole file is rewritten
// on every mutation; the file is small (one entry per catalog app) and a
// temp-file rename keeps readers from ever seeing a torn write.
package ledger

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
)

// Entry records the process the engine last believed an application was
// running under. StartUnix is the process start time in Unix seconds; it
// lets a liveness check tell a reused pid apart from the tracked process.
// Zero means unknown, disabling the guard for that entry.
type Entry struct {
	PID       int   `json:"pid"`
	StartUnix int64 `json:"start_unix,omitempty"`
}

// UnmarshalJSON also accepts the older file format where each value was a
// bare pid number.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var pid int
	if err := json.Unmarshal(b, &pid); err == nil {
		*e = Entry{PID: pid}
		return nil
	}
	type plain Entry
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}

// Ledger is a durable mapping from application identifier to the process
// record the engine last committed for it.
type Ledger struct {
	mu       sync.Mutex
	path     string
	entries  map[string]Entry
	autoSave bool
	log      *slog.Logger
}

// Load reads the ledger file at path. A missing file starts empty; a
// malformed file is reset to empty with a warning rather than failing
// startup; a lost ledger only costs one reconciliation pass.
func Load(path string, autoSave bool, log *slog.Logger) *Ledger {
	l := &Ledger{path: path, entries: make(map[string]Entry), autoSave: autoSave, log: log}
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("pid ledger unreadable, starting empty", "path", path, "error", err)
		}
		return l
	}
	var m map[string]Entry
	if err := json.Unmarshal(b, &m); err != nil {
		log.Warn("pid ledger malformed, starting empty", "path", path, "error", err)
		return l
	}
	for id, ent := range m {
		if ent.PID > 0 {
			l.entries[id] = ent
		}
	}
	log.Info("pid ledger loaded", "path", path, "entries", len(l.entries))
	return l
}

// Get returns the recorded entry for id; the zero Entry when none is
// recorded.
func (l *Ledger) Get(id string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[id]
}

// Set records ent for id and flushes the file. A non-positive pid deletes
// the entry.
func (l *Ledger) Set(id string, ent Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ent.PID <= 0 {
		delete(l.entries, id)
	} else {
		l.entries[id] = ent
	}
	l.flushLocked()
}

// Remove purges the entry for id and flushes the file. Removing an absent
// entry is a no-op.
func (l *Ledger) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[id]; !ok {
		return
	}
	delete(l.entries, id)
	l.flushLocked()
}

// Snapshot returns a copy of the current map, for status views.
func (l *Ledger) Snapshot() map[string]Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]Entry, len(l.entries))
	for id, ent := range l.entries {
		out[id] = ent
	}
	return out
}

// Flush writes the ledger to disk regardless of the auto-save setting.
// Used by shutdown teardown.
func (l *Ledger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write()
}

func (l *Ledger) flushLocked() {
	if !l.autoSave {
		return
	}
	if err := l.write(); err != nil {
		// Best effort: a stale ledger is healed by the next isRunning check.
		l.log.Warn("pid ledger write failed", "path", l.path, "error", err)
	}
}

func (l *Ledger) write() error {
	b, err := json.MarshalIndent(l.entries, "", "    ")
	if err != nil {
		return err
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}
