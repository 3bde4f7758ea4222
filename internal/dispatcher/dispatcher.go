// Package dispatcher is the text-command boundary in front of the engine.
// It authenticates the single operator, rate-limits everyone else, parses
// free-form commands against catalog-derived aliases and formats replies.
// It never touches process state itself; every action goes through the
// engine.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/appmand/appmand/internal/catalog"
	"github.com/appmand/appmand/internal/engine"
)

const refusal = "sorry, but no)"

var (
	nonWord    = regexp.MustCompile(`[^\w\s\-]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Dispatcher routes operator text commands to the engine. Safe for
// concurrent use.
type Dispatcher struct {
	eng      *engine.Engine
	cat      *catalog.Catalog
	operator string
	cooldown time.Duration
	log      *slog.Logger

	// now is swappable in tests.
	now func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// New builds a Dispatcher. operator is the only caller identity whose
// commands reach the engine; cooldown applies per caller to everyone else.
func New(eng *engine.Engine, cat *catalog.Catalog, operator string, cooldown time.Duration, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		eng:      eng,
		cat:      cat,
		operator: operator,
		cooldown: cooldown,
		log:      log,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// Handle processes one inbound message and returns the reply text. The
// reply is always non-empty; unknown commands get a fallback, non-operators
// get the fixed refusal without the engine ever being consulted.
func (d *Dispatcher) Handle(ctx context.Context, caller, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	d.log.Info("command received", "caller", caller, "text", text)

	if caller != d.operator {
		if remaining, limited := d.checkCooldown(caller); limited {
			d.log.Warn("rate limited", "caller", caller, "remaining", remaining)
			return fmt.Sprintf("Slow down! Wait %.1f sec", remaining.Seconds())
		}
		return refusal
	}

	words := strings.Fields(strings.ToLower(text))
	command := words[0]
	target := normalizeTarget(strings.Join(words[1:], " "))

	switch command {
	case "help", "/help":
		return d.helpText()
	case "status", "online":
		return d.statusText()
	case "stats", "statistics":
		return d.statsText(ctx)
	case "stop", "close", "kill":
		if target == "" {
			return d.closeEverything(ctx)
		}
		return d.closeOne(ctx, target)
	}
	if id, ok := d.launchAlias(command); ok {
		return d.launch(ctx, id)
	}
	return "I don't know that command. Try 'help'."
}

// checkCooldown reports whether the caller is still inside the cooldown
// window and how long remains. An accepted call stamps the caller's clock.
func (d *Dispatcher) checkCooldown(caller string) (time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if last, ok := d.last[caller]; ok {
		if since := now.Sub(last); since < d.cooldown {
			return d.cooldown - since, true
		}
	}
	d.last[caller] = now
	return 0, false
}

// launchAlias resolves a launch command word to an app id. Identifiers,
// display names and process names all work, so "vscode", "code" and
// "vs code" (first word) land on the same app.
func (d *Dispatcher) launchAlias(word string) (string, bool) {
	for _, id := range d.cat.IDs() {
		app, _ := d.cat.Get(id)
		if word == id ||
			word == strings.ToLower(app.ProcessName) ||
			word == firstWord(strings.ToLower(app.Name)) {
			return id, true
		}
	}
	return "", false
}

func (d *Dispatcher) launch(ctx context.Context, id string) string {
	name := d.cat.DisplayName(id)
	err := d.eng.Launch(ctx, id)
	switch {
	case err == nil:
		return fmt.Sprintf("%s is starting %s", name, d.icon(id))
	case errors.Is(err, engine.ErrAlreadyRunning):
		return fmt.Sprintf("%s is already running %s", name, d.icon(id))
	case errors.Is(err, engine.ErrNotConfigured):
		return fmt.Sprintf("I can't find %s on this machine", name)
	default:
		return fmt.Sprintf("Couldn't start %s, check the logs", name)
	}
}

func (d *Dispatcher) closeOne(ctx context.Context, target string) string {
	id, ok := d.launchAlias(firstWord(target))
	if !ok {
		id, ok = d.launchAlias(target)
	}
	if !ok {
		return d.closeEverything(ctx)
	}
	name := d.cat.DisplayName(id)
	if !d.eng.IsRunning(id) {
		return fmt.Sprintf("%s isn't running", name)
	}
	if err := d.eng.Close(ctx, id); err != nil {
		return fmt.Sprintf("Couldn't close %s, check the logs", name)
	}
	return fmt.Sprintf("%s closed %s", name, d.icon(id))
}

func (d *Dispatcher) closeEverything(ctx context.Context) string {
	closed := d.eng.CloseAll(ctx)
	if len(closed) == 0 {
		return "Nothing was running"
	}
	names := make([]string, 0, len(closed))
	for _, id := range closed {
		names = append(names, d.cat.DisplayName(id))
	}
	return "Closed: " + strings.Join(names, ", ")
}

func (d *Dispatcher) statusText() string {
	var running []string
	for _, st := range d.eng.Status() {
		if st.Running {
			running = append(running, fmt.Sprintf("%s %s (pid %d)", st.Icon, st.Name, st.PID))
		}
	}
	if len(running) == 0 {
		return "Online. Nothing is running."
	}
	return "Online. Running:\n" + strings.Join(running, "\n")
}

func (d *Dispatcher) statsText(ctx context.Context) string {
	stats := d.eng.Stats(ctx)
	ids := make([]string, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	lines := []string{"Usage stats:", ""}
	for _, id := range ids {
		u := stats[id]
		lines = append(lines, fmt.Sprintf("%s %s:", d.icon(id), d.cat.DisplayName(id)))
		lines = append(lines, fmt.Sprintf("  launches: %d", u.Launches))
		lines = append(lines, fmt.Sprintf("  total time: %s", formatDuration(u.TotalSeconds)))
		if u.LastLaunch != engine.NeverLaunched {
			if t, err := time.Parse(time.RFC3339, u.LastLaunch); err == nil {
				lines = append(lines, fmt.Sprintf("  last: %s", t.Format("02.01.2006 15:04")))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func (d *Dispatcher) helpText() string {
	lines := []string{"Commands:"}
	for _, id := range d.cat.IDs() {
		lines = append(lines, fmt.Sprintf("  %s - launch %s", id, d.cat.DisplayName(id)))
	}
	lines = append(lines,
		"  close <app> - close one app",
		"  close - close everything",
		"  status - what is running",
		"  stats - usage statistics",
	)
	return strings.Join(lines, "\n")
}

func (d *Dispatcher) icon(id string) string {
	app, _ := d.cat.Get(id)
	return app.Icon
}

// normalizeTarget keeps letters, digits, underscores and hyphens so inputs
// like "discord please" or "VS Code!" still resolve.
func normalizeTarget(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWord.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

// formatDuration renders seconds as "3h 12m" or "12m".
func formatDuration(seconds float64) string {
	total := int64(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
