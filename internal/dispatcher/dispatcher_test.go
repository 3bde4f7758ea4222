package dispatcher

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appmand/appmand/internal/catalog"
	"github.com/appmand/appmand/internal/engine"
	"github.com/appmand/appmand/internal/ledger"
	"github.com/appmand/appmand/internal/logger"
	"github.com/appmand/appmand/internal/store"
)

type stubStore struct{}

func (stubStore) EnsureSchema(context.Context) error { return nil }
func (stubStore) Close() error                       { return nil }
func (stubStore) RecordLaunch(context.Context, string, time.Time) error {
	return nil
}
func (stubStore) RecordSessionEnd(context.Context, string, time.Time) (float64, error) {
	return 0, nil
}
func (stubStore) Get(_ context.Context, appID string) (store.UsageRecord, bool, error) {
	return store.UsageRecord{AppID: appID}, false, nil
}
func (stubStore) All(context.Context) ([]store.UsageRecord, error) { return nil, nil }

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat := catalog.Defaults()
	led := ledger.Load(filepath.Join(t.TempDir(), "pids.json"), true, log)
	eng := engine.New(cat, led, stubStore{}, logger.Config{}, log)
	return New(eng, cat, "operator", 2*time.Second, log)
}

func TestNonOperatorIsRefused(t *testing.T) {
	d := newTestDispatcher(t)
	reply := d.Handle(context.Background(), "stranger", "help")
	assert.Equal(t, "sorry, but no)", reply)
}

func TestNonOperatorIsRateLimited(t *testing.T) {
	d := newTestDispatcher(t)
	base := time.Now()
	d.now = func() time.Time { return base }

	ctx := context.Background()
	assert.Equal(t, "sorry, but no)", d.Handle(ctx, "stranger", "help"))

	d.now = func() time.Time { return base.Add(500 * time.Millisecond) }
	reply := d.Handle(ctx, "stranger", "help")
	assert.Contains(t, reply, "Slow down")

	// The rejected attempt must not have reset the window.
	d.now = func() time.Time { return base.Add(2100 * time.Millisecond) }
	assert.Equal(t, "sorry, but no)", d.Handle(ctx, "stranger", "help"))
}

func TestOperatorBypassesRateLimit(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		reply := d.Handle(ctx, "operator", "help")
		assert.Contains(t, reply, "Commands:")
	}
}

func TestCooldownIsPerCaller(t *testing.T) {
	d := newTestDispatcher(t)
	base := time.Now()
	d.now = func() time.Time { return base }

	ctx := context.Background()
	assert.Equal(t, "sorry, but no)", d.Handle(ctx, "alice", "help"))
	assert.Equal(t, "sorry, but no)", d.Handle(ctx, "bob", "help"))
}

func TestEmptyMessageIgnored(t *testing.T) {
	d := newTestDispatcher(t)
	assert.Empty(t, d.Handle(context.Background(), "operator", "   "))
}

func TestUnknownCommandFallback(t *testing.T) {
	d := newTestDispatcher(t)
	reply := d.Handle(context.Background(), "operator", "frobnicate the widget")
	assert.Contains(t, reply, "don't know")
}

func TestHelpListsCatalogApps(t *testing.T) {
	d := newTestDispatcher(t)
	reply := d.Handle(context.Background(), "operator", "help")
	for _, id := range []string{"dota", "spotify", "discord", "vscode"} {
		assert.Contains(t, reply, id)
	}
}

func TestStatusWhenNothingRuns(t *testing.T) {
	d := newTestDispatcher(t)
	reply := d.Handle(context.Background(), "operator", "status")
	assert.Contains(t, reply, "Nothing is running")
}

func TestStatsFormatsZeroViews(t *testing.T) {
	d := newTestDispatcher(t)
	reply := d.Handle(context.Background(), "operator", "stats")
	assert.Contains(t, reply, "Dota 2")
	assert.Contains(t, reply, "launches: 0")
	assert.NotContains(t, reply, "last:", "apps never launched must not show a last-launch line")
}

func TestLaunchUnconfiguredAppReportsMissing(t *testing.T) {
	d := newTestDispatcher(t)
	// Default catalog has no launch path for dota on a clean test box.
	reply := d.Handle(context.Background(), "operator", "dota")
	assert.Contains(t, reply, "can't find Dota 2")
}

func TestCloseWithoutTargetClosesEverything(t *testing.T) {
	d := newTestDispatcher(t)
	reply := d.Handle(context.Background(), "operator", "close")
	assert.Equal(t, "Nothing was running", reply)
}

func TestCloseUnknownTargetFallsBackToCloseAll(t *testing.T) {
	d := newTestDispatcher(t)
	reply := d.Handle(context.Background(), "operator", "close the pod bay doors")
	assert.Equal(t, "Nothing was running", reply)
}

func TestCloseTargetNotRunning(t *testing.T) {
	d := newTestDispatcher(t)
	reply := d.Handle(context.Background(), "operator", "close spotify")
	assert.Equal(t, "Spotify isn't running", reply)
}

func TestNormalizeTarget(t *testing.T) {
	assert.Equal(t, "vs code", normalizeTarget("  VS Code!  "))
	assert.Equal(t, "discord please", normalizeTarget("discord, please"))
	assert.Equal(t, "", normalizeTarget("!!!"))
}

func TestLaunchAliasResolution(t *testing.T) {
	d := newTestDispatcher(t)

	id, ok := d.launchAlias("vscode")
	require.True(t, ok)
	assert.Equal(t, "vscode", id)

	id, ok = d.launchAlias("code") // process name
	require.True(t, ok)
	assert.Equal(t, "vscode", id)

	id, ok = d.launchAlias("vs") // first word of the display name
	require.True(t, ok)
	assert.Equal(t, "vscode", id)

	_, ok = d.launchAlias("nonsense")
	assert.False(t, ok)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0m", formatDuration(30))
	assert.Equal(t, "12m", formatDuration(725))
	assert.Equal(t, "3h 12m", formatDuration(3*3600+12*60+5))
}
