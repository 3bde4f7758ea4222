package appmand

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	dir := t.TempDir()

	// Neutralize process names and discovery so a developer machine that
	// actually runs these apps cannot influence the test.
	catalogFile := filepath.Join(dir, "apps.json")
	require.NoError(t, os.WriteFile(catalogFile, []byte(`{
		"apps": {
			"dota":    {"process_name": "zz-dota-test", "auto_detect": false},
			"spotify": {"process_name": "zz-spotify-test", "auto_detect": false},
			"discord": {"process_name": "zz-discord-test", "auto_detect": false},
			"vscode":  {"process_name": "zz-vscode-test", "auto_detect": false}
		}
	}`), 0o600))

	d, err := Open(Options{
		CatalogPath: catalogFile,
		LedgerPath:  filepath.Join(dir, "running_pids.json"),
		StoreDSN:    filepath.Join(dir, "stats.db"),
		LogLevel:    "ERROR",
	})
	require.NoError(t, err)
	t.Cleanup(d.Shutdown)
	return d
}

func TestOpenWithDefaults(t *testing.T) {
	d := openTestDaemon(t)
	assert.Len(t, d.Catalog().Apps, 4)

	stats := d.Stats(context.Background())
	require.Len(t, stats, 4)
	for id, u := range stats {
		assert.Zero(t, u.Launches, id)
		assert.Equal(t, "never", u.LastLaunch, id)
	}
}

func TestLaunchUnknownApp(t *testing.T) {
	d := openTestDaemon(t)
	assert.Error(t, d.Launch(context.Background(), "mystery"))
}

func TestCloseAllIdle(t *testing.T) {
	d := openTestDaemon(t)
	assert.Empty(t, d.CloseAll(context.Background()))
}

func TestStatusIdle(t *testing.T) {
	d := openTestDaemon(t)
	for _, st := range d.Status() {
		assert.False(t, st.Running, st.ID)
	}
}

func TestDispatcherWiring(t *testing.T) {
	d := openTestDaemon(t)
	disp := d.Dispatcher("operator")
	reply := disp.Handle(context.Background(), "operator", "help")
	assert.Contains(t, reply, "Commands:")
	assert.Equal(t, "sorry, but no)", disp.Handle(context.Background(), "stranger", "help"))
}

func TestServeAndShutdown(t *testing.T) {
	d := openTestDaemon(t)
	srv, err := d.Serve("127.0.0.1:0", "")
	require.NoError(t, err)
	require.NoError(t, srv.Close())
}
