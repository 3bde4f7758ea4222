package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
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

func (stubStore) EnsureSchema(context.Context) error                    { return nil }
func (stubStore) Close() error                                          { return nil }
func (stubStore) RecordLaunch(context.Context, string, time.Time) error { return nil }
func (stubStore) RecordSessionEnd(context.Context, string, time.Time) (float64, error) {
	return 0, nil
}
func (stubStore) Get(_ context.Context, appID string) (store.UsageRecord, bool, error) {
	return store.UsageRecord{AppID: appID}, false, nil
}
func (stubStore) All(context.Context) ([]store.UsageRecord, error) { return nil, nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat := catalog.Defaults()
	led := ledger.Load(filepath.Join(t.TempDir(), "pids.json"), true, log)
	eng := engine.New(cat, led, stubStore{}, logger.Config{}, log)
	ts := httptest.NewServer(NewRouter(eng, "").Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sts []engine.AppStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sts))
	require.Len(t, sts, 4)
	assert.Equal(t, "discord", sts[0].ID)
	for _, st := range sts {
		assert.False(t, st.Running)
	}
}

func TestStatsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats map[string]engine.Usage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	require.Len(t, stats, 4)
	assert.Equal(t, engine.NeverLaunched, stats["dota"].LastLaunch)
}

func TestLaunchRequiresApp(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/launch", "", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLaunchRejectsUnsafeApp(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/launch?app=..%2Fetc", "", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLaunchUnconfiguredAppIsNotFound(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/launch?app=dota", "", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCloseNotRunningIsConflict(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/close?app=dota", "", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCloseAllEmpty(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/close-all", "", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Closed []string `json:"closed"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Closed)
	assert.NotNil(t, body.Closed)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBasePathPrefix(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat := catalog.Defaults()
	led := ledger.Load(filepath.Join(t.TempDir(), "pids.json"), true, log)
	eng := engine.New(cat, led, stubStore{}, logger.Config{}, log)
	ts := httptest.NewServer(NewRouter(eng, "api/").Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSanitizeBase(t *testing.T) {
	assert.Equal(t, "", sanitizeBase(""))
	assert.Equal(t, "", sanitizeBase("/"))
	assert.Equal(t, "/api", sanitizeBase("api"))
	assert.Equal(t, "/api", sanitizeBase("/api/"))
}

func TestIsSafeName(t *testing.T) {
	assert.True(t, isSafeName("dota"))
	assert.True(t, isSafeName("vs_code-2.0"))
	assert.False(t, isSafeName(""))
	assert.False(t, isSafeName("../etc"))
	assert.False(t, isSafeName("a/b"))
	assert.False(t, isSafeName("a b"))
}
