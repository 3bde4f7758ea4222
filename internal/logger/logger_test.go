package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel(" WARNING "))
	assert.Equal(t, slog.LevelError, parseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	log := New("INFO", path)
	log.Info("hello", "k", "v")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "hello")
	assert.Contains(t, string(b), "k=v")
}

func TestNewRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	log := New("WARN", path)
	log.Info("too quiet")
	log.Warn("loud enough")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "too quiet")
	assert.Contains(t, string(b), "loud enough")
}

func TestWritersDeriveFromDir(t *testing.T) {
	dir := t.TempDir()
	out, errW, err := Config{Dir: dir}.Writers("dota")
	require.NoError(t, err)
	require.NotNil(t, out)
	require.NotNil(t, errW)

	_, err = out.Write([]byte("stdout line\n"))
	require.NoError(t, err)
	_, err = errW.Write([]byte("stderr line\n"))
	require.NoError(t, err)
	require.NoError(t, out.Close())
	require.NoError(t, errW.Close())

	b, err := os.ReadFile(filepath.Join(dir, "dota.stdout.log"))
	require.NoError(t, err)
	assert.Equal(t, "stdout line\n", string(b))
	b, err = os.ReadFile(filepath.Join(dir, "dota.stderr.log"))
	require.NoError(t, err)
	assert.Equal(t, "stderr line\n", string(b))
}

func TestWritersNilWithoutDestination(t *testing.T) {
	out, errW, err := Config{}.Writers("dota")
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Nil(t, errW)
}

func TestWritersExplicitPathsOverrideDir(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "custom.log")
	out, _, err := Config{Dir: dir, StdoutPath: custom}.Writers("dota")
	require.NoError(t, err)
	_, err = out.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, out.Close())

	_, err = os.Stat(custom)
	assert.NoError(t, err)
}
