package factory

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pg "github.com/appmand/appmand/internal/store/postgres"
	sq "github.com/appmand/appmand/internal/store/sqlite"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEmptyDSNErrors(t *testing.T) {
	_, err := NewFromDSN("", discard())
	assert.Error(t, err)
	_, err = NewFromDSN("   ", discard())
	assert.Error(t, err)
}

func TestBarePathIsSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	st, err := NewFromDSN(path, discard())
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	assert.IsType(t, &sq.DB{}, st)

	ctx := context.Background()
	require.NoError(t, st.EnsureSchema(ctx))
	require.NoError(t, st.RecordLaunch(ctx, "dota", time.Now()))
}

func TestSQLiteSchemeStripped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	st, err := NewFromDSN("sqlite://"+path, discard())
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	assert.IsType(t, &sq.DB{}, st)
	require.NoError(t, st.EnsureSchema(context.Background()))
}

func TestPostgresSchemeSelectsPostgres(t *testing.T) {
	// sql.Open with pgx is lazy, so selection is testable without a server.
	for _, dsn := range []string{
		"postgres://u:p@localhost:5432/db",
		"postgresql://u:p@localhost:5432/db",
	} {
		st, err := NewFromDSN(dsn, discard())
		require.NoError(t, err, dsn)
		assert.IsType(t, &pg.DB{}, st, dsn)
		require.NoError(t, st.Close())
	}
}
