package factory

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/appmand/appmand/internal/store"
	pg "github.com/appmand/appmand/internal/store/postgres"
	sq "github.com/appmand/appmand/internal/store/sqlite"
)

// NewFromDSN selects a store implementation based on DSN.
// Supported:
//   - sqlite:  "sqlite://<path>" or a bare filepath (treated as sqlite)
//   - postgres: DSN starting with "postgres://" or "postgresql://"
func NewFromDSN(dsn string, log *slog.Logger) (store.Store, error) {
	d := strings.TrimSpace(dsn)
	ld := strings.ToLower(d)
	if ld == "" {
		return nil, errors.New("empty DSN")
	}
	if strings.HasPrefix(ld, "postgres://") || strings.HasPrefix(ld, "postgresql://") {
		return pg.New(d, log)
	}
	if strings.HasPrefix(ld, "sqlite://") {
		return sq.New(strings.TrimPrefix(d, "sqlite://"), log)
	}
	// default to sqlite path
	return sq.New(d, log)
}
