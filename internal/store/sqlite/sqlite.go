package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/appmand/appmand/internal/store"
)

// DB implements store.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// Path is a filesystem path to the database file. Use ":memory:" for
// in-memory.
type DB struct {
	db  *sql.DB
	log *slog.Logger
}

// New opens a SQLite database at path.
func New(path string, log *slog.Logger) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d, log: log}, nil
}

// EnsureSchema creates the usage table, healing an incompatible layout by
// dropping it first. Losing prior rows on a layout change is the accepted
// trade for never failing startup on an old database file.
func (s *DB) EnsureSchema(ctx context.Context) error {
	cols, exists, err := s.tableColumns(ctx)
	if err != nil {
		return err
	}
	if exists {
		missing := missingColumns(cols)
		if len(missing) == 0 {
			return nil
		}
		s.log.Warn("usage table has incompatible layout, recreating (prior history lost)",
			"missing_columns", strings.Join(missing, ","))
		if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS app_stats;`); err != nil {
			return err
		}
	}
	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE app_stats(
			app_name TEXT PRIMARY KEY,
			launches INTEGER NOT NULL DEFAULT 0,
			total_time REAL NOT NULL DEFAULT 0,
			last_launch TEXT,
			last_session_start REAL
		);`)
	return err
}

func (s *DB) tableColumns(ctx context.Context) (map[string]bool, bool, error) {
	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(app_stats);`)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = rows.Close() }()
	cols := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, false, err
		}
		cols[name] = true
	}
	return cols, len(cols) > 0, rows.Err()
}

func missingColumns(cols map[string]bool) []string {
	var missing []string
	for _, c := range store.RequiredColumns {
		if !cols[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) RecordLaunch(ctx context.Context, appID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_stats(app_name, launches, last_launch, last_session_start)
		VALUES(?, 1, ?, ?)
		ON CONFLICT(app_name) DO UPDATE SET
			launches=launches+1,
			last_launch=excluded.last_launch,
			last_session_start=excluded.last_session_start;`,
		appID, at.Format(time.RFC3339), unixSeconds(at))
	return err
}

func (s *DB) RecordSessionEnd(ctx context.Context, appID string, at time.Time) (float64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var start sql.NullFloat64
	err = tx.QueryRowContext(ctx,
		`SELECT last_session_start FROM app_stats WHERE app_name=?;`, appID).Scan(&start)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil // close without a tracked launch adds no time
	}
	if err != nil {
		return 0, err
	}
	if !start.Valid {
		return 0, nil
	}
	dur := unixSeconds(at) - start.Float64
	if dur < 0 {
		dur = 0
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE app_stats
		SET total_time = total_time + ?, last_session_start = NULL
		WHERE app_name=?;`, dur, appID)
	if err != nil {
		return 0, err
	}
	return dur, tx.Commit()
}

func (s *DB) Get(ctx context.Context, appID string) (store.UsageRecord, bool, error) {
	var r store.UsageRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT app_name, launches, total_time, last_launch, last_session_start
		FROM app_stats WHERE app_name=?;`, appID).
		Scan(&r.AppID, &r.Launches, &r.TotalSeconds, &r.LastLaunch, &r.SessionStart)
	if errors.Is(err, sql.ErrNoRows) {
		return store.UsageRecord{AppID: appID}, false, nil
	}
	if err != nil {
		return store.UsageRecord{}, false, err
	}
	return r, true, nil
}

func (s *DB) All(ctx context.Context) ([]store.UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT app_name, launches, total_time, last_launch, last_session_start
		FROM app_stats ORDER BY app_name;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]store.UsageRecord, 0)
	for rows.Next() {
		var r store.UsageRecord
		if err := rows.Scan(&r.AppID, &r.Launches, &r.TotalSeconds, &r.LastLaunch, &r.SessionStart); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
