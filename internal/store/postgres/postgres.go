package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/appmand/appmand/internal/store"
)

// DB implements store.Store for PostgreSQL via the pgx stdlib driver. Used
// when the operator points several hosts at one shared usage database.
type DB struct {
	db  *sql.DB
	log *slog.Logger
}

func New(dsn string, log *slog.Logger) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d, log: log}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	cols, exists, err := p.tableColumns(ctx)
	if err != nil {
		return err
	}
	if exists {
		var missing []string
		for _, c := range store.RequiredColumns {
			if !cols[c] {
				missing = append(missing, c)
			}
		}
		if len(missing) == 0 {
			return nil
		}
		p.log.Warn("usage table has incompatible layout, recreating (prior history lost)",
			"missing_columns", strings.Join(missing, ","))
		if _, err := p.db.ExecContext(ctx, `DROP TABLE IF EXISTS app_stats;`); err != nil {
			return err
		}
	}
	_, err = p.db.ExecContext(ctx, `
		CREATE TABLE app_stats(
			app_name TEXT PRIMARY KEY,
			launches BIGINT NOT NULL DEFAULT 0,
			total_time DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_launch TEXT,
			last_session_start DOUBLE PRECISION
		);`)
	return err
}

func (p *DB) tableColumns(ctx context.Context) (map[string]bool, bool, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_name='app_stats';`)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = rows.Close() }()
	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, false, err
		}
		cols[name] = true
	}
	return cols, len(cols) > 0, rows.Err()
}

func (p *DB) Close() error { return p.db.Close() }

func (p *DB) RecordLaunch(ctx context.Context, appID string, at time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO app_stats(app_name, launches, last_launch, last_session_start)
		VALUES($1, 1, $2, $3)
		ON CONFLICT(app_name) DO UPDATE SET
			launches=app_stats.launches+1,
			last_launch=EXCLUDED.last_launch,
			last_session_start=EXCLUDED.last_session_start;`,
		appID, at.Format(time.RFC3339), unixSeconds(at))
	return err
}

func (p *DB) RecordSessionEnd(ctx context.Context, appID string, at time.Time) (float64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var start sql.NullFloat64
	err = tx.QueryRowContext(ctx,
		`SELECT last_session_start FROM app_stats WHERE app_name=$1 FOR UPDATE;`, appID).Scan(&start)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
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
		SET total_time = total_time + $1, last_session_start = NULL
		WHERE app_name=$2;`, dur, appID)
	if err != nil {
		return 0, err
	}
	return dur, tx.Commit()
}

func (p *DB) Get(ctx context.Context, appID string) (store.UsageRecord, bool, error) {
	var r store.UsageRecord
	err := p.db.QueryRowContext(ctx, `
		SELECT app_name, launches, total_time, last_launch, last_session_start
		FROM app_stats WHERE app_name=$1;`, appID).
		Scan(&r.AppID, &r.Launches, &r.TotalSeconds, &r.LastLaunch, &r.SessionStart)
	if errors.Is(err, sql.ErrNoRows) {
		return store.UsageRecord{AppID: appID}, false, nil
	}
	if err != nil {
		return store.UsageRecord{}, false, err
	}
	return r, true, nil
}

func (p *DB) All(ctx context.Context) ([]store.UsageRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
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
