package store

import (
	"context"
	"database/sql"
	"time"
)

// UsageRecord is the per-application usage row.
// LastLaunch is ISO-8601 text; SessionStart is a raw unix-seconds timestamp
// and is set only while a launch-tracked session is open.
type UsageRecord struct {
	AppID        string
	Launches     int64
	TotalSeconds float64
	LastLaunch   sql.NullString
	SessionStart sql.NullFloat64
}

// Columns required of the usage table. A persisted table missing any of
// them is from an incompatible version and is dropped and recreated.
var RequiredColumns = []string{"app_name", "launches", "total_time", "last_launch", "last_session_start"}

// Store is the persistence interface for usage accounting. Every mutating
// call is a single transaction: a failure leaves prior committed state
// untouched. Callers decide how to degrade; the store only reports errors.
type Store interface {
	EnsureSchema(ctx context.Context) error
	// RecordLaunch increments the launch counter and opens a session at the
	// given instant.
	RecordLaunch(ctx context.Context, appID string, at time.Time) error
	// RecordSessionEnd closes the open session, if any, and returns the
	// seconds added to the cumulative total (0 when no session was open).
	RecordSessionEnd(ctx context.Context, appID string, at time.Time) (float64, error)
	// Get returns the record for appID; found is false when there is none.
	Get(ctx context.Context, appID string) (UsageRecord, bool, error)
	All(ctx context.Context) ([]UsageRecord, error)
	Close() error
}
