package history

import (
	"context"
	"time"
)

// EventType defines the kind of usage event.
type EventType string

const (
	EventLaunch EventType = "launch"
	EventClose  EventType = "close"
)

// Event represents a usage event to be exported to external systems.
// SessionSeconds is non-zero only for close events that ended a tracked
// session.
type Event struct {
	Type           EventType `json:"type"`
	OccurredAt     time.Time `json:"occurred_at"`
	AppID          string    `json:"app_id"`
	PID            int       `json:"pid"`
	SessionSeconds float64   `json:"session_seconds"`
}

// Sink is a destination for usage events (analytics/statistics systems).
// Implementations must be safe for concurrent use. Send failures are the
// sink's caller's problem to log; they never block lifecycle operations.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
