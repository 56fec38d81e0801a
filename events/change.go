// Package events delivers row-change notifications keyed by table name.
// Dashboard views subscribe per collection and re-fetch the whole collection
// on any change; the event payload carries no diff and consumers must not
// infer one.
package events

import (
	"context"
	"time"
)

// Change actions
const (
	ActionInsert = "insert"
	ActionUpdate = "update"
)

// Stream and consumer-group names for the Redis-backed feed
const (
	StreamName   = "table-changes"
	GroupName    = "dashboard-feeds"
	BlockTimeout = 5 * time.Second

	// ClaimMinIdle is how long a delivered-but-unacknowledged message may sit
	// in the pending-entries list before any consumer may claim and redeliver
	// it
	ClaimMinIdle = 1 * time.Minute
)

// Change is a single row-change notification
type Change struct {
	Table      string    `json:"table"`
	RecordID   string    `json:"recordId"`
	Action     string    `json:"action"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers change notifications to the feed. Publish failures must
// never fail the originating write; callers log and move on.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
	Close() error
}
