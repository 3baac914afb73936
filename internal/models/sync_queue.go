// Package models provides data model definitions for BarManager Pro sync.
package models

import (
	"encoding/json"
	"time"
)

// QueueStatus is the lifecycle state of a queued mutation.
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusInFlight   QueueStatus = "in_flight"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
	QueueStatusDeadLetter QueueStatus = "dead_letter"
)

// SyncQueueItem is one pending mutation awaiting transmission to the
// central store. The payload is an immutable snapshot captured at enqueue
// time; it is never re-read from the entity row afterwards.
type SyncQueueItem struct {
	ID             UUID            `db:"id" json:"id"`
	EntityType     EntityType      `db:"entity_type" json:"entity_type"`
	EntityID       UUID            `db:"entity_id" json:"entity_id"`
	Operation      Operation       `db:"operation" json:"operation"`
	Payload        json.RawMessage `db:"payload" json:"payload"`
	PayloadVersion int             `db:"payload_version" json:"payload_version"`
	IdempotencyKey string          `db:"idempotency_key" json:"idempotency_key"`
	Status         QueueStatus     `db:"status" json:"status"`
	Priority       int             `db:"priority" json:"priority"`
	RetryCount     int             `db:"retry_count" json:"retry_count"`
	NextAttemptAt  int64           `db:"next_attempt_at" json:"next_attempt_at"`
	LastAttemptAt  int64           `db:"last_attempt_at" json:"last_attempt_at"`
	LastError      string          `db:"last_error" json:"last_error"`
	CreatedAt      int64           `db:"created_at" json:"created_at"`
	UpdatedAt      int64           `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for SyncQueueItem.
func (SyncQueueItem) TableName() string {
	return "sync_queue"
}

// CreatedAtTime returns CreatedAt as time.Time.
func (i *SyncQueueItem) CreatedAtTime() time.Time {
	return time.Unix(i.CreatedAt, 0)
}

// Terminal reports whether the item has reached a state the dispatcher
// will never pick up again.
func (i *SyncQueueItem) Terminal() bool {
	return i.Status == QueueStatusCompleted || i.Status == QueueStatusDeadLetter
}
