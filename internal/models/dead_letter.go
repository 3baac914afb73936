// Package models provides data model definitions for BarManager Pro sync.
package models

import (
	"encoding/json"
	"time"
)

// DeadLetterEntry is a queue item quarantined after exhausting its retry
// budget or failing permanently. It keeps the full attempt history and is
// never picked up automatically; an operator must requeue or discard it.
type DeadLetterEntry struct {
	ID             UUID            `db:"id" json:"id"`
	QueueItemID    UUID            `db:"queue_item_id" json:"queue_item_id"`
	EntityType     EntityType      `db:"entity_type" json:"entity_type"`
	EntityID       UUID            `db:"entity_id" json:"entity_id"`
	Operation      Operation       `db:"operation" json:"operation"`
	Payload        json.RawMessage `db:"payload" json:"payload"`
	PayloadVersion int             `db:"payload_version" json:"payload_version"`
	Reason         string          `db:"reason" json:"reason"`
	LastError      string          `db:"last_error" json:"last_error"`
	AttemptCount   int             `db:"attempt_count" json:"attempt_count"`
	EnqueuedAt     int64           `db:"enqueued_at" json:"enqueued_at"`
	FailedAt       int64           `db:"failed_at" json:"failed_at"`
}

// TableName returns the table name for DeadLetterEntry.
func (DeadLetterEntry) TableName() string {
	return "dead_letters"
}

// FailedAtTime returns FailedAt as time.Time.
func (d *DeadLetterEntry) FailedAtTime() time.Time {
	return time.Unix(d.FailedAt, 0)
}
