// Package models provides data model definitions for BarManager Pro sync.
package models

import "time"

// IdempotencyRecord caches the first response produced for a mutating
// request so replays return the identical result without reapplying the
// mutation. Records expire after a fixed TTL and are swept periodically.
type IdempotencyRecord struct {
	Key        string `db:"key" json:"key"`
	StatusCode int    `db:"status_code" json:"status_code"`
	Body       []byte `db:"body" json:"body"`
	CreatedAt  int64  `db:"created_at" json:"created_at"`
	ExpiresAt  int64  `db:"expires_at" json:"expires_at"`
}

// TableName returns the table name for IdempotencyRecord.
func (IdempotencyRecord) TableName() string {
	return "idempotency_records"
}

// Expired reports whether the record should no longer be replayed.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return now.Unix() >= r.ExpiresAt
}
