// Package models provides data model definitions for BarManager Pro sync.
package models

// SyncCursor is the per-device watermark for downstream sync. Token is an
// opaque server-issued value; the client stores and echoes it but never
// interprets it. It advances only after a pulled batch commits locally.
type SyncCursor struct {
	DeviceID  string `db:"device_id" json:"device_id"`
	Token     string `db:"token" json:"token"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for SyncCursor.
func (SyncCursor) TableName() string {
	return "sync_cursor"
}
