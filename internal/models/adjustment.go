// Package models provides data model definitions for BarManager Pro sync.
package models

import "encoding/json"

// Adjustment is a relative mutation to a counter field. Quantities and
// balances are never transmitted as absolute values: concurrent deltas
// from two devices commute, so no arrival order can lose an update.
type Adjustment struct {
	Field string `json:"field"`
	Delta int64  `json:"delta"`
}

// adjustmentEnvelope is the payload shape carrying an adjustment.
type adjustmentEnvelope struct {
	Adjustment *Adjustment `json:"adjustment"`
}

// ParseAdjustment extracts an adjustment from a payload snapshot, if the
// payload is one.
func ParseAdjustment(payload json.RawMessage) (*Adjustment, bool) {
	var env adjustmentEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, false
	}
	if env.Adjustment == nil || env.Adjustment.Field == "" {
		return nil, false
	}
	return env.Adjustment, true
}

// AdjustmentPayload builds the payload snapshot for a delta mutation.
func AdjustmentPayload(field string, delta int64) json.RawMessage {
	b, _ := json.Marshal(adjustmentEnvelope{Adjustment: &Adjustment{Field: field, Delta: delta}})
	return b
}

// MergeAdjustments combines two payloads when both are adjustments to the
// same field, summing their deltas. Returns false when the payloads are not
// mergeable and the newer one should simply replace the older.
func MergeAdjustments(older, newer json.RawMessage) (json.RawMessage, bool) {
	a, ok := ParseAdjustment(older)
	if !ok {
		return nil, false
	}
	b, ok := ParseAdjustment(newer)
	if !ok || a.Field != b.Field {
		return nil, false
	}
	return AdjustmentPayload(a.Field, a.Delta+b.Delta), true
}
