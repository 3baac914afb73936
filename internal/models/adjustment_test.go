package models

import (
	"encoding/json"
	"testing"
)

func TestParseAdjustment(t *testing.T) {
	adj, ok := ParseAdjustment(AdjustmentPayload("quantity", -10))
	if !ok {
		t.Fatal("expected payload to parse as adjustment")
	}
	if adj.Field != "quantity" || adj.Delta != -10 {
		t.Errorf("got %+v, want quantity/-10", adj)
	}
}

func TestParseAdjustmentRejectsPlainSnapshots(t *testing.T) {
	cases := []string{
		`{"price":100}`,
		`{"adjustment":null}`,
		`{"adjustment":{"delta":5}}`,
		`not json`,
		``,
	}
	for _, c := range cases {
		if _, ok := ParseAdjustment(json.RawMessage(c)); ok {
			t.Errorf("payload %q parsed as adjustment", c)
		}
	}
}

func TestMergeAdjustmentsSumsDeltas(t *testing.T) {
	merged, ok := MergeAdjustments(AdjustmentPayload("quantity", 50), AdjustmentPayload("quantity", -10))
	if !ok {
		t.Fatal("expected adjustments to merge")
	}
	adj, ok := ParseAdjustment(merged)
	if !ok || adj.Delta != 40 {
		t.Errorf("merged delta = %+v, want 40", adj)
	}
}

func TestMergeAdjustmentsDifferentFields(t *testing.T) {
	if _, ok := MergeAdjustments(AdjustmentPayload("quantity", 5), AdjustmentPayload("balance", 5)); ok {
		t.Error("adjustments to different fields must not merge")
	}
	if _, ok := MergeAdjustments(json.RawMessage(`{"price":1}`), AdjustmentPayload("quantity", 5)); ok {
		t.Error("a snapshot and an adjustment must not merge")
	}
}
