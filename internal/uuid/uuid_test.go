package uuid

import "testing"

func TestNewProducesValidIdentifiers(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if !IsValid(id) {
			t.Fatalf("New() produced an invalid identifier: %s", id)
		}
		if seen[id] {
			t.Fatalf("New() produced a duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"canonical v4", "f47ac10b-58cc-4372-a567-0e02b2c3d479", true},
		{"all zero digits", "00000000-0000-4000-8000-000000000000", true},
		{"uppercase hex", "6BA7B810-9DAD-41D1-80B4-00C04FD430C8", true},
		{"empty", "", false},
		{"truncated", "f47ac10b-58cc-4372-a567", false},
		{"trailing garbage", "f47ac10b-58cc-4372-a567-0e02b2c3d479-x", false},
		{"no dashes", "f47ac10b58cc4372a5670e02b2c3d479", false},
		{"version 1", "f47ac10b-58cc-1372-a567-0e02b2c3d479", false},
		{"bad variant", "f47ac10b-58cc-4372-c567-0e02b2c3d479", false},
		{"non-hex digit", "g47ac10b-58cc-4372-a567-0e02b2c3d479", false},
		{"not an identifier", "till-03", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.in); got != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("f47ac10b-58cc-4372-a567-0e02b2c3d479"); err != nil {
		t.Errorf("Validate rejected a canonical identifier: %v", err)
	}
	if err := Validate("not-a-uuid"); err == nil {
		t.Error("Validate accepted a malformed identifier")
	}
}

func BenchmarkIsValid(b *testing.B) {
	id := "f47ac10b-58cc-4372-a567-0e02b2c3d479"
	for i := 0; i < b.N; i++ {
		IsValid(id)
	}
}
