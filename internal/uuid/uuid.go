// Package uuid generates and validates the version 4 identifiers used for
// entities, queue items and dead letters. Identifiers are minted locally on
// the terminal, so collision resistance is what makes offline creation safe.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a fresh random identifier in canonical dashed form.
func New() string {
	return uuid.New().String()
}

// IsValid reports whether s is a canonical version 4 identifier. The check
// is structural: 36 characters, dashes in the standard positions, hex
// digits elsewhere, version nibble 4 and an RFC 4122 variant nibble.
func IsValid(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i := 0; i < 36; i++ {
		c := s[i]
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		case 14:
			if c != '4' {
				return false
			}
		case 19:
			switch c {
			case '8', '9', 'a', 'b', 'A', 'B':
			default:
				return false
			}
		default:
			if !isHex(c) {
				return false
			}
		}
	}
	return true
}

// Validate returns an error describing why s is not a valid identifier,
// or nil when it is.
func Validate(s string) error {
	if !IsValid(s) {
		return fmt.Errorf("invalid UUID v4 format: %q", s)
	}
	return nil
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
