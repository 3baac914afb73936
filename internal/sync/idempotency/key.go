// Package idempotency guards mutating sync requests against double
// application. The client derives a deterministic key per payload snapshot;
// the server caches the first response under that key and replays it
// verbatim for the lifetime of the record.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/Isna13/BarManagerPro-sub003/internal/models"
)

// Header is the HTTP header carrying the idempotency key.
const Header = "Idempotency-Key"

// Key derives the deterministic idempotency key for one mutation snapshot.
// The payload version participates so a coalesced edit (new snapshot, same
// entity and operation) gets a fresh key, while a pure retry reuses the old
// one.
func Key(entityType models.EntityType, entityID models.UUID, op models.Operation, payloadVersion int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", entityType, entityID, op, payloadVersion)))
	return hex.EncodeToString(sum[:])
}
