// Package conflict merges divergent local and remote entity state when the
// central store rejects a write as stale.
package conflict

import (
	"encoding/json"

	"github.com/Isna13/BarManagerPro-sub003/internal/logging"
	"github.com/Isna13/BarManagerPro-sub003/internal/models"
)

// Action tells the dispatcher what to do with the conflicted queue item.
type Action int

const (
	// ActionResend transmits the merged payload in place of the stale one.
	ActionResend Action = iota

	// ActionComplete marks the item done without resending; the remote
	// state already covers it (e.g. deleting an already-deleted row).
	ActionComplete

	// ActionDropPreserve abandons the local mutation because the remote
	// delete wins, preserving the would-be write as a dead-letter entry
	// for manual review.
	ActionDropPreserve
)

// Resolution is the outcome of resolving one conflict.
type Resolution struct {
	Action        Action
	MergedPayload json.RawMessage
	Reason        string
}

// Resolver implements the per-field merge strategies. It is stateless.
type Resolver struct{}

// NewResolver creates a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve merges a rejected local mutation against the remote state the
// server returned.
//
// Strategies:
//   - delete vs update: delete wins deterministically, whichever side it
//     came from; an overwritten local update is preserved, never dropped.
//   - scalar fields: last-writer-wins per field by timestamp.
//   - counters are deltas and never reach here; they commute server-side.
func (r *Resolver) Resolve(item *models.SyncQueueItem, remote *models.Entity) *Resolution {
	if remote == nil {
		// Server reported a conflict without state to merge against; assert
		// the local snapshot once more and let the next response decide.
		logging.Warn("Conflict without remote state, resending local snapshot",
			map[string]interface{}{
				"entity_type": item.EntityType,
				"entity_id":   item.EntityID,
			})
		return &Resolution{Action: ActionResend, MergedPayload: item.Payload, Reason: "no remote state"}
	}

	if !remote.IsActive {
		// Remote delete wins over any local mutation.
		if item.Operation == models.OperationDelete {
			return &Resolution{Action: ActionComplete, Reason: "already deleted remotely"}
		}
		logging.Warn("Remote delete wins over local mutation, preserving for review",
			map[string]interface{}{
				"entity_type": item.EntityType,
				"entity_id":   item.EntityID,
				"operation":   item.Operation,
			})
		return &Resolution{Action: ActionDropPreserve, Reason: "conflict: remote delete wins"}
	}

	if item.Operation == models.OperationDelete {
		// Local delete wins over the remote update; resend it.
		return &Resolution{Action: ActionResend, MergedPayload: item.Payload, Reason: "local delete wins"}
	}

	merged := mergeLastWriterWins(item, remote)
	logging.Info("Conflict resolved by last-writer-wins merge",
		map[string]interface{}{
			"entity_type":      item.EntityType,
			"entity_id":        item.EntityID,
			"local_timestamp":  item.UpdatedAt,
			"remote_timestamp": remote.UpdatedAt,
		})
	return &Resolution{Action: ActionResend, MergedPayload: merged, Reason: "last-writer-wins"}
}

// mergeLastWriterWins merges field-by-field: the side with the newer
// timestamp contributes its value for every field both sides carry; fields
// only one side knows are kept. Falls back to whole-document LWW when a
// payload is not a JSON object.
func mergeLastWriterWins(item *models.SyncQueueItem, remote *models.Entity) json.RawMessage {
	var local, remoteDoc map[string]json.RawMessage
	if err := json.Unmarshal(item.Payload, &local); err != nil {
		if remote.UpdatedAt > item.UpdatedAt {
			return remote.Payload
		}
		return item.Payload
	}
	if err := json.Unmarshal(remote.Payload, &remoteDoc); err != nil {
		return item.Payload
	}

	localWins := item.UpdatedAt >= remote.UpdatedAt

	merged := make(map[string]json.RawMessage, len(remoteDoc)+len(local))
	for k, v := range remoteDoc {
		merged[k] = v
	}
	for k, v := range local {
		if _, both := remoteDoc[k]; !both || localWins {
			merged[k] = v
		}
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return item.Payload
	}
	return out
}
