// Package queue implements the durable local change log: every offline
// mutation becomes a row here and leaves only through the dispatcher or an
// explicit operator action on the dead-letter queue.
package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Isna13/BarManagerPro-sub003/internal/db"
	apperrors "github.com/Isna13/BarManagerPro-sub003/internal/errors"
	"github.com/Isna13/BarManagerPro-sub003/internal/logging"
	"github.com/Isna13/BarManagerPro-sub003/internal/models"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/backoff"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/deps"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/idempotency"
	"github.com/Isna13/BarManagerPro-sub003/internal/uuid"
)

// depPenalty is added to an item's priority each time its remote parent is
// missing, pushing it behind every normal rank until the parent syncs.
const depPenalty = deps.MaxRank + 2

// Queue is the SQL-backed sync queue.
type Queue struct {
	db         *db.DB
	policy     backoff.Policy
	maxRetries int
}

// New creates a Queue. maxRetries is the transient-failure budget; once
// retryCount reaches it the item is quarantined.
func New(database *db.DB, policy backoff.Policy, maxRetries int) *Queue {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Queue{db: database, policy: policy, maxRetries: maxRetries}
}

// Enqueue records a mutation in its own transaction. Business writes should
// prefer EnqueueTx so the entity row and the queue row commit atomically.
func (q *Queue) Enqueue(entityType models.EntityType, entityID models.UUID, op models.Operation, payload json.RawMessage) (*models.SyncQueueItem, error) {
	var item *models.SyncQueueItem
	err := q.db.WithTx(func(tx *sql.Tx) error {
		var err error
		item, err = q.EnqueueTx(tx, entityType, entityID, op, payload)
		return err
	})
	return item, err
}

// EnqueueTx records a mutation inside the caller's transaction.
//
// Coalescing: at most one live (pending/in_flight) item exists per
// (entityType, entityID, operation). A second local edit replaces the live
// item's payload snapshot and bumps its payload version instead of creating
// a duplicate. A delete supersedes any pending create/update for the same
// entity.
func (q *Queue) EnqueueTx(tx *sql.Tx, entityType models.EntityType, entityID models.UUID, op models.Operation, payload json.RawMessage) (*models.SyncQueueItem, error) {
	if err := uuid.Validate(entityID.String()); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSyncValidation, "invalid entity id", err)
	}
	now := time.Now().Unix()

	if op == models.OperationDelete {
		// Unsent creates/updates for the entity are moot once it is deleted.
		_, err := tx.Exec(`
			DELETE FROM sync_queue
			WHERE entity_type = ? AND entity_id = ? AND status = 'pending'
			  AND operation IN ('create','update')`,
			entityType, entityID)
		if err != nil {
			return nil, fmt.Errorf("failed to supersede pending items: %w", err)
		}
	}

	// Coalesce into the live item if one exists.
	var existing models.SyncQueueItem
	var existingPayload string
	err := tx.QueryRow(`
		SELECT id, payload, payload_version, status FROM sync_queue
		WHERE entity_type = ? AND entity_id = ? AND operation = ?
		  AND status IN ('pending','in_flight')`,
		entityType, entityID, op,
	).Scan(&existing.ID, &existingPayload, &existing.PayloadVersion, &existing.Status)

	switch {
	case err == nil:
		// Two queued deltas to the same counter sum instead of the newer
		// replacing the older; everything else is snapshot-replaced.
		if merged, ok := models.MergeAdjustments(json.RawMessage(existingPayload), payload); ok {
			payload = merged
		}

		newVersion := existing.PayloadVersion + 1
		key := idempotency.Key(entityType, entityID, op, newVersion)
		_, err = tx.Exec(`
			UPDATE sync_queue
			SET payload = ?, payload_version = ?, idempotency_key = ?, updated_at = ?
			WHERE id = ?`,
			string(payload), newVersion, key, now, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to coalesce queue item: %w", err)
		}
		return q.getTx(tx, existing.ID)
	case err != sql.ErrNoRows:
		return nil, err
	}

	item := &models.SyncQueueItem{
		ID:             models.UUID(uuid.New()),
		EntityType:     entityType,
		EntityID:       entityID,
		Operation:      op,
		Payload:        payload,
		PayloadVersion: 1,
		IdempotencyKey: idempotency.Key(entityType, entityID, op, 1),
		Status:         models.QueueStatusPending,
		Priority:       deps.Rank(entityType),
		NextAttemptAt:  now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err = tx.Exec(`
		INSERT INTO sync_queue (id, entity_type, entity_id, operation, payload,
			payload_version, idempotency_key, status, priority, retry_count,
			next_attempt_at, last_attempt_at, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, 0, '', ?, ?)`,
		item.ID, item.EntityType, item.EntityID, item.Operation, string(item.Payload),
		item.PayloadVersion, item.IdempotencyKey, item.Status, item.Priority,
		item.NextAttemptAt, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue: %w", err)
	}

	return item, nil
}

// DequeueBatch atomically selects up to n dispatchable items, ordered by
// (priority, createdAt), and marks them in_flight. Two dispatcher runs can
// never double-pick the same item: the selection and the status flip share
// one transaction. If the flip fails the items stay pending.
func (q *Queue) DequeueBatch(n int) ([]*models.SyncQueueItem, error) {
	now := time.Now().Unix()
	var items []*models.SyncQueueItem

	err := q.db.WithTx(func(tx *sql.Tx) error {
		rows, err := tx.Query(`
			SELECT id, entity_type, entity_id, operation, payload, payload_version,
			       idempotency_key, status, priority, retry_count, next_attempt_at,
			       last_attempt_at, last_error, created_at, updated_at
			FROM sync_queue
			WHERE status = 'pending' AND next_attempt_at <= ?
			ORDER BY priority ASC, created_at ASC
			LIMIT ?`, now, n)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			item, err := scanItem(rows)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, item := range items {
			if _, err := tx.Exec(`
				UPDATE sync_queue SET status = 'in_flight', last_attempt_at = ?, updated_at = ?
				WHERE id = ?`, now, now, item.ID); err != nil {
				return fmt.Errorf("failed to mark in_flight: %w", err)
			}
			item.Status = models.QueueStatusInFlight
			item.LastAttemptAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// RecoverInFlight returns stranded in_flight rows to pending. A crash
// between dequeue and the terminal transition leaves the batch marked
// in_flight with no goroutine left to finish it; there is exactly one
// dispatcher per device, so at startup, before that dispatcher runs, every
// in_flight row is stale by definition. Payload snapshots and idempotency
// keys are untouched, so retransmitting a mutation the server already
// applied is deduplicated remotely.
func (q *Queue) RecoverInFlight() (int64, error) {
	res, err := q.db.Exec(`
		UPDATE sync_queue SET status = 'pending', updated_at = ?
		WHERE status = 'in_flight'`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to recover in_flight items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logging.Warn("Recovered stranded in-flight items", map[string]interface{}{"count": n})
	}
	return n, nil
}

// Complete marks a dispatched item done. payloadVersion must match the
// version that was sent: if the item was coalesced while in flight, the
// newer snapshot has not been transmitted yet, so the item returns to
// pending instead of completing.
func (q *Queue) Complete(id models.UUID, payloadVersion int) error {
	now := time.Now().Unix()
	return q.guardedTransition(id, payloadVersion, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE sync_queue SET status = 'completed', last_error = '', updated_at = ?
			WHERE id = ? AND payload_version = ?`, now, id, payloadVersion)
		return err
	})
}

// FailTransient schedules a retry with exponential backoff, or quarantines
// the item once the retry budget is exhausted. It reports whether the item
// was quarantined so the caller can count the outcome correctly.
func (q *Queue) FailTransient(id models.UUID, payloadVersion int, cause error) (bool, error) {
	now := time.Now()
	quarantined := false
	err := q.guardedTransition(id, payloadVersion, func(tx *sql.Tx) error {
		item, err := q.getTx(tx, id)
		if err != nil {
			return err
		}

		item.RetryCount++
		if item.RetryCount >= q.maxRetries {
			quarantined = true
			return q.deadLetterTx(tx, item, "retry budget exhausted", cause)
		}

		next := q.policy.NextAttempt(now, item.RetryCount).Unix()
		_, err = tx.Exec(`
			UPDATE sync_queue
			SET status = 'pending', retry_count = ?, next_attempt_at = ?, last_error = ?, updated_at = ?
			WHERE id = ? AND payload_version = ?`,
			item.RetryCount, next, cause.Error(), now.Unix(), id, payloadVersion)
		return err
	})
	return quarantined, err
}

// FailPermanent quarantines an item whose request cannot succeed by
// retrying. The retry count is forced to the budget and the item goes
// straight to the dead-letter queue under the given reason.
func (q *Queue) FailPermanent(id models.UUID, payloadVersion int, reason string, cause error) error {
	return q.guardedTransition(id, payloadVersion, func(tx *sql.Tx) error {
		item, err := q.getTx(tx, id)
		if err != nil {
			return err
		}
		item.RetryCount = q.maxRetries
		return q.deadLetterTx(tx, item, reason, cause)
	})
}

// Resend replaces an in-flight item's payload with a conflict-merged
// snapshot and returns it to pending for immediate retransmission.
func (q *Queue) Resend(id models.UUID, payloadVersion int, payload json.RawMessage) error {
	now := time.Now().Unix()
	return q.guardedTransition(id, payloadVersion, func(tx *sql.Tx) error {
		item, err := q.getTx(tx, id)
		if err != nil {
			return err
		}
		if item.PayloadVersion != payloadVersion {
			// Coalesced mid-flight; the newer local snapshot supersedes the
			// merge and the guard will return the item to pending.
			return nil
		}
		newVersion := payloadVersion + 1
		_, err = tx.Exec(`
			UPDATE sync_queue
			SET payload = ?, payload_version = ?, idempotency_key = ?,
			    status = 'pending', next_attempt_at = ?, updated_at = ?
			WHERE id = ?`,
			string(payload), newVersion,
			idempotency.Key(item.EntityType, item.EntityID, item.Operation, newVersion),
			now, now, id)
		return err
	})
}

// DependencyNotReady returns an item to pending because its remote parent
// does not exist yet. The priority penalty pushes it behind every normal
// rank so the parent gets a sync cycle first. Not counted against the
// retry budget: the request is not wrong, just early.
func (q *Queue) DependencyNotReady(id models.UUID, payloadVersion int, cause error) error {
	now := time.Now()
	return q.guardedTransition(id, payloadVersion, func(tx *sql.Tx) error {
		next := q.policy.NextAttempt(now, 0).Unix()
		_, err := tx.Exec(`
			UPDATE sync_queue
			SET status = 'pending', priority = priority + ?, next_attempt_at = ?, last_error = ?, updated_at = ?
			WHERE id = ? AND payload_version = ?`,
			depPenalty, next, cause.Error(), now.Unix(), id, payloadVersion)
		return err
	})
}

// guardedTransition applies fn, then verifies that a row actually left the
// in_flight state. When the payload version no longer matches (the item was
// coalesced mid-flight), the stale transition is discarded and the item is
// reset to pending so the newer snapshot gets sent.
func (q *Queue) guardedTransition(id models.UUID, payloadVersion int, fn func(tx *sql.Tx) error) error {
	return q.db.WithTx(func(tx *sql.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}

		var status string
		var currentVersion int
		err := tx.QueryRow("SELECT status, payload_version FROM sync_queue WHERE id = ?", id).
			Scan(&status, &currentVersion)
		if err == sql.ErrNoRows {
			return apperrors.New(apperrors.ErrQueueItemNotFound, string(id))
		}
		if err != nil {
			return err
		}

		if status == string(models.QueueStatusInFlight) && currentVersion != payloadVersion {
			now := time.Now().Unix()
			logging.Info("Queue item coalesced mid-flight, returning to pending",
				map[string]interface{}{"item_id": id, "sent_version": payloadVersion, "current_version": currentVersion})
			_, err = tx.Exec(`
				UPDATE sync_queue SET status = 'pending', next_attempt_at = ?, updated_at = ?
				WHERE id = ?`, now, now, id)
			return err
		}
		return nil
	})
}

// deadLetterTx quarantines an item: the queue row flips to dead_letter and
// a DeadLetterEntry preserves the payload and attempt history for operator
// review. Dead letters are excluded from every dispatcher query.
func (q *Queue) deadLetterTx(tx *sql.Tx, item *models.SyncQueueItem, reason string, cause error) error {
	now := time.Now().Unix()
	lastErr := ""
	if cause != nil {
		lastErr = cause.Error()
	}

	_, err := tx.Exec(`
		UPDATE sync_queue
		SET status = 'dead_letter', retry_count = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		item.RetryCount, lastErr, now, item.ID)
	if err != nil {
		return fmt.Errorf("failed to mark dead_letter: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO dead_letters (id, queue_item_id, entity_type, entity_id, operation,
			payload, payload_version, reason, last_error, attempt_count, enqueued_at, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New(), item.ID, item.EntityType, item.EntityID, item.Operation,
		string(item.Payload), item.PayloadVersion, reason, lastErr,
		item.RetryCount, item.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("failed to record dead letter: %w", err)
	}

	logging.Warn("Queue item quarantined",
		map[string]interface{}{
			"item_id":     item.ID,
			"entity_type": item.EntityType,
			"entity_id":   item.EntityID,
			"operation":   item.Operation,
			"reason":      reason,
			"attempts":    item.RetryCount,
		})
	return nil
}

// AddDeadLetter records a dead-letter entry that never was a queue item,
// e.g. a local update overwritten by a remote delete during conflict
// resolution. The mutation is preserved for manual review instead of being
// silently discarded.
func (q *Queue) AddDeadLetter(entityType models.EntityType, entityID models.UUID, op models.Operation, payload json.RawMessage, reason string) error {
	now := time.Now().Unix()
	_, err := q.db.Exec(`
		INSERT INTO dead_letters (id, queue_item_id, entity_type, entity_id, operation,
			payload, payload_version, reason, last_error, attempt_count, enqueued_at, failed_at)
		VALUES (?, '', ?, ?, ?, ?, 1, ?, '', 0, ?, ?)`,
		uuid.New(), entityType, entityID, op, string(payload), reason, now, now)
	return err
}

// ListDeadLetters returns all quarantined entries, newest first.
func (q *Queue) ListDeadLetters() ([]*models.DeadLetterEntry, error) {
	rows, err := q.db.Query(`
		SELECT id, queue_item_id, entity_type, entity_id, operation, payload,
		       payload_version, reason, last_error, attempt_count, enqueued_at, failed_at
		FROM dead_letters ORDER BY failed_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.DeadLetterEntry
	for rows.Next() {
		var e models.DeadLetterEntry
		var payload string
		if err := rows.Scan(&e.ID, &e.QueueItemID, &e.EntityType, &e.EntityID, &e.Operation,
			&payload, &e.PayloadVersion, &e.Reason, &e.LastError, &e.AttemptCount,
			&e.EnqueuedAt, &e.FailedAt); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Requeue returns a dead-letter entry to the active queue with the retry
// count reset and the original dependency rank restored. A non-nil payload
// replaces the quarantined snapshot (operator-corrected payload).
func (q *Queue) Requeue(deadLetterID models.UUID, payload json.RawMessage) (*models.SyncQueueItem, error) {
	var item *models.SyncQueueItem
	err := q.db.WithTx(func(tx *sql.Tx) error {
		var e models.DeadLetterEntry
		var dlPayload string
		err := tx.QueryRow(`
			SELECT id, queue_item_id, entity_type, entity_id, operation, payload, payload_version
			FROM dead_letters WHERE id = ?`, deadLetterID,
		).Scan(&e.ID, &e.QueueItemID, &e.EntityType, &e.EntityID, &e.Operation, &dlPayload, &e.PayloadVersion)
		if err == sql.ErrNoRows {
			return apperrors.New(apperrors.ErrNotFound, "dead letter entry not found")
		}
		if err != nil {
			return err
		}

		// A newer live item for the same mutation makes the requeue moot.
		var liveCount int
		if err := tx.QueryRow(`
			SELECT COUNT(*) FROM sync_queue
			WHERE entity_type = ? AND entity_id = ? AND operation = ?
			  AND status IN ('pending','in_flight')`,
			e.EntityType, e.EntityID, e.Operation).Scan(&liveCount); err != nil {
			return err
		}
		if liveCount > 0 {
			return apperrors.New(apperrors.ErrDuplicate,
				"a live queue item already exists for this mutation; discard the dead letter instead")
		}

		newPayload := json.RawMessage(dlPayload)
		if payload != nil {
			newPayload = payload
		}
		newVersion := e.PayloadVersion + 1

		now := time.Now().Unix()
		if e.QueueItemID != "" {
			_, err = tx.Exec(`
				UPDATE sync_queue
				SET status = 'pending', payload = ?, payload_version = ?, idempotency_key = ?,
				    priority = ?, retry_count = 0, next_attempt_at = ?, last_error = '', updated_at = ?
				WHERE id = ?`,
				string(newPayload), newVersion,
				idempotency.Key(e.EntityType, e.EntityID, e.Operation, newVersion),
				deps.Rank(e.EntityType), now, now, e.QueueItemID)
			if err != nil {
				return fmt.Errorf("failed to requeue: %w", err)
			}
			if _, err := tx.Exec("DELETE FROM dead_letters WHERE id = ?", deadLetterID); err != nil {
				return err
			}
			item, err = q.getTx(tx, e.QueueItemID)
			return err
		}

		// Entry preserved by the conflict resolver: no queue row to revive,
		// insert a fresh one.
		item = &models.SyncQueueItem{
			ID:             models.UUID(uuid.New()),
			EntityType:     e.EntityType,
			EntityID:       e.EntityID,
			Operation:      e.Operation,
			Payload:        newPayload,
			PayloadVersion: newVersion,
			IdempotencyKey: idempotency.Key(e.EntityType, e.EntityID, e.Operation, newVersion),
			Status:         models.QueueStatusPending,
			Priority:       deps.Rank(e.EntityType),
			NextAttemptAt:  now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		_, err = tx.Exec(`
			INSERT INTO sync_queue (id, entity_type, entity_id, operation, payload,
				payload_version, idempotency_key, status, priority, retry_count,
				next_attempt_at, last_attempt_at, last_error, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, 0, '', ?, ?)`,
			item.ID, item.EntityType, item.EntityID, item.Operation, string(item.Payload),
			item.PayloadVersion, item.IdempotencyKey, item.Status, item.Priority,
			item.NextAttemptAt, item.CreatedAt, item.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to requeue: %w", err)
		}
		_, err = tx.Exec("DELETE FROM dead_letters WHERE id = ?", deadLetterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Discard drops a dead-letter entry and its quarantined queue row for good.
// Remote changes that were deferred behind the quarantined item are not
// re-fetched; the local replica catches up on the entity's next remote
// mutation.
func (q *Queue) Discard(deadLetterID models.UUID) error {
	return q.db.WithTx(func(tx *sql.Tx) error {
		var queueItemID string
		err := tx.QueryRow("SELECT queue_item_id FROM dead_letters WHERE id = ?", deadLetterID).
			Scan(&queueItemID)
		if err == sql.ErrNoRows {
			return apperrors.New(apperrors.ErrNotFound, "dead letter entry not found")
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec("DELETE FROM dead_letters WHERE id = ?", deadLetterID); err != nil {
			return err
		}
		if queueItemID != "" {
			if _, err := tx.Exec("DELETE FROM sync_queue WHERE id = ? AND status = 'dead_letter'", queueItemID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Status returns the live queue items for an entity, for UI sync
// indicators.
func (q *Queue) Status(entityID models.UUID) ([]*models.SyncQueueItem, error) {
	rows, err := q.db.Query(`
		SELECT id, entity_type, entity_id, operation, payload, payload_version,
		       idempotency_key, status, priority, retry_count, next_attempt_at,
		       last_attempt_at, last_error, created_at, updated_at
		FROM sync_queue
		WHERE entity_id = ? AND status IN ('pending','in_flight')
		ORDER BY created_at ASC`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.SyncQueueItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// HasLive reports whether any pending/in_flight item exists for the entity.
// The pull reconciler uses it to defer remote values behind local work.
func (q *Queue) HasLive(entityType models.EntityType, entityID models.UUID) (bool, error) {
	var count int
	err := q.db.QueryRow(`
		SELECT COUNT(*) FROM sync_queue
		WHERE entity_type = ? AND entity_id = ? AND status IN ('pending','in_flight')`,
		entityType, entityID).Scan(&count)
	return count > 0, err
}

// PendingCount returns the number of items the dispatcher still has to send.
func (q *Queue) PendingCount() (int, error) {
	var count int
	err := q.db.QueryRow(
		"SELECT COUNT(*) FROM sync_queue WHERE status IN ('pending','in_flight')").Scan(&count)
	return count, err
}

// Stats returns per-status item counts.
func (q *Queue) Stats() (map[string]int, error) {
	rows, err := q.db.Query("SELECT status, COUNT(*) FROM sync_queue GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		"pending":     0,
		"in_flight":   0,
		"completed":   0,
		"failed":      0,
		"dead_letter": 0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// PurgeCompleted removes completed items older than the grace window.
func (q *Queue) PurgeCompleted(grace time.Duration) (int64, error) {
	cutoff := time.Now().Add(-grace).Unix()
	res, err := q.db.Exec(
		"DELETE FROM sync_queue WHERE status = 'completed' AND updated_at <= ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Get returns a queue item by id.
func (q *Queue) Get(id models.UUID) (*models.SyncQueueItem, error) {
	var item *models.SyncQueueItem
	err := q.db.WithTx(func(tx *sql.Tx) error {
		var err error
		item, err = q.getTx(tx, id)
		return err
	})
	return item, err
}

func (q *Queue) getTx(tx *sql.Tx, id models.UUID) (*models.SyncQueueItem, error) {
	row := tx.QueryRow(`
		SELECT id, entity_type, entity_id, operation, payload, payload_version,
		       idempotency_key, status, priority, retry_count, next_attempt_at,
		       last_attempt_at, last_error, created_at, updated_at
		FROM sync_queue WHERE id = ?`, id)

	var item models.SyncQueueItem
	var payload string
	err := row.Scan(&item.ID, &item.EntityType, &item.EntityID, &item.Operation,
		&payload, &item.PayloadVersion, &item.IdempotencyKey, &item.Status,
		&item.Priority, &item.RetryCount, &item.NextAttemptAt, &item.LastAttemptAt,
		&item.LastError, &item.CreatedAt, &item.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.ErrQueueItemNotFound, string(id))
	}
	if err != nil {
		return nil, err
	}
	item.Payload = json.RawMessage(payload)
	return &item, nil
}

func scanItem(rows *sql.Rows) (*models.SyncQueueItem, error) {
	var item models.SyncQueueItem
	var payload string
	err := rows.Scan(&item.ID, &item.EntityType, &item.EntityID, &item.Operation,
		&payload, &item.PayloadVersion, &item.IdempotencyKey, &item.Status,
		&item.Priority, &item.RetryCount, &item.NextAttemptAt, &item.LastAttemptAt,
		&item.LastError, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	item.Payload = json.RawMessage(payload)
	return &item, nil
}
