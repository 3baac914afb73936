package idempotency

import (
	"context"
	"database/sql"
	"time"

	"github.com/Isna13/BarManagerPro-sub003/internal/logging"
	"github.com/Isna13/BarManagerPro-sub003/internal/models"
)

// Store persists idempotency records. It is process-scoped state with an
// explicit lifecycle: populated on first application of a key, swept on
// TTL, empty after a restart against a fresh database.
type Store struct {
	db  *sql.DB
	ttl time.Duration
}

// NewStore creates a Store with the given record TTL.
func NewStore(db *sql.DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{db: db, ttl: ttl}
}

// Lookup returns the cached record for key, or nil when absent or expired.
func (s *Store) Lookup(key string) (*models.IdempotencyRecord, error) {
	var rec models.IdempotencyRecord
	err := s.db.QueryRow(
		"SELECT key, status_code, body, created_at, expires_at FROM idempotency_records WHERE key = ?",
		key,
	).Scan(&rec.Key, &rec.StatusCode, &rec.Body, &rec.CreatedAt, &rec.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Expired(time.Now()) {
		return nil, nil
	}
	return &rec, nil
}

// Reserve claims key before the mutation runs. Exactly one of any set of
// concurrent callers wins the claim; the losers get back the finished
// record when one exists, or nil while the winner is still executing. An
// expired row is taken over as a fresh claim.
func (s *Store) Reserve(key string) (bool, *models.IdempotencyRecord, error) {
	now := time.Now()
	res, err := s.db.Exec(`
		INSERT INTO idempotency_records (key, status_code, body, created_at, expires_at)
		VALUES (?, 0, x'', ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			status_code = 0, body = x'',
			created_at = excluded.created_at, expires_at = excluded.expires_at
		WHERE idempotency_records.expires_at <= ?`,
		key, now.Unix(), now.Add(s.ttl).Unix(), now.Unix())
	if err != nil {
		return false, nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, nil, err
	}
	if n > 0 {
		return true, nil, nil
	}

	rec, err := s.Lookup(key)
	if err != nil {
		return false, nil, err
	}
	if rec != nil && rec.StatusCode == 0 {
		// Claimed but not yet recorded.
		rec = nil
	}
	return false, rec, nil
}

// Record stores the response produced for key, filling the claim made by
// Reserve. The first recorded response wins; replaying a key that already
// has one keeps the original.
func (s *Store) Record(key string, statusCode int, body []byte) error {
	now := time.Now()
	_, err := s.db.Exec(`
		INSERT INTO idempotency_records (key, status_code, body, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			status_code = excluded.status_code, body = excluded.body
		WHERE idempotency_records.status_code = 0`,
		key, statusCode, body, now.Unix(), now.Add(s.ttl).Unix())
	return err
}

// Sweep deletes expired records and returns how many were removed.
func (s *Store) Sweep() (int64, error) {
	res, err := s.db.Exec("DELETE FROM idempotency_records WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// StartSweeper runs Sweep at the given interval until ctx is cancelled.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Sweep()
			if err != nil {
				logging.Error("Idempotency sweep failed", err, nil)
				continue
			}
			if removed > 0 {
				logging.Debug("Swept expired idempotency records",
					map[string]interface{}{"removed": removed})
			}
		}
	}
}
