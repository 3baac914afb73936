// Package db provides the local entity repository used by the sync engine.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Isna13/BarManagerPro-sub003/internal/models"
)

// Repository provides storage operations for local entity rows. The sync
// engine treats payloads as opaque JSON; domain handlers own their shape.
type Repository struct {
	db *sql.DB

	// Prepared statement cache for frequently used queries.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// PrepareStmt gets or creates a prepared statement from the cache.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

// Close closes all cached prepared statements.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		if err := value.(*sql.Stmt).Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// SaveTx inserts or replaces an entity row inside the caller's transaction.
// A new row gets version 1; an existing row's version is incremented. The
// caller enqueues the matching sync item in the same transaction.
func (r *Repository) SaveTx(tx *sql.Tx, entityType models.EntityType, id models.UUID, payload json.RawMessage) (*models.Entity, error) {
	now := time.Now().Unix()

	var version int64
	err := tx.QueryRow(
		"SELECT version FROM entities WHERE entity_type = ? AND id = ?",
		entityType, id,
	).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		version = 1
		_, err = tx.Exec(`
			INSERT INTO entities (entity_type, id, payload, version, updated_at, is_active)
			VALUES (?, ?, ?, ?, ?, 1)`,
			entityType, id, string(payload), version, now)
	case err == nil:
		version++
		_, err = tx.Exec(`
			UPDATE entities SET payload = ?, version = ?, updated_at = ?, is_active = 1
			WHERE entity_type = ? AND id = ?`,
			string(payload), version, now, entityType, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save entity: %w", err)
	}

	return &models.Entity{
		EntityType: entityType,
		ID:         id,
		Payload:    payload,
		Version:    version,
		UpdatedAt:  now,
		IsActive:   true,
	}, nil
}

// SoftDeleteTx marks an entity inactive inside the caller's transaction.
// Rows are never physically removed; list operations hide them by default.
func (r *Repository) SoftDeleteTx(tx *sql.Tx, entityType models.EntityType, id models.UUID) error {
	now := time.Now().Unix()
	res, err := tx.Exec(`
		UPDATE entities SET is_active = 0, version = version + 1, updated_at = ?
		WHERE entity_type = ? AND id = ?`,
		now, entityType, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete entity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Get retrieves an entity row by type and id, including inactive rows.
func (r *Repository) Get(entityType models.EntityType, id models.UUID) (*models.Entity, error) {
	query := `
	SELECT entity_type, id, payload, version, updated_at, is_active
	FROM entities WHERE entity_type = ? AND id = ?`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}
	return scanEntity(stmt.QueryRow(entityType, id))
}

// List returns entities of one type. Soft-deleted rows are excluded unless
// includeInactive is set.
func (r *Repository) List(entityType models.EntityType, includeInactive bool) ([]*models.Entity, error) {
	query := `
	SELECT entity_type, id, payload, version, updated_at, is_active
	FROM entities WHERE entity_type = ?`
	if !includeInactive {
		query += " AND is_active = 1"
	}
	query += " ORDER BY updated_at DESC"

	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(entityType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []*models.Entity
	for rows.Next() {
		e, err := scanEntityRows(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// ApplyRemoteTx merges a pulled remote row into local storage. The write
// only happens when the remote version is newer than the local one, so
// re-applying the same batch after a crash is a no-op.
func (r *Repository) ApplyRemoteTx(tx *sql.Tx, remote *models.Entity) (bool, error) {
	var localVersion int64
	err := tx.QueryRow(
		"SELECT version FROM entities WHERE entity_type = ? AND id = ?",
		remote.EntityType, remote.ID,
	).Scan(&localVersion)

	active := 0
	if remote.IsActive {
		active = 1
	}

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.Exec(`
			INSERT INTO entities (entity_type, id, payload, version, updated_at, is_active)
			VALUES (?, ?, ?, ?, ?, ?)`,
			remote.EntityType, remote.ID, string(remote.Payload),
			remote.Version, remote.UpdatedAt, active)
		if err != nil {
			return false, fmt.Errorf("failed to insert remote entity: %w", err)
		}
		return true, nil
	case err != nil:
		return false, err
	}

	if remote.Version <= localVersion {
		return false, nil
	}

	_, err = tx.Exec(`
		UPDATE entities SET payload = ?, version = ?, updated_at = ?, is_active = ?
		WHERE entity_type = ? AND id = ?`,
		string(remote.Payload), remote.Version, remote.UpdatedAt, active,
		remote.EntityType, remote.ID)
	if err != nil {
		return false, fmt.Errorf("failed to update from remote entity: %w", err)
	}
	return true, nil
}

func scanEntity(row *sql.Row) (*models.Entity, error) {
	var e models.Entity
	var payload string
	if err := row.Scan(&e.EntityType, &e.ID, &payload, &e.Version, &e.UpdatedAt, &e.IsActive); err != nil {
		return nil, err
	}
	e.Payload = json.RawMessage(payload)
	return &e, nil
}

func scanEntityRows(rows *sql.Rows) (*models.Entity, error) {
	var e models.Entity
	var payload string
	if err := rows.Scan(&e.EntityType, &e.ID, &payload, &e.Version, &e.UpdatedAt, &e.IsActive); err != nil {
		return nil, err
	}
	e.Payload = json.RawMessage(payload)
	return &e, nil
}
