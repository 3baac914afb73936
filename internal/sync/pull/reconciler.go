// Package pull merges remote changes into the local store. The reconciler
// pages through the changes-since feed, applies each batch in one local
// transaction, and advances the stored cursor inside that same transaction
// so a crash can only re-deliver a batch, never skip one.
package pull

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/Isna13/BarManagerPro-sub003/internal/api"
	"github.com/Isna13/BarManagerPro-sub003/internal/db"
	apperrors "github.com/Isna13/BarManagerPro-sub003/internal/errors"
	"github.com/Isna13/BarManagerPro-sub003/internal/logging"
	"github.com/Isna13/BarManagerPro-sub003/internal/models"
	"github.com/Isna13/BarManagerPro-sub003/internal/telemetry"
)

// State reports what the reconciler is doing.
type State int32

const (
	StateIdle State = iota
	StatePulling
	StateMerging
)

func (s State) String() string {
	switch s {
	case StatePulling:
		return "pulling"
	case StateMerging:
		return "merging"
	default:
		return "idle"
	}
}

// Reconciler pulls the downstream feed and folds it into local state.
type Reconciler struct {
	db       *db.DB
	repo     *db.Repository
	remote   api.Remote
	deviceID string
	pageSize int

	state atomic.Int32
}

// New creates a Reconciler for one device's cursor.
func New(database *db.DB, repo *db.Repository, remote api.Remote, deviceID string, pageSize int) *Reconciler {
	if pageSize < 1 {
		pageSize = 100
	}
	return &Reconciler{
		db:       database,
		repo:     repo,
		remote:   remote,
		deviceID: deviceID,
		pageSize: pageSize,
	}
}

// State returns the current reconciler phase. Callers poll this for
// status display; the reconciler itself is not reentrant.
func (r *Reconciler) State() State {
	return State(r.state.Load())
}

// Result summarizes one Pull call.
type Result struct {
	Pages    int
	Applied  int
	Skipped  int // stale versions
	Deferred int // local queue item still live for the entity
}

// Pull pages through remote changes until the feed is drained or the
// context is cancelled. Each page is merged and its cursor persisted
// atomically before the next page is requested.
func (r *Reconciler) Pull(ctx context.Context) (*Result, error) {
	res := &Result{}
	defer r.state.Store(int32(StateIdle))

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		r.state.Store(int32(StatePulling))
		cursor, err := r.Cursor()
		if err != nil {
			return res, err
		}

		page, err := r.remote.Changes(ctx, cursor, r.pageSize)
		if err != nil {
			return res, err
		}
		if len(page.Changes) == 0 && !page.HasMore {
			return res, nil
		}

		r.state.Store(int32(StateMerging))
		if err := r.mergePage(page, res); err != nil {
			return res, err
		}
		res.Pages++
		telemetry.Get().Pulled(len(page.Changes))

		if !page.HasMore {
			return res, nil
		}
	}
}

// mergePage applies one page and advances the cursor in a single
// transaction.
func (r *Reconciler) mergePage(page *api.ChangesPage, res *Result) error {
	return r.db.WithTx(func(tx *sql.Tx) error {
		for _, change := range page.Changes {
			applied, err := r.applyChange(tx, change)
			if err != nil {
				return err
			}
			switch applied {
			case outcomeApplied:
				res.Applied++
			case outcomeSkipped:
				res.Skipped++
			case outcomeDeferred:
				res.Deferred++
			}
		}
		return r.saveCursorTx(tx, page.NextCursor)
	})
}

type outcome int

const (
	outcomeApplied outcome = iota
	outcomeSkipped
	outcomeDeferred
)

// applyChange merges one remote change. An entity with a live local queue
// item is deferred: the local mutation has not been pushed yet, and
// merging the remote row now would race the conflict path. The cursor
// still advances; the deferred entity converges when the push completes
// and the next pull re-delivers or the conflict resolver merges. If the
// blocking item dead-letters instead of completing, the local replica
// keeps its stale row until the entity's next remote mutation.
func (r *Reconciler) applyChange(tx *sql.Tx, change api.Change) (outcome, error) {
	live, err := r.hasLiveTx(tx, change.EntityType, change.EntityID)
	if err != nil {
		return outcomeSkipped, err
	}
	if live {
		logging.Debug("Deferring remote change behind pending local mutation",
			map[string]interface{}{
				"entity_type": change.EntityType,
				"entity_id":   change.EntityID,
			})
		return outcomeDeferred, nil
	}

	remote := &models.Entity{
		EntityType: change.EntityType,
		ID:         change.EntityID,
		Payload:    change.Payload,
		Version:    change.Version,
		UpdatedAt:  change.UpdatedAt,
		IsActive:   !change.Deleted,
	}
	applied, err := r.repo.ApplyRemoteTx(tx, remote)
	if err != nil {
		return outcomeSkipped, err
	}
	if !applied {
		return outcomeSkipped, nil
	}
	return outcomeApplied, nil
}

// hasLiveTx checks for a pending or in_flight queue item inside the merge
// transaction, so the decision and the merge see the same queue state.
func (r *Reconciler) hasLiveTx(tx *sql.Tx, entityType models.EntityType, entityID models.UUID) (bool, error) {
	var n int
	err := tx.QueryRow(
		`SELECT COUNT(*) FROM sync_queue
		 WHERE entity_type = ? AND entity_id = ? AND status IN ('pending', 'in_flight')`,
		entityType, entityID,
	).Scan(&n)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrDatabase, "failed to check live queue items", err)
	}
	return n > 0, nil
}

// Cursor returns the stored cursor token for this device, empty when the
// device has never pulled.
func (r *Reconciler) Cursor() (string, error) {
	c, err := r.CursorInfo()
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", nil
	}
	return c.Token, nil
}

// CursorInfo returns the full cursor row, nil when the device has never
// pulled.
func (r *Reconciler) CursorInfo() (*models.SyncCursor, error) {
	c := &models.SyncCursor{DeviceID: r.deviceID}
	err := r.db.QueryRow(
		`SELECT token, updated_at FROM sync_cursor WHERE device_id = ?`, r.deviceID,
	).Scan(&c.Token, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read sync cursor", err)
	}
	return c, nil
}

func (r *Reconciler) saveCursorTx(tx *sql.Tx, token string) error {
	_, err := tx.Exec(
		`INSERT INTO sync_cursor (device_id, token, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(device_id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		r.deviceID, token, time.Now().Unix(),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to advance sync cursor", err)
	}
	return nil
}
