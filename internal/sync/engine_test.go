package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	stdsync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Isna13/BarManagerPro-sub003/internal/api"
	"github.com/Isna13/BarManagerPro-sub003/internal/db"
	apperrors "github.com/Isna13/BarManagerPro-sub003/internal/errors"
	"github.com/Isna13/BarManagerPro-sub003/internal/models"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/backoff"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/dispatcher"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/pull"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/queue"
	"github.com/Isna13/BarManagerPro-sub003/internal/uuid"
)

// centralStore is an in-memory stand-in for the central API shared by
// every terminal in a test.
type centralStore struct {
	mu       stdsync.Mutex
	entities map[string]*models.Entity
	log      []api.Change
	clock    int64
}

func newCentralStore() *centralStore {
	return &centralStore{entities: make(map[string]*models.Entity)}
}

func key(t models.EntityType, id models.UUID) string {
	return fmt.Sprintf("%s/%s", t, id)
}

func (c *centralStore) record(e *models.Entity) {
	c.log = append(c.log, api.Change{
		EntityType: e.EntityType,
		EntityID:   e.ID,
		Payload:    e.Payload,
		Version:    e.Version,
		UpdatedAt:  e.UpdatedAt,
		Deleted:    !e.IsActive,
	})
}

func (c *centralStore) Apply(_ context.Context, item *models.SyncQueueItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock++

	k := key(item.EntityType, item.EntityID)
	existing := c.entities[k]

	switch item.Operation {
	case models.OperationCreate:
		e := &models.Entity{
			EntityType: item.EntityType,
			ID:         item.EntityID,
			Payload:    item.Payload,
			Version:    1,
			UpdatedAt:  c.clock,
			IsActive:   true,
		}
		c.entities[k] = e
		c.record(e)
		return nil

	case models.OperationUpdate:
		if existing == nil {
			return apperrors.New(apperrors.ErrDependencyNotReady, "no such entity")
		}
		if adj, ok := models.ParseAdjustment(item.Payload); ok {
			var doc map[string]interface{}
			if err := json.Unmarshal(existing.Payload, &doc); err != nil {
				return apperrors.New(apperrors.ErrSyncValidation, "unparseable entity payload")
			}
			current, _ := doc[adj.Field].(float64)
			doc[adj.Field] = current + float64(adj.Delta)
			existing.Payload, _ = json.Marshal(doc)
		} else {
			existing.Payload = item.Payload
		}
		existing.Version++
		existing.UpdatedAt = c.clock
		c.record(existing)
		return nil

	case models.OperationDelete:
		if existing == nil {
			return nil
		}
		existing.IsActive = false
		existing.Version++
		existing.UpdatedAt = c.clock
		c.record(existing)
		return nil
	}
	return apperrors.New(apperrors.ErrInvalid, "unknown operation")
}

func (c *centralStore) Changes(_ context.Context, cursor string, limit int) (*api.ChangesPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	from := 0
	if cursor != "" {
		from, _ = strconv.Atoi(cursor)
	}
	to := from + limit
	if to > len(c.log) {
		to = len(c.log)
	}
	return &api.ChangesPage{
		Changes:    c.log[from:to],
		NextCursor: strconv.Itoa(to),
		HasMore:    to < len(c.log),
	}, nil
}

func (c *centralStore) quantity(t *testing.T, entityType models.EntityType, id models.UUID) float64 {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entities[key(entityType, id)]
	require.NotNil(t, e)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(e.Payload, &doc))
	q, _ := doc["quantity"].(float64)
	return q
}

// terminal is one device's full local stack against the shared central.
type terminal struct {
	queue  *queue.Queue
	repo   *db.Repository
	engine *Engine
}

func newTerminal(t *testing.T, central *centralStore, deviceID string) *terminal {
	t.Helper()

	database, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.NewMigrator(database.DB).Up())

	repo := db.NewRepository(database.DB)
	q := queue.New(database, backoff.Policy{}, 3)
	d := dispatcher.New(q, central, dispatcher.Config{Workers: 2, BatchSize: 50})
	r := pull.New(database, repo, central, deviceID, 100)

	return &terminal{queue: q, repo: repo, engine: NewEngine(q, d, r)}
}

func (term *terminal) localQuantity(t *testing.T, entityType models.EntityType, id models.UUID) float64 {
	t.Helper()
	e, err := term.repo.Get(entityType, id)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(e.Payload, &doc))
	q, _ := doc["quantity"].(float64)
	return q
}

func TestTwoTerminalsConvergeOnCounterDeltas(t *testing.T) {
	central := newCentralStore()
	ctx := context.Background()

	tillA := newTerminal(t, central, "till-a")
	tillB := newTerminal(t, central, "till-b")

	// Till A stocks the shelf: 100 bottles.
	itemID := models.UUID(uuid.New())
	_, err := tillA.queue.Enqueue(models.EntityInventoryItem, itemID, models.OperationCreate,
		json.RawMessage(`{"name":"Lager 330ml","quantity":100}`))
	require.NoError(t, err)
	_, err = tillA.engine.SyncNow(ctx)
	require.NoError(t, err)

	// Both tills work offline: A receives a 50-bottle delivery, B sells 10.
	_, err = tillA.queue.Enqueue(models.EntityInventoryItem, itemID, models.OperationUpdate,
		models.AdjustmentPayload("quantity", 50))
	require.NoError(t, err)
	_, err = tillB.queue.Enqueue(models.EntityInventoryItem, itemID, models.OperationUpdate,
		models.AdjustmentPayload("quantity", -10))
	require.NoError(t, err)

	// They reconnect in either order; deltas commute.
	_, err = tillB.engine.SyncNow(ctx)
	require.NoError(t, err)
	_, err = tillA.engine.SyncNow(ctx)
	require.NoError(t, err)

	assert.Equal(t, float64(140), central.quantity(t, models.EntityInventoryItem, itemID))

	// One more pull each and every replica agrees.
	_, err = tillA.engine.Pull(ctx)
	require.NoError(t, err)
	_, err = tillB.engine.Pull(ctx)
	require.NoError(t, err)

	assert.Equal(t, float64(140), tillA.localQuantity(t, models.EntityInventoryItem, itemID))
	assert.Equal(t, float64(140), tillB.localQuantity(t, models.EntityInventoryItem, itemID))
}

func TestSaleWaitsForItsProduct(t *testing.T) {
	central := newCentralStore()
	ctx := context.Background()

	till := newTerminal(t, central, "till-a")

	// A full offline ticket: product, sale, sale line, all in one queue.
	productID := models.UUID(uuid.New())
	saleID := models.UUID(uuid.New())
	lineID := models.UUID(uuid.New())

	_, err := till.queue.Enqueue(models.EntitySaleItem, lineID, models.OperationCreate,
		json.RawMessage(`{"qty":2}`))
	require.NoError(t, err)
	_, err = till.queue.Enqueue(models.EntitySale, saleID, models.OperationCreate,
		json.RawMessage(`{"total":900}`))
	require.NoError(t, err)
	_, err = till.queue.Enqueue(models.EntityProduct, productID, models.OperationCreate,
		json.RawMessage(`{"name":"Lager"}`))
	require.NoError(t, err)

	res, err := till.engine.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Push.Completed)
	assert.Zero(t, res.Push.DeadLettered)

	// The central log shows parents before children.
	require.Len(t, central.log, 3)
	assert.Equal(t, models.EntityProduct, central.log[0].EntityType)
	assert.Equal(t, models.EntitySale, central.log[1].EntityType)
	assert.Equal(t, models.EntitySaleItem, central.log[2].EntityType)
}

func TestEngineInfoReportsPendingWork(t *testing.T) {
	central := newCentralStore()
	till := newTerminal(t, central, "till-a")

	info, err := till.engine.Info()
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, info.Status)
	assert.Zero(t, info.PendingChanges)

	_, err = till.queue.Enqueue(models.EntityProduct, models.UUID(uuid.New()),
		models.OperationCreate, json.RawMessage(`{"name":"Ale"}`))
	require.NoError(t, err)

	info, err = till.engine.Info()
	require.NoError(t, err)
	assert.Equal(t, 1, info.PendingChanges)

	_, err = till.engine.SyncNow(context.Background())
	require.NoError(t, err)

	info, err = till.engine.Info()
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, info.Status)
	assert.Zero(t, info.PendingChanges)
	assert.False(t, info.LastSync.IsZero())
}
