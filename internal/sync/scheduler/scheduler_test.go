package scheduler

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Isna13/BarManagerPro-sub003/internal/api"
	"github.com/Isna13/BarManagerPro-sub003/internal/db"
	"github.com/Isna13/BarManagerPro-sub003/internal/models"
	syncpkg "github.com/Isna13/BarManagerPro-sub003/internal/sync"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/backoff"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/dispatcher"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/pull"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/queue"
	"github.com/Isna13/BarManagerPro-sub003/internal/uuid"
)

// countingRemote accepts everything and counts calls.
type countingRemote struct {
	applies atomic.Int64
	pulls   atomic.Int64
}

func (c *countingRemote) Apply(context.Context, *models.SyncQueueItem) error {
	c.applies.Add(1)
	return nil
}

func (c *countingRemote) Changes(context.Context, string, int) (*api.ChangesPage, error) {
	c.pulls.Add(1)
	return &api.ChangesPage{}, nil
}

func newTestScheduler(t *testing.T, remote api.Remote, cfg *Config) (*Scheduler, *queue.Queue) {
	t.Helper()

	database, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.NewMigrator(database.DB).Up())

	repo := db.NewRepository(database.DB)
	q := queue.New(database, backoff.Policy{}, 3)
	d := dispatcher.New(q, remote, dispatcher.Config{Workers: 2, BatchSize: 50})
	r := pull.New(database, repo, remote, "till-test", 100)
	engine := syncpkg.NewEngine(q, d, r)

	return New(engine, cfg), q
}

func TestStartStopIdempotent(t *testing.T) {
	remote := &countingRemote{}
	s, _ := newTestScheduler(t, remote, nil)

	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx) // second call is a no-op
	assert.True(t, s.IsRunning())

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop() // stopping twice must not panic
}

func TestSchedulerRestartsAfterStop(t *testing.T) {
	remote := &countingRemote{}
	s, q := newTestScheduler(t, remote, &Config{
		PushInterval: 20 * time.Millisecond,
		PullInterval: time.Hour,
		CycleTimeout: time.Second,
	})

	ctx := context.Background()
	s.Start(ctx)
	s.Stop()

	// The loops from the first run are gone; a second Start must bring
	// live ones back, not ones bound to the already-closed stop channel.
	_, err := q.Enqueue(models.EntityProduct, models.UUID(uuid.New()),
		models.OperationCreate, json.RawMessage(`{"name":"Porter"}`))
	require.NoError(t, err)

	s.Start(ctx)
	defer s.Stop()
	assert.True(t, s.IsRunning())

	require.Eventually(t, func() bool {
		return remote.applies.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPushLoopDrainsQueue(t *testing.T) {
	remote := &countingRemote{}
	s, q := newTestScheduler(t, remote, &Config{
		PushInterval: 20 * time.Millisecond,
		PullInterval: time.Hour,
		CycleTimeout: time.Second,
	})

	_, err := q.Enqueue(models.EntityProduct, models.UUID(uuid.New()),
		models.OperationCreate, json.RawMessage(`{"name":"Lager"}`))
	require.NoError(t, err)

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return remote.applies.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	n, err := q.PendingCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOfflineHoldsQueuedWork(t *testing.T) {
	remote := &countingRemote{}
	s, q := newTestScheduler(t, remote, &Config{
		PushInterval: 20 * time.Millisecond,
		PullInterval: time.Hour,
		CycleTimeout: time.Second,
	})

	ctx := context.Background()
	s.SetOnlineStatus(ctx, false)

	_, err := q.Enqueue(models.EntityProduct, models.UUID(uuid.New()),
		models.OperationCreate, json.RawMessage(`{"name":"Stout"}`))
	require.NoError(t, err)

	s.Start(ctx)
	defer s.Stop()

	// Several ticks pass, nothing leaves the terminal.
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, remote.applies.Load())

	// Reconnecting triggers an immediate cycle.
	s.SetOnlineStatus(ctx, true)
	require.Eventually(t, func() bool {
		return remote.applies.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTriggerSyncRunsFullCycle(t *testing.T) {
	remote := &countingRemote{}
	s, q := newTestScheduler(t, remote, &Config{
		PushInterval: time.Hour,
		PullInterval: time.Hour,
		CycleTimeout: time.Second,
	})

	_, err := q.Enqueue(models.EntityProduct, models.UUID(uuid.New()),
		models.OperationCreate, json.RawMessage(`{"name":"Ale"}`))
	require.NoError(t, err)

	s.TriggerSync(context.Background())

	require.Eventually(t, func() bool {
		return remote.applies.Load() == 1 && remote.pulls.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}
