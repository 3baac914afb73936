// Package dispatcher drains the sync queue against the central store. It
// runs a fixed-size worker pool and enforces the dependency barrier: within
// one batch, every item of rank r reaches a terminal outcome before any
// item of rank r+1 is dispatched.
package dispatcher

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"time"

	"github.com/Isna13/BarManagerPro-sub003/internal/api"
	apperrors "github.com/Isna13/BarManagerPro-sub003/internal/errors"
	"github.com/Isna13/BarManagerPro-sub003/internal/logging"
	"github.com/Isna13/BarManagerPro-sub003/internal/models"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/conflict"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/queue"
	"github.com/Isna13/BarManagerPro-sub003/internal/telemetry"
)

// Config tunes the dispatcher.
type Config struct {
	Workers     int           // concurrent remote calls per rank group
	BatchSize   int           // items picked per batch
	CallTimeout time.Duration // per remote call
}

// DefaultConfig returns the stock dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:     4,
		BatchSize:   50,
		CallTimeout: 15 * time.Second,
	}
}

// Dispatcher drains the queue in dependency + FIFO order.
type Dispatcher struct {
	queue    *queue.Queue
	remote   api.Remote
	resolver *conflict.Resolver
	cfg      Config
}

// New creates a Dispatcher.
func New(q *queue.Queue, remote api.Remote, cfg Config) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 50
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}
	return &Dispatcher{
		queue:    q,
		remote:   remote,
		resolver: conflict.NewResolver(),
		cfg:      cfg,
	}
}

// Result summarizes one Drain call. Counters are guarded because workers
// in a rank group update them concurrently.
type Result struct {
	mu           sync.Mutex
	Dispatched   int
	Completed    int
	Retried      int
	Deferred     int // dependency-not-ready
	DeadLettered int
	Conflicts    int
}

func (r *Result) add(f func(*Result)) {
	r.mu.Lock()
	f(r)
	r.mu.Unlock()
}

// Drain dequeues and dispatches batches until the queue has nothing ready
// or the context is cancelled. Cancellation takes effect between batches;
// in-flight calls finish or time out first, so no mutation is abandoned
// mid-application.
func (d *Dispatcher) Drain(ctx context.Context) (*Result, error) {
	total := &Result{}
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		batch, err := d.queue.DequeueBatch(d.cfg.BatchSize)
		if err != nil {
			return total, apperrors.Wrap(apperrors.ErrDatabase, "dequeue failed", err)
		}
		if len(batch) == 0 {
			return total, nil
		}

		d.dispatchBatch(ctx, batch, total)
	}
}

// dispatchBatch partitions a batch into rank groups and runs them in
// order, with bounded parallelism inside each group. The wait between
// groups is the dependency barrier.
func (d *Dispatcher) dispatchBatch(ctx context.Context, batch []*models.SyncQueueItem, res *Result) {
	groups := groupByPriority(batch)

	for _, group := range groups {
		sem := make(chan struct{}, d.cfg.Workers)
		var wg sync.WaitGroup

		for _, item := range group {
			wg.Add(1)
			sem <- struct{}{}
			go func(item *models.SyncQueueItem) {
				defer wg.Done()
				defer func() { <-sem }()
				d.dispatchOne(ctx, item, res)
			}(item)
		}

		// Every rank-r outcome lands before rank r+1 starts.
		wg.Wait()
	}
}

// dispatchOne issues one remote call and classifies the outcome.
func (d *Dispatcher) dispatchOne(ctx context.Context, item *models.SyncQueueItem, res *Result) {
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.CallTimeout)
	defer cancel()

	err := d.remote.Apply(callCtx, item)
	res.add(func(r *Result) { r.Dispatched++ })

	counters := telemetry.Get()

	switch {
	case err == nil:
		if qerr := d.queue.Complete(item.ID, item.PayloadVersion); qerr != nil {
			logging.Error("Failed to mark item completed", qerr,
				map[string]interface{}{"item_id": item.ID})
			return
		}
		counters.Pushed(1)
		res.add(func(r *Result) { r.Completed++ })

	case apperrors.Is(err, apperrors.ErrSyncValidation):
		// Retrying a logically invalid request cannot succeed.
		if qerr := d.queue.FailPermanent(item.ID, item.PayloadVersion, "validation rejected", err); qerr != nil {
			logging.Error("Failed to quarantine item", qerr,
				map[string]interface{}{"item_id": item.ID})
			return
		}
		counters.DeadLettered()
		res.add(func(r *Result) { r.DeadLettered++ })

	case apperrors.Is(err, apperrors.ErrDependencyNotReady):
		if qerr := d.queue.DependencyNotReady(item.ID, item.PayloadVersion, err); qerr != nil {
			logging.Error("Failed to defer item", qerr,
				map[string]interface{}{"item_id": item.ID})
			return
		}
		counters.Deferred()
		res.add(func(r *Result) { r.Deferred++ })

	case apperrors.Is(err, apperrors.ErrSyncConflict):
		d.resolveConflict(item, err, res)

	default:
		// Network, timeout, 5xx: transient.
		quarantined, qerr := d.queue.FailTransient(item.ID, item.PayloadVersion, err)
		if qerr != nil {
			logging.Error("Failed to schedule retry", qerr,
				map[string]interface{}{"item_id": item.ID})
			return
		}
		if quarantined {
			counters.DeadLettered()
			res.add(func(r *Result) { r.DeadLettered++ })
			return
		}
		counters.Retry()
		res.add(func(r *Result) { r.Retried++ })
	}
}

// resolveConflict applies the resolver's decision to the queue item.
func (d *Dispatcher) resolveConflict(item *models.SyncQueueItem, err error, res *Result) {
	var ce *api.ConflictError
	stderrors.As(err, &ce)

	var remote *models.Entity
	if ce != nil {
		remote = ce.Remote
	}

	resolution := d.resolver.Resolve(item, remote)
	telemetry.Get().Conflict()
	res.add(func(r *Result) { r.Conflicts++ })

	switch resolution.Action {
	case conflict.ActionComplete:
		if qerr := d.queue.Complete(item.ID, item.PayloadVersion); qerr != nil {
			logging.Error("Failed to complete resolved item", qerr,
				map[string]interface{}{"item_id": item.ID})
		}

	case conflict.ActionResend:
		if qerr := d.queue.Resend(item.ID, item.PayloadVersion, resolution.MergedPayload); qerr != nil {
			logging.Error("Failed to resend merged payload", qerr,
				map[string]interface{}{"item_id": item.ID})
		}

	case conflict.ActionDropPreserve:
		if qerr := d.queue.FailPermanent(item.ID, item.PayloadVersion, resolution.Reason, err); qerr != nil {
			logging.Error("Failed to preserve overwritten mutation", qerr,
				map[string]interface{}{"item_id": item.ID})
			return
		}
		telemetry.Get().DeadLettered()
		res.add(func(r *Result) { r.DeadLettered++ })
	}
}

// groupByPriority splits a batch into priority groups, ascending. Items
// inside a group keep their FIFO order from the dequeue query.
func groupByPriority(batch []*models.SyncQueueItem) [][]*models.SyncQueueItem {
	byRank := make(map[int][]*models.SyncQueueItem)
	var ranks []int
	for _, item := range batch {
		if _, ok := byRank[item.Priority]; !ok {
			ranks = append(ranks, item.Priority)
		}
		byRank[item.Priority] = append(byRank[item.Priority], item)
	}
	sort.Ints(ranks)

	groups := make([][]*models.SyncQueueItem, 0, len(ranks))
	for _, r := range ranks {
		groups = append(groups, byRank[r])
	}
	return groups
}
