// Package scheduler runs the sync engine on a timer. Two loops drive it:
// a push loop that drains the queue frequently, and a pull loop that walks
// the remote feed at a slower cadence. Both loops stand down while the
// terminal is offline.
package scheduler

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/Isna13/BarManagerPro-sub003/internal/logging"
	syncpkg "github.com/Isna13/BarManagerPro-sub003/internal/sync"
)

// Config holds scheduler timing.
type Config struct {
	PushInterval time.Duration // how often to drain the queue (default: 30 seconds)
	PullInterval time.Duration // how often to pull remote changes (default: 5 minutes)
	CycleTimeout time.Duration // hard cap on one push or pull run
}

// DefaultConfig returns default scheduler timing.
func DefaultConfig() *Config {
	return &Config{
		PushInterval: 30 * time.Second,
		PullInterval: 5 * time.Minute,
		CycleTimeout: 5 * time.Minute,
	}
}

// Scheduler drives the engine in the background.
type Scheduler struct {
	engine *syncpkg.Engine
	cfg    *Config

	stopCh chan struct{}
	wg     stdsync.WaitGroup

	mu        stdsync.RWMutex
	isRunning bool
	isOnline  bool
}

// New creates a Scheduler.
func New(engine *syncpkg.Engine, cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Scheduler{
		engine:   engine,
		cfg:      cfg,
		stopCh:   make(chan struct{}),
		isOnline: true, // Assume online initially
	}
}

// Start launches the push and pull loops. A stopped scheduler can be
// started again; each run gets its own stop channel.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(2)
	go s.pushLoop(ctx, stopCh)
	go s.pullLoop(ctx, stopCh)

	logging.Info("Sync scheduler started", map[string]interface{}{
		"push_interval": s.cfg.PushInterval.String(),
		"pull_interval": s.cfg.PullInterval.String(),
	})
}

// Stop shuts the loops down and waits for any in-progress cycle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	stopCh := s.stopCh
	s.mu.Unlock()

	close(stopCh)
	s.wg.Wait()

	logging.Info("Sync scheduler stopped", nil)
}

// SetOnlineStatus flips the connectivity flag. While offline the loops
// keep ticking but skip work; queued mutations wait for the flag to come
// back. Coming back online triggers an immediate drain.
func (s *Scheduler) SetOnlineStatus(ctx context.Context, isOnline bool) {
	s.mu.Lock()
	wasOnline := s.isOnline
	s.isOnline = isOnline
	s.mu.Unlock()

	if wasOnline == isOnline {
		return
	}

	logging.Info("Online status changed", map[string]interface{}{
		"was_online": wasOnline,
		"is_online":  isOnline,
	})

	if isOnline && !wasOnline {
		go s.runCycle(ctx)
	}
}

// IsOnline returns the connectivity flag.
func (s *Scheduler) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOnline
}

// IsRunning returns whether the loops are active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// TriggerSync requests an immediate full cycle without waiting for the
// next tick. The cycle runs in the background; concurrent triggers
// serialize inside the engine.
func (s *Scheduler) TriggerSync(ctx context.Context) {
	go s.runCycle(ctx)
}

func (s *Scheduler) pushLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if !s.IsOnline() {
				continue
			}
			s.runPush(ctx)
		}
	}
}

func (s *Scheduler) pullLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if !s.IsOnline() {
				continue
			}
			s.runPull(ctx)
		}
	}
}

func (s *Scheduler) runPush(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()

	res, err := s.engine.Push(cycleCtx)
	if err != nil {
		logging.Error("Scheduled push failed", err, nil)
		return
	}
	if res.Dispatched > 0 {
		logging.Debug("Scheduled push finished", map[string]interface{}{
			"dispatched": res.Dispatched,
			"completed":  res.Completed,
		})
	}
}

func (s *Scheduler) runPull(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()

	res, err := s.engine.Pull(cycleCtx)
	if err != nil {
		logging.Error("Scheduled pull failed", err, nil)
		return
	}
	if res.Applied > 0 || res.Deferred > 0 {
		logging.Debug("Scheduled pull finished", map[string]interface{}{
			"applied":  res.Applied,
			"deferred": res.Deferred,
		})
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()

	if _, err := s.engine.SyncNow(cycleCtx); err != nil {
		logging.Error("Triggered sync failed", err, nil)
	}
}
