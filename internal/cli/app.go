// Package cli implements the barsync command tree.
package cli

import (
	"time"

	"github.com/Isna13/BarManagerPro-sub003/internal/api"
	"github.com/Isna13/BarManagerPro-sub003/internal/config"
	"github.com/Isna13/BarManagerPro-sub003/internal/db"
	apperrors "github.com/Isna13/BarManagerPro-sub003/internal/errors"
	"github.com/Isna13/BarManagerPro-sub003/internal/logging"
	syncpkg "github.com/Isna13/BarManagerPro-sub003/internal/sync"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/backoff"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/dispatcher"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/idempotency"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/pull"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/queue"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/scheduler"
)

// App holds the wired components every command operates on.
type App struct {
	Config      *config.Config
	DB          *db.DB
	Repo        *db.Repository
	Queue       *queue.Queue
	Client      *api.Client
	Engine      *syncpkg.Engine
	Scheduler   *scheduler.Scheduler
	Idempotency *idempotency.Store
}

// newApp loads configuration, opens the database, runs migrations, and
// wires the sync engine.
func newApp(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to open database", err)
	}

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Up(); err != nil {
		database.Close()
		return nil, err
	}

	repo := db.NewRepository(database.DB)
	policy := backoff.Policy{Base: cfg.Sync.BackoffBase, Cap: cfg.Sync.BackoffCap}
	q := queue.New(database, policy, cfg.Sync.MaxRetries)

	// A crash mid-dispatch leaves items marked in_flight; no dispatcher is
	// running yet, so they are safe to hand back to the queue.
	if _, err := q.RecoverInFlight(); err != nil {
		database.Close()
		return nil, err
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout)

	d := dispatcher.New(q, client, dispatcher.Config{
		Workers:     cfg.Sync.Workers,
		BatchSize:   cfg.Sync.BatchSize,
		CallTimeout: cfg.API.Timeout,
	})
	r := pull.New(database, repo, client, cfg.DeviceID, cfg.Sync.PullPageSize)
	engine := syncpkg.NewEngine(q, d, r)

	sched := scheduler.New(engine, &scheduler.Config{
		PushInterval: cfg.Sync.PushInterval,
		PullInterval: cfg.Sync.PullInterval,
		CycleTimeout: 5 * time.Minute,
	})

	store := idempotency.NewStore(database.DB, cfg.Idempotency.TTL)

	return &App{
		Config:      cfg,
		DB:          database,
		Repo:        repo,
		Queue:       q,
		Client:      client,
		Engine:      engine,
		Scheduler:   sched,
		Idempotency: store,
	}, nil
}

// Close releases the app's resources.
func (a *App) Close() {
	if a.Repo != nil {
		a.Repo.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
