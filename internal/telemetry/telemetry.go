// Package telemetry keeps process-scoped sync counters. Everything stays
// local: counters feed the status command and logs, nothing is transmitted.
package telemetry

import "sync/atomic"

// Counters aggregates what the engine has done since process start.
type Counters struct {
	pushed       atomic.Int64
	pulled       atomic.Int64
	retries      atomic.Int64
	conflicts    atomic.Int64
	deadLettered atomic.Int64
	deferred     atomic.Int64
}

var global Counters

// Get returns the process-wide counter set.
func Get() *Counters {
	return &global
}

// Pushed records n successfully transmitted mutations.
func (c *Counters) Pushed(n int) { c.pushed.Add(int64(n)) }

// Pulled records n remote changes merged locally.
func (c *Counters) Pulled(n int) { c.pulled.Add(int64(n)) }

// Retry records a scheduled retry.
func (c *Counters) Retry() { c.retries.Add(1) }

// Conflict records a resolved conflict.
func (c *Counters) Conflict() { c.conflicts.Add(1) }

// DeadLettered records a quarantined mutation.
func (c *Counters) DeadLettered() { c.deadLettered.Add(1) }

// Deferred records a remote change deferred behind local pending work.
func (c *Counters) Deferred() { c.deferred.Add(1) }

// Snapshot returns the current values.
func (c *Counters) Snapshot() map[string]int64 {
	return map[string]int64{
		"pushed":        c.pushed.Load(),
		"pulled":        c.pulled.Load(),
		"retries":       c.retries.Load(),
		"conflicts":     c.conflicts.Load(),
		"dead_lettered": c.deadLettered.Load(),
		"deferred":      c.deferred.Load(),
	}
}

// Reset zeroes all counters. Tests only.
func (c *Counters) Reset() {
	c.pushed.Store(0)
	c.pulled.Store(0)
	c.retries.Store(0)
	c.conflicts.Store(0)
	c.deadLettered.Store(0)
	c.deferred.Store(0)
}
