// Package backoff computes retry delays for failed sync attempts.
package backoff

import "time"

// Policy is an exponential backoff schedule: base * 2^retry, capped.
type Policy struct {
	Base time.Duration
	Cap  time.Duration
}

// Default matches the dispatcher's stock configuration: 1s base, 1m cap.
func Default() Policy {
	return Policy{Base: time.Second, Cap: time.Minute}
}

// Delay returns the wait before attempt retryCount+1. retryCount is the
// number of attempts already made, so the first retry waits Base.
func (p Policy) Delay(retryCount int) time.Duration {
	if p.Base <= 0 {
		return 0
	}

	d := p.Base
	for i := 0; i < retryCount; i++ {
		d *= 2
		if p.Cap > 0 && d >= p.Cap {
			return p.Cap
		}
	}
	if p.Cap > 0 && d > p.Cap {
		return p.Cap
	}
	return d
}

// NextAttempt returns the earliest wall-clock time the item may be
// dispatched again.
func (p Policy) NextAttempt(now time.Time, retryCount int) time.Time {
	return now.Add(p.Delay(retryCount))
}
