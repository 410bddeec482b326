package poll

import (
	"sync"
	"time"
)

// progressCeiling is the highest estimate reported before the backend
// confirms completion; exactly 1.0 is reserved for the Completed
// transition.
const progressCeiling = 0.95

// Estimator derives a monotonic progress estimate from elapsed wall-clock
// time against an assumed total duration, since the backend exposes no
// true percent-complete.
type Estimator struct {
	assumed time.Duration
	now     func() time.Time

	mu   sync.Mutex
	last float64
}

// NewEstimator creates an estimator for one job against the assumed total
// generation duration.
func NewEstimator(assumed time.Duration) *Estimator {
	return NewEstimatorWithClock(assumed, time.Now)
}

// NewEstimatorWithClock injects the clock for tests.
func NewEstimatorWithClock(assumed time.Duration, now func() time.Time) *Estimator {
	if assumed <= 0 {
		assumed = 120 * time.Second
	}
	return &Estimator{assumed: assumed, now: now}
}

// EstimateSince returns min(elapsed/assumed, 0.95), never lower than a
// previously reported value, so clock anomalies cannot walk progress
// backwards.
func (e *Estimator) EstimateSince(start time.Time) float64 {
	elapsed := e.now().Sub(start)

	p := float64(elapsed) / float64(e.assumed)
	if p < 0 {
		p = 0
	}
	if p > progressCeiling {
		p = progressCeiling
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if p < e.last {
		return e.last
	}
	e.last = p
	return p
}
