package supervisor

import (
	"sync"
	"time"
)

// backoffState tracks an exponential backoff step per service (spec §4.3,
// §4.6), doubling from 2s and capped at 5m: the worker advances it each
// time it moves the service to FAILED and resets it when a start or wake
// succeeds. Nothing schedules a
// restart from it, so a FAILED service stays FAILED until it is started
// explicitly.
type backoffState struct {
	mu      sync.Mutex
	attempt int
}

const (
	backoffBase = 2 * time.Second
	backoffCap  = 5 * time.Minute
)

func newBackoffState() *backoffState { return &backoffState{} }

func (b *backoffState) next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := backoffBase << b.attempt
	if d <= 0 || d > backoffCap { // guards against overflow on long streaks
		d = backoffCap
	}
	b.attempt++
	return d
}

func (b *backoffState) bump() { _ = b.next() }

func (b *backoffState) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempt = 0
}
