// Package admission bounds concurrent backend work. The remote-sensing
// backend enforces per-account concurrency ceilings, so requests queue here
// instead of failing there.
package admission

import (
	"context"
	"fmt"
)

// DefaultLimit matches typical per-account backend concurrency ceilings.
const DefaultLimit = 8

// Gauge tracks the number of held slots. A prometheus gauge satisfies it.
type Gauge interface {
	Inc()
	Dec()
}

// Limiter is a counting semaphore. Acquire blocks until a slot frees or the
// context ends.
type Limiter struct {
	slots chan struct{}
	gauge Gauge
}

// NewLimiter creates a limiter admitting at most limit concurrent holders.
func NewLimiter(limit int) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Limiter{slots: make(chan struct{}, limit)}
}

// Instrument attaches the slots-in-use gauge.
func (l *Limiter) Instrument(g Gauge) {
	l.gauge = g
}

// Acquire claims a slot. The caller must Release it.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		if l.gauge != nil {
			l.gauge.Inc()
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for backend slot: %w", ctx.Err())
	}
}

// Release frees a slot claimed by Acquire.
func (l *Limiter) Release() {
	select {
	case <-l.slots:
		if l.gauge != nil {
			l.gauge.Dec()
		}
	default:
		panic("admission: Release without Acquire")
	}
}

// Limit reports the maximum number of concurrent holders.
func (l *Limiter) Limit() int { return cap(l.slots) }

// InUse reports the number of currently held slots.
func (l *Limiter) InUse() int { return len(l.slots) }
