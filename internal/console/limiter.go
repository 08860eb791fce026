package console

// limiter.go bounds how many saves are forwarded to the backend at once.
//
// Saves carry file attachments and trigger an index rebuild on the backend,
// so every session shares one SaveLimiter. A save that cannot get a slot
// within maxWait fails with ErrTooManySaves. WaitForDrain lets shutdown wait
// for in-flight saves.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManySaves is returned when no save slot frees up in time.
var ErrTooManySaves = errors.New("too many concurrent saves, please try again later")

const (
	DefaultMaxConcurrentSaves = 4
	DefaultSaveWait           = 15 * time.Second
)

// SaveLimiter is a counting semaphore for backend saves.
type SaveLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewSaveLimiter allows at most maxConcurrent saves. Non-positive arguments
// fall back to the defaults.
func NewSaveLimiter(maxConcurrent int, maxWait time.Duration) *SaveLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentSaves
	}
	if maxWait <= 0 {
		maxWait = DefaultSaveWait
	}
	return &SaveLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot. The caller must Release it.
func (l *SaveLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManySaves
	}
}

// Release returns a slot taken by Acquire.
func (l *SaveLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active is the number of saves holding a slot.
func (l *SaveLimiter) Active() int {
	return int(l.active.Load())
}

// Capacity is the maximum number of concurrent saves.
func (l *SaveLimiter) Capacity() int {
	return cap(l.slots)
}

// WaitForDrain blocks until no save holds a slot or ctx ends.
func (l *SaveLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
