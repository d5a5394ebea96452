package servo

import (
	"context"
	"sync"
	"time"
)

// limiter enforces a minimum interval between command writes.
//
// It holds at most one pending target. A submit while a target is already
// pending replaces it, so a burst collapses into the latest position. A single
// worker goroutine per run arms a timer for the remaining wait and then writes,
// which keeps writes strictly serialized.
type limiter struct {
	interval time.Duration

	mu         sync.Mutex
	pending    Position
	hasPending bool
	last       time.Time

	// run state; gen invalidates a stopped worker that has not exited yet.
	gen    uint64
	notify chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

func newLimiter(interval time.Duration) *limiter {
	if interval <= 0 {
		interval = DefaultMinInterval
	}

	return &limiter{interval: interval}
}

// start launches a worker that hands each due target to write.
// A previous run must have been stopped.
func (l *limiter) start(ctx context.Context, write func(Position)) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	notify := make(chan struct{}, 1)

	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.cancel = cancel
	l.done = done
	l.notify = notify
	l.hasPending = false
	l.mu.Unlock()

	go l.run(runCtx, gen, notify, done, write)
}

// stop cancels the running worker and drops the pending target. The returned
// channel is closed once the worker has exited; a write in flight finishes first.
func (l *limiter) stop() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.hasPending = false
	l.gen++
	l.notify = nil
	if l.cancel == nil {
		closed := make(chan struct{})
		close(closed)

		return closed
	}

	l.cancel()
	l.cancel = nil

	return l.done
}

// submit schedules p and returns true if it superseded a pending target.
// It never blocks. Without a running worker the target is dropped.
func (l *limiter) submit(p Position) bool {
	l.mu.Lock()
	notify := l.notify
	if notify == nil {
		l.mu.Unlock()
		return false
	}
	coalesced := l.hasPending
	l.pending = p
	l.hasPending = true
	l.mu.Unlock()

	select {
	case notify <- struct{}{}:
	default:
	}

	return coalesced
}

// lastWrite returns the start time of the most recent write.
func (l *limiter) lastWrite() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.last
}

// remaining returns how long the worker must wait before the next write.
func (l *limiter) remaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.last.IsZero() {
		return 0
	}

	return l.interval - time.Since(l.last)
}

// take removes the pending target of run gen and stamps the write time.
func (l *limiter) take(gen uint64) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.gen || !l.hasPending {
		return 0, false
	}

	l.hasPending = false
	l.stampLocked()

	return l.pending, true
}

// stamp records a write made outside the worker, such as the courtesy
// command, so the next run still honors the interval.
func (l *limiter) stamp() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stampLocked()
}

// stampLocked moves last forward to now; it never goes backwards.
func (l *limiter) stampLocked() {
	if now := time.Now(); now.After(l.last) {
		l.last = now
	}
}

func (l *limiter) run(ctx context.Context, gen uint64, notify <-chan struct{}, done chan struct{}, write func(Position)) {
	defer close(done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-notify:
		}

		if wait := l.remaining(); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
		}

		p, ok := l.take(gen)
		if !ok {
			continue
		}

		write(p)
	}
}
