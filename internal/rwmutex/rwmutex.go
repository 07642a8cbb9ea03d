// Package rwmutex provides a readers/writer lock with a bounded wait: unlike
// sync.RWMutex, AcquireRead and AcquireWrite take a timeout and return
// mfserrors.ErrBlocking rather than blocking forever. It is used for
// per-file locking, where a caller asking for a non-blocking or
// time-bounded open must get a prompt answer rather than stall.
package rwmutex

import (
	"sync"
	"time"

	"github.com/memfsdev/memfs/internal/mfserrors"
)

// Infinite, passed as the timeout to Acquire{Read,Write}, means wait with no
// deadline. A timeout of zero means do not block at all.
const Infinite time.Duration = -1

// RWMutex admits either any number of concurrent readers or a single
// exclusive writer. It provides no fairness: a steady stream of readers can
// starve a waiting writer indefinitely, so callers that care should bound
// their wait with a timeout.
//
// sync.Cond has no timed wait, so state changes are signaled by closing and
// replacing a channel instead: a waiter snapshots the current channel, drops
// mu, and selects on it against a timer.
type RWMutex struct {
	mu sync.Mutex

	// GUARDED_BY(mu)
	readers    int
	writerHeld bool
	changed    chan struct{}
}

// New returns a ready-to-use RWMutex.
func New() *RWMutex {
	return &RWMutex{changed: make(chan struct{})}
}

// wake must be called with mu held. It unblocks every waiter parked in
// waitForChange.
func (m *RWMutex) wake() {
	close(m.changed)
	m.changed = make(chan struct{})
}

// waitForChange blocks until the lock state changes or dl passes, whichever
// comes first. It must be called with mu held and returns with mu held
// again. dl.IsZero() means wait with no deadline.
func (m *RWMutex) waitForChange(dl time.Time) (changed bool) {
	ch := m.changed
	m.mu.Unlock()
	defer m.mu.Lock()

	if dl.IsZero() {
		<-ch
		return true
	}

	remaining := time.Until(dl)
	if remaining <= 0 {
		return false
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}

func deadline(timeout time.Duration) time.Time {
	if timeout == Infinite {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

// AcquireRead blocks until a read lock is available or timeout elapses.
// Pass Infinite to wait with no deadline, or 0 to fail immediately if the
// lock is not already available.
func (m *RWMutex) AcquireRead(timeout time.Duration) error {
	dl := deadline(timeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	for m.writerHeld {
		if !m.waitForChange(dl) {
			return mfserrors.ErrBlocking
		}
	}
	m.readers++
	return nil
}

// ReleaseRead releases one previously acquired read lock.
func (m *RWMutex) ReleaseRead() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readers <= 0 {
		panic("rwmutex: ReleaseRead without matching AcquireRead")
	}
	m.readers--
	if m.readers == 0 {
		m.wake()
	}
}

// AcquireWrite blocks until the write lock is available (no readers and no
// other writer holding it) or timeout elapses.
func (m *RWMutex) AcquireWrite(timeout time.Duration) error {
	dl := deadline(timeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	for m.writerHeld || m.readers > 0 {
		if !m.waitForChange(dl) {
			return mfserrors.ErrBlocking
		}
	}
	m.writerHeld = true
	return nil
}

// ReleaseWrite releases a previously acquired write lock.
func (m *RWMutex) ReleaseWrite() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.writerHeld {
		panic("rwmutex: ReleaseWrite without matching AcquireWrite")
	}
	m.writerHeld = false
	m.wake()
}

// IsLocked reports whether any reader or the writer currently holds the
// lock. It is intended for tests and invariant checks, not for
// synchronization decisions (the result is stale the instant it is
// returned).
func (m *RWMutex) IsLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writerHeld || m.readers > 0
}
