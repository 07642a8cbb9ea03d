// Package quota tracks byte usage against a configured maximum and provides
// scoped reservations that roll back automatically if the work they guard
// fails.
package quota

import (
	"sync"

	"github.com/memfsdev/memfs/internal/mfserrors"
)

// Manager tracks bytes used against a fixed maximum. It is safe for
// concurrent use; its mutex is never held across a call into caller-supplied
// code (the Reserve callback runs outside the lock).
type Manager struct {
	mu  sync.Mutex
	max int64
	// GUARDED_BY(mu)
	used int64
}

// New returns a Manager with the given maximum quota in bytes.
func New(maxQuota int64) *Manager {
	return &Manager{max: maxQuota}
}

// Reserve reserves size bytes, runs fn, and releases the reservation again
// if fn returns a non-nil error. If size is non-positive, fn runs with no
// reservation taken. Reserve returns a *mfserrors.QuotaExceededError without
// calling fn if the reservation cannot be satisfied.
func (m *Manager) Reserve(size int64, fn func() error) error {
	if size <= 0 {
		return fn()
	}

	m.mu.Lock()
	available := m.max - m.used
	if size > available {
		m.mu.Unlock()
		return &mfserrors.QuotaExceededError{Requested: size, Available: available}
	}
	m.used += size
	m.mu.Unlock()

	if err := fn(); err != nil {
		m.mu.Lock()
		m.used -= size
		m.mu.Unlock()
		return err
	}
	return nil
}

// Release gives back size bytes previously reserved outside of a Reserve
// scope (e.g. on file truncation or deletion). Usage never drops below
// zero, which tolerates accounting that slightly over-releases on a
// best-effort rollback path.
func (m *Manager) Release(size int64) {
	if size <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.used -= size
	if m.used < 0 {
		m.used = 0
	}
}

// ForceReserve adds size bytes to usage without checking availability. It
// must only be called by a caller that (1) holds the filesystem's global
// tree lock, (2) has already verified availability via Snapshot or a prior
// Reserve, and (3) is part of a multi-step atomic operation (ImportTree,
// CopyTree) that performs its own rollback on later failure.
func (m *Manager) ForceReserve(size int64) {
	if size <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.used += size
}

// Snapshot atomically returns (maximum, used, free).
func (m *Manager) Snapshot() (maximum, used, free int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.max, m.used, m.max - m.used
}

// Used returns the currently reserved byte count.
func (m *Manager) Used() int64 {
	_, used, _ := m.Snapshot()
	return used
}

// Free returns the currently available byte count.
func (m *Manager) Free() int64 {
	_, _, free := m.Snapshot()
	return free
}

// Max returns the configured maximum quota.
func (m *Manager) Max() int64 {
	return m.max
}
