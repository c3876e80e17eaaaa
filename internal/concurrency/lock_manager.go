// Package concurrency provides per-key mutexes. The farm service and the
// settlement engine lock the same account key before touching a vault, so a
// harvest and the compensation of an earlier leg never interleave.
package concurrency

import (
	"sync"
)

// LockManager hands out one mutex per key. Locks are never removed; the set
// of account keys is bounded by the farm's registered vaults.
type LockManager struct {
	locks sync.Map
}

// NewLockManager creates an empty LockManager
func NewLockManager() *LockManager {
	return &LockManager{}
}

// GetLock returns the mutex for key, creating it on first use
func (lm *LockManager) GetLock(key string) *sync.Mutex {
	lock, _ := lm.locks.LoadOrStore(key, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
