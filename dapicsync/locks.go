package dapicsync

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrAlreadySyncing is returned when a sync with identical parameters is
// still running.
var ErrAlreadySyncing = errors.New("already syncing")

// LockRegistry serializes state-changing syncs. The key covers mode, store
// and period so two identical requests exclude each other while different
// stores or periods proceed in parallel.
type LockRegistry struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewLockRegistry() *LockRegistry {
	return &LockRegistry{active: map[string]struct{}{}}
}

func lockKey(mode, storeId string, start, end time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%s", mode, storeId, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

// Acquire takes the lock for the given sync parameters. The caller must
// invoke the returned release func when the sync finishes, success or not.
func (r *LockRegistry) Acquire(mode, storeId string, start, end time.Time) (func(), error) {
	key := lockKey(mode, storeId, start, end)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, held := r.active[key]; held {
		return nil, ErrAlreadySyncing
	}
	r.active[key] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.active, key)
			r.mu.Unlock()
		})
	}
	return release, nil
}
