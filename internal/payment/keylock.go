package payment

import "sync"

// keyLock provides per-transaction mutual exclusion. Entries are
// reference counted and removed once the last holder releases, so the
// table does not grow with the number of transactions ever seen.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*lockEntry)}
}

// Lock acquires the mutex for key, blocking if another goroutine holds
// it. Locks for different keys are independent.
func (kl *keyLock) Lock(key string) {
	kl.mu.Lock()
	entry, ok := kl.locks[key]
	if !ok {
		entry = &lockEntry{}
		kl.locks[key] = entry
	}
	entry.refs++
	kl.mu.Unlock()

	entry.mu.Lock()
}

func (kl *keyLock) Unlock(key string) {
	kl.mu.Lock()
	entry, ok := kl.locks[key]
	if ok {
		entry.refs--
		if entry.refs == 0 {
			delete(kl.locks, key)
		}
	}
	kl.mu.Unlock()

	if ok {
		entry.mu.Unlock()
	}
}
