package services

import "sync"

// keyLock serializes operations per entity id. Lifecycle transitions for the
// same ride request (or load/status updates for the same taxi) must not
// interleave between their status check and write; unrelated ids must not
// block each other.
//
// Entries are never evicted: the table grows with the set of ids seen by one
// process lifetime, which is bounded by active rides and taxis.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use, and returns the
// matching unlock function.
func (k *keyLock) Lock(key string) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
