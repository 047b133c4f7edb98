package memengine

import (
	"sync"

	"github.com/google/uuid"
)

// keyedMutex hands out one mutex per key and forgets it once nobody holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uuid.UUID]*keyLock)}
}

// Lock blocks until the key is free and returns the matching unlock func.
func (km *keyedMutex) Lock(key uuid.UUID) (unlock func()) {
	km.mu.Lock()
	lock, ok := km.locks[key]
	if !ok {
		lock = &keyLock{}
		km.locks[key] = lock
	}
	lock.refs++
	km.mu.Unlock()

	lock.Lock()

	return func() {
		lock.Unlock()

		km.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}

// size is the number of keys currently held or waited for.
func (km *keyedMutex) size() int {
	km.mu.Lock()
	defer km.mu.Unlock()

	return len(km.locks)
}
