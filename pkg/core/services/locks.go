package services

import (
	"strings"
	"sync"
)

// shiftLocks serializes claim and release on the same shift within this process.
// Entries are reference counted so the map only holds shifts in use.
type shiftLocks struct {
	mu    sync.Mutex
	locks map[string]*shiftLock
}

type shiftLock struct {
	mu   sync.Mutex
	refs int
}

func newShiftLocks() *shiftLocks {
	return &shiftLocks{locks: make(map[string]*shiftLock)}
}

// Lock blocks until the shift is free and returns the unlock function
func (l *shiftLocks) Lock(shiftID string) func() {
	key := strings.ToUpper(shiftID)

	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &shiftLock{}
		l.locks[key] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *shiftLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
