package moderation

import "sync"

// keyedMutex hands out one mutex per user. Entries are reference counted and
// removed once no goroutine holds or waits for them, so idle users cost nothing.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[userKey]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[userKey]*refMutex)}
}

// Lock blocks until the caller owns the user's critical section and returns its release func.
func (k *keyedMutex) Lock(key userKey) func() {
	k.mu.Lock()

	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()

		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	return len(k.locks)
}
