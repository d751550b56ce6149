package mfa

import "sync"

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex serializes work per VerificationKey. Entries are reference
// counted and removed once the last holder releases, so the map does not
// grow with the number of distinct users seen over the process lifetime.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[VerificationKey]*keyedLock
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		locks: make(map[VerificationKey]*keyedLock),
	}
}

// Lock acquires the mutex for the key and returns its release func.
func (k *keyedMutex) Lock(key VerificationKey) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
