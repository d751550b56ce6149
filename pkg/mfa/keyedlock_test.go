package mfa

import (
	"runtime"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	km := newKeyedMutex()
	key := VerificationKey{TenantID: uuid.New(), UserID: uuid.New()}

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(key)
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestKeyedMutexReapsReleasedEntries(t *testing.T) {
	km := newKeyedMutex()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		key := VerificationKey{TenantID: uuid.New(), UserID: uuid.New()}
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(key)
			unlock()
		}()
	}
	wg.Wait()

	// No entries remain once every holder has released
	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks)
}

func TestKeyedMutexWaiterKeepsEntryAlive(t *testing.T) {
	km := newKeyedMutex()
	key := VerificationKey{TenantID: uuid.New(), UserID: uuid.New()}

	unlock := km.Lock(key)

	acquired := make(chan func(), 1)
	go func() {
		acquired <- km.Lock(key)
	}()

	// Wait until the second goroutine is registered as a holder
	for {
		km.mu.Lock()
		refs := km.locks[key].refs
		km.mu.Unlock()
		if refs == 2 {
			break
		}
		runtime.Gosched()
	}

	// Releasing the first holder must hand the same entry to the waiter,
	// not reap it out from under them
	unlock()
	unlock2 := <-acquired

	km.mu.Lock()
	_, present := km.locks[key]
	km.mu.Unlock()
	require.True(t, present)

	unlock2()

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks)
}
