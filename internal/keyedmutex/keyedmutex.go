// Package keyedmutex provides per-key mutual exclusion.
//
// Upserts to the same entity must serialize while upserts to different
// entities proceed in parallel, so the store locks on the entity ID
// rather than on a single store-wide mutex.
package keyedmutex

import "sync"

// KeyedMutex serializes critical sections per key. Locks are created
// lazily on first use and held in memory for the life of the process;
// the key space (entity IDs) is assumed to be bounded.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an empty KeyedMutex.
func New() *KeyedMutex {
	return &KeyedMutex{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for key, creating it if needed.
func (km *KeyedMutex) Lock(key string) {
	km.get(key).Lock()
}

// Unlock releases the mutex for key. Panics if the key was never locked.
func (km *KeyedMutex) Unlock(key string) {
	km.mu.Lock()
	m, ok := km.locks[key]
	km.mu.Unlock()
	if !ok {
		panic("keyedmutex: unlock of unheld key " + key)
	}
	m.Unlock()
}

func (km *KeyedMutex) get(key string) *sync.Mutex {
	km.mu.Lock()
	defer km.mu.Unlock()

	m, ok := km.locks[key]
	if !ok {
		m = &sync.Mutex{}
		km.locks[key] = m
	}
	return m
}
