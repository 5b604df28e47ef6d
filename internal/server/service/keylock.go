package service

import "sync"

// keyedMutex serializes mutations per document ID. Two concurrent
// renames (or a rename racing a delete) on the same docId take the same
// lock; operations on different docIds proceed independently.
//
// Entries are never evicted. The map grows with the number of distinct
// docIds mutated over the process lifetime, which is bounded by the
// document count.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
