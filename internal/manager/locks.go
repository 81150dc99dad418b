package manager

import "sync"

// keyedLocks serializes state transitions per instance id. Entries are
// reference-counted and dropped when the last holder releases, so the map
// does not grow with the number of instances ever seen.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*lockEntry)}
}

// acquire blocks until the per-id lock is held and returns the release
// function. Operations on different ids proceed in parallel.
func (k *keyedLocks) acquire(id string) (release func()) {
	k.mu.Lock()
	entry, ok := k.locks[id]
	if !ok {
		entry = &lockEntry{}
		k.locks[id] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()
			k.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(k.locks, id)
			}
			k.mu.Unlock()
		})
	}
}
