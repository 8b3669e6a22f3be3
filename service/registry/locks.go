package registry

import "sync"

// lockTable hands out one mutex per resource id so transitions for a given
// resource serialize while unrelated resources proceed in parallel. Entries
// are never reaped; the population is bounded by the fleet size.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (t *lockTable) get(id string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.locks == nil {
		t.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := t.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[id] = lock
	}
	return lock
}

// LockResource acquires the per-resource mutex and returns its release func.
func (r *Registry) LockResource(id string) func() {
	lock := r.locks.get(id)
	lock.Lock()
	return lock.Unlock
}
