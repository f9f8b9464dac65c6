package engine

import "sync"

// keyedMutex hands out one mutex per session key so processing for a session
// is serialized while unrelated sessions proceed in parallel. Mutexes are
// never evicted; the per-session footprint is a few words.
type keyedMutex struct {
	locks sync.Map // string -> *sync.Mutex
}

func (k *keyedMutex) lock(key string) *sync.Mutex {
	mu, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m
}
