package handlers

import "sync"

// Locks is a set of mutexes keyed by doll id.
//
// Mutexes are dropped when nobody holds or waits them.
type Locks struct {
	mux   sync.Mutex
	locks map[string]*keyed
}

type keyed struct {
	sync.Mutex
	refs int
}

func NewLocks() *Locks {
	return &Locks{locks: map[string]*keyed{}}
}

// Lock locks key, and returns its unlocker.
func (l *Locks) Lock(key string) (unlock func()) {
	l.mux.Lock()
	k, ok := l.locks[key]
	if !ok {
		k = &keyed{}
		l.locks[key] = k
	}
	k.refs += 1
	l.mux.Unlock()

	k.Lock()
	return func() {
		k.Unlock()

		l.mux.Lock()
		defer l.mux.Unlock()
		k.refs -= 1
		if k.refs == 0 {
			delete(l.locks, key)
		}
	}
}

func (l *Locks) size() int {
	l.mux.Lock()
	defer l.mux.Unlock()
	return len(l.locks)
}
