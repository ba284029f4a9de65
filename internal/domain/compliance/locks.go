package compliance

import "sync"

// subjectLocks serializes destructive operations per customer so an
// anonymize and a delete can never interleave on the same id.
type subjectLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *subjectLocks) acquire(customerID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := l.locks[customerID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[customerID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
