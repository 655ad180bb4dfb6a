package ledger

import "sync"

// addressLocks serializes mutating operations per account address: no two
// concurrent open/close calls on the same address may interleave their
// read-check-mutate-write sequence. Different addresses never contend.
//
// Locks are created on first use and kept for the process lifetime; the
// address space of active traders is small enough that this never needs
// eviction.
type addressLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAddressLocks() *addressLocks {
	return &addressLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for an address and returns its unlock func.
func (l *addressLocks) lock(address string) func() {
	l.mu.Lock()
	m, ok := l.locks[address]
	if !ok {
		m = &sync.Mutex{}
		l.locks[address] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
