package ledger

import (
	"slices"
	"sync"
)

// accountLocks serializes balance mutations per account.
//
// Ordinary mutations hold the global lock shared and then the per-account
// locks they need, always in ascending id order. Batches hold the global lock
// exclusively and need no per-account locks. The SQL connection is acquired
// only after all of these, so no goroutine ever waits for a lock while holding
// the connection.
type accountLocks struct {
	global sync.RWMutex

	mu    sync.Mutex
	locks map[int64]*accountLock
}

// accountLock is dropped from the map once nobody holds or waits for it.
type accountLock struct {
	sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[int64]*accountLock)}
}

func (l *accountLocks) acquire(id int64) *accountLock {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &accountLock{}
		l.locks[id] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return m
}

func (l *accountLocks) release(id int64, m *accountLock) {
	m.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	m.refs--
	if m.refs == 0 {
		delete(l.locks, id)
	}
}

// lock acquires the shared global lock and the locks for ids. It returns the
// sorted, de-duplicated ids it holds and a function that releases everything.
func (l *accountLocks) lock(ids []int64) ([]int64, func()) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	l.global.RLock()
	held := make([]*accountLock, 0, len(sorted))
	for _, id := range sorted {
		held = append(held, l.acquire(id))
	}

	return sorted, func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.release(sorted[i], held[i])
		}
		l.global.RUnlock()
	}
}

// lockAll excludes every other mutation until the returned function is called.
func (l *accountLocks) lockAll() func() {
	l.global.Lock()
	return l.global.Unlock
}
