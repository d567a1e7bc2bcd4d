package service

import "sync"

// A productLocks serializes load-mutate-save sequences per product id.
//
// Entries are reference counted and dropped once nobody holds or waits
// for them.
type productLocks struct {
	mu    sync.Mutex
	locks map[int64]*productLock
}

type productLock struct {
	mu   sync.Mutex
	refs int
}

func newProductLocks() *productLocks {
	return &productLocks{locks: make(map[int64]*productLock)}
}

// lock blocks until the caller owns productID. The returned func releases it.
func (l *productLocks) lock(productID int64) (unlock func()) {
	l.mu.Lock()
	pl, ok := l.locks[productID]
	if !ok {
		pl = new(productLock)
		l.locks[productID] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()

	return func() {
		pl.mu.Unlock()

		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, productID)
		}
		l.mu.Unlock()
	}
}

func (l *productLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
