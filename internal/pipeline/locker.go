package pipeline

import "sync"

// Locker serializes work per project. Distinct projects never contend.
type Locker struct {
	mu    sync.Mutex
	locks map[int64]*projectLock
}

type projectLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[int64]*projectLock)}
}

// Lock blocks until the project is free and returns the matching unlock.
func (l *Locker) Lock(projectID int64) (unlock func()) {
	l.mu.Lock()
	pl, ok := l.locks[projectID]
	if !ok {
		pl = &projectLock{}
		l.locks[projectID] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()
	return func() {
		pl.mu.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, projectID)
		}
		l.mu.Unlock()
	}
}

func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
