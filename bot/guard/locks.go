package guard

import "sync"

// userLocks serializes work per user id. Entries are refcounted so the map
// shrinks back when a user goes quiet.
type userLocks struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{entries: make(map[int64]*lockEntry)}
}

// acquire blocks until the user's lock is held and returns the release func.
func (l *userLocks) acquire(userID int64) func() {
	l.mu.Lock()
	e, ok := l.entries[userID]
	if !ok {
		e = &lockEntry{}
		l.entries[userID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.entries, userID)
			}
			l.mu.Unlock()
		})
	}
}

// size reports the number of live entries, for tests.
func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
