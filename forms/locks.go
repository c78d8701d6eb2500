package forms

import "sync"

// schemaLocks serializes edits per schema ID. Entries are dropped once no
// goroutine holds or waits on them.
type schemaLocks struct {
	mu    sync.Mutex
	locks map[string]*schemaLock
}

type schemaLock struct {
	sync.Mutex
	refs int
}

func newSchemaLocks() *schemaLocks {
	return &schemaLocks{locks: make(map[string]*schemaLock)}
}

func (l *schemaLocks) lock(schemaID string) (unlock func()) {
	l.mu.Lock()
	lk, ok := l.locks[schemaID]
	if !ok {
		lk = &schemaLock{}
		l.locks[schemaID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.Lock()
	return func() {
		lk.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, schemaID)
		}
		l.mu.Unlock()
	}
}
