// Package locker serializes work per user. Different users never block each other.
package locker

import (
	"context"
	"sync"
)

// Locker grants exclusive access to one user's conversation.
type Locker interface {
	// Lock blocks until the user's lock is held or ctx is done. The returned
	// function releases it and is safe to call more than once.
	Lock(ctx context.Context, userID int64) (unlock func(), err error)
}

type entry struct {
	sem  chan struct{}
	refs int
}

// Memory is an in-process keyed mutex.
type Memory struct {
	mu    sync.Mutex
	locks map[int64]*entry
}

func NewMemory() *Memory {
	return &Memory{locks: make(map[int64]*entry)}
}

func (m *Memory) Lock(ctx context.Context, userID int64) (func(), error) {
	m.mu.Lock()
	e, ok := m.locks[userID]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.locks[userID] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(userID, e, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { m.release(userID, e, true) })
	}, nil
}

func (m *Memory) release(userID int64, e *entry, held bool) {
	if held {
		<-e.sem
	}
	m.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, userID)
	}
	m.mu.Unlock()
}

// Len reports how many users currently hold or wait for a lock.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
