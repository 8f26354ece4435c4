// Package locker serializes sale recording per item so the stock gate
// and the write it protects cannot interleave across requests.
package locker

import (
	"context"
	"sync"
)

// ItemLocker acquires an exclusive lock for one owner's item. The
// returned release func must be called exactly once.
type ItemLocker interface {
	Acquire(ctx context.Context, ownerID string, itemID string) (release func(), err error)
}

// Memory is an in-process keyed mutex, suitable for single-instance
// deployments and tests.
type Memory struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewMemory() *Memory {
	return &Memory{locks: make(map[string]*entry)}
}

func (m *Memory) Acquire(ctx context.Context, ownerID string, itemID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := ownerID + ":" + itemID

	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()

	release := func() {
		e.mu.Unlock()
		m.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
	return release, nil
}
